// Package session keeps per-session transcript state for live realtime
// transcription sessions. The store is the only state shared between the
// relay pumps and between concurrent sessions; all mutation goes through
// its methods, which are atomic with respect to each other.
package session

import (
	"sync"
	"time"
)

// Session is one end-to-end live transcription conversation, keyed by a
// client-supplied id.
type Session struct {
	ID           string
	Transcript   string // committed final lines, newline-separated, append-only
	Partial      string // latest in-progress text, replaced wholesale on update
	CreatedAt    time.Time
	LastActivity time.Time
}

// Store is a thread-safe container of live sessions. Methods that take a
// session id are no-ops when the id is absent; teardown races are expected
// and benign, so an absent session is never an error.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new session, replacing any existing entry with the same
// id, and returns a snapshot of it.
func (s *Store) Create(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess := &Session{ID: id, CreatedAt: now, LastActivity: now}
	s.sessions[id] = sess
	return *sess
}

// Get returns a snapshot copy of the session. Callers never see a live
// reference, so they cannot mutate transcript state outside the lock.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// AppendFinal appends one committed final line to the transcript and clears
// the partial in the same critical section, so a reader can never observe a
// partial that duplicates an already-committed final.
func (s *Store) AppendFinal(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Transcript += text + "\n"
	sess.Partial = ""
	sess.LastActivity = s.now()
}

// SetPartial replaces the current in-progress text.
func (s *Store) SetPartial(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Partial = text
	sess.LastActivity = s.now()
}

// Touch bumps the activity timestamp. Called from the audio path so that a
// session streaming audio without speech is not treated as stale.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastActivity = s.now()
	}
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Transcript returns the accumulated transcript for collaborator reads
// (summarizer polling).
func (s *Store) Transcript(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	return sess.Transcript, true
}

// Partial returns the current in-progress text for collaborator reads
// (UI live preview).
func (s *Store) Partial(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	return sess.Partial, true
}

// EvictStale removes sessions whose last activity is older than maxAge and
// returns how many were removed. Bounds memory when a relay session leaks
// its store entry (it should not, but the reaper is the backstop).
func (s *Store) EvictStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
