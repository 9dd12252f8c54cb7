package httpapi

import (
	"sync"
	"sync/atomic"
)

// SessionRegistry tracks active relay sessions and supports graceful
// draining. When draining is enabled, new sessions are rejected while
// in-flight sessions finish naturally.
//
// The mutex makes the draining check and the WaitGroup increment atomic in
// Add(), so StartDraining+Wait cannot slip between the check and the
// increment.
type SessionRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Add registers a new relay session. It returns false while draining,
// meaning no new sessions should be accepted.
func (sr *SessionRegistry) Add() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sr.draining {
		return false
	}
	sr.wg.Add(1)
	sr.count.Add(1)
	return true
}

// Done marks a session as finished. Must be called exactly once per
// successful Add.
func (sr *SessionRegistry) Done() {
	sr.count.Add(-1)
	sr.wg.Done()
}

// StartDraining makes all future Add calls return false. Safe to call
// concurrently with Add.
func (sr *SessionRegistry) StartDraining() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (sr *SessionRegistry) IsDraining() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.draining
}

// ActiveCount returns the number of currently active relay sessions.
func (sr *SessionRegistry) ActiveCount() int64 {
	return sr.count.Load()
}

// Wait blocks until every active session has finished.
func (sr *SessionRegistry) Wait() {
	sr.wg.Wait()
}
