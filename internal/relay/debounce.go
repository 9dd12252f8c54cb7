package relay

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// defaultQuietPeriod is how long a progressive final must go unsuperseded
// before it is committed.
const defaultQuietPeriod = 300 * time.Millisecond

// finalBuffer holds at most one pending progressive final and commits it
// after a quiet period, on preemption by a new partial, or on teardown.
//
// The recognizer re-emits the final for a turn as it refines punctuation;
// committing each one would flicker the client view and duplicate text in
// the accumulated transcript, so only the last one before the quiet period
// elapses is committed. The pending text is always replaced whole, never
// merged.
type finalBuffer struct {
	mu         sync.Mutex
	pending    string
	hasPending bool
	debounced  func(func())
	commit     func(text string)
}

// newFinalBuffer creates a buffer that calls commit with each settled final.
// commit runs under the buffer's lock, so Submit and FlushNow serialize
// against an in-flight commit and a final is always delivered before
// whatever preempted it.
func newFinalBuffer(quiet time.Duration, commit func(text string)) *finalBuffer {
	if quiet <= 0 {
		quiet = defaultQuietPeriod
	}
	return &finalBuffer{
		debounced: debounce.New(quiet),
		commit:    commit,
	}
}

// Submit replaces the pending final and restarts the quiet-period timer.
func (b *finalBuffer) Submit(text string) {
	b.mu.Lock()
	b.pending = text
	b.hasPending = true
	b.mu.Unlock()
	b.debounced(b.flush)
}

// FlushNow commits the pending final immediately, if there is one. A timer
// that fires afterwards finds nothing pending and is a no-op, so FlushNow
// never causes a double commit.
func (b *finalBuffer) FlushNow() {
	b.flush()
}

func (b *finalBuffer) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasPending {
		return
	}
	text := b.pending
	b.pending = ""
	b.hasPending = false
	b.commit(text)
}
