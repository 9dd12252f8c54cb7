// Package jobs contains background maintenance jobs.
package jobs

import (
	"log"
	"sync"
	"time"

	"github.com/scribeline/scribeline/internal/metrics"
	"github.com/scribeline/scribeline/internal/session"
)

// SessionReaper evicts sessions whose last activity exceeds maxAge. A relay
// session removes its own store entry on teardown; the reaper bounds memory
// if one ever leaks.
type SessionReaper struct {
	store    *session.Store
	logger   *log.Logger
	maxAge   time.Duration
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSessionReaper(store *session.Store, logger *log.Logger, maxAge, interval time.Duration) *SessionReaper {
	if maxAge == 0 {
		maxAge = 4 * time.Hour
	}
	if interval == 0 {
		interval = 10 * time.Minute
	}
	return &SessionReaper{
		store:    store,
		logger:   logger,
		maxAge:   maxAge,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background job.
func (j *SessionReaper) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("SessionReaper: started (interval=%v, max_age=%v)", j.interval, j.maxAge)
}

// Stop gracefully stops the background job.
func (j *SessionReaper) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("SessionReaper: stopped")
}

func (j *SessionReaper) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			if evicted := j.store.EvictStale(j.maxAge); evicted > 0 {
				metrics.Default.SessionsEvicted.Add(float64(evicted))
				j.logger.Printf("SessionReaper: evicted %d stale session(s)", evicted)
			}
		}
	}
}
