package relay

import (
	"context"
	"log"
	"time"

	"github.com/scribeline/scribeline/internal/metrics"
	"github.com/scribeline/scribeline/internal/stt"
)

const (
	defaultReconnectAttempts = 3
	defaultReconnectBase     = time.Second
)

// reconnector re-dials the recognizer after a receive failure, with bounded
// attempts and exponential backoff: base, 2*base, 4*base, ... The client is
// notified before each attempt so the UI can show progress.
//
// Only the receive pump invokes it. The send direction treats its failures
// as fatal, so there is a single authority on upstream connection health and
// no competing reconnect attempts.
type reconnector struct {
	dialer   stt.Dialer
	attempts int
	base     time.Duration
	logger   *log.Logger
}

func newReconnector(dialer stt.Dialer, attempts int, base time.Duration, logger *log.Logger) *reconnector {
	if attempts <= 0 {
		attempts = defaultReconnectAttempts
	}
	if base <= 0 {
		base = defaultReconnectBase
	}
	return &reconnector{dialer: dialer, attempts: attempts, base: base, logger: logger}
}

// run returns the replacement connection, or nil when every attempt failed
// or the session was cancelled. Audio sent while the link was down is lost;
// nothing is buffered or replayed.
func (r *reconnector) run(ctx context.Context, client ClientConn, apiKey string, sampleRate int) stt.Conn {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		delay := r.base << (attempt - 1)
		r.logger.Printf("relay: reconnect attempt %d/%d in %v", attempt, r.attempts, delay)

		if err := client.Send(reconnectingEvent{Type: "reconnecting", Attempt: attempt}); err != nil {
			// Client is gone; nobody left to relay to.
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		metrics.Default.ReconnectAttempts.Inc()
		conn, err := r.dialer.Connect(ctx, apiKey, sampleRate)
		if err != nil {
			r.logger.Printf("relay: reconnect attempt %d failed: %v", attempt, err)
			continue
		}
		r.logger.Printf("relay: reconnected after %d attempt(s)", attempt)
		return conn
	}

	metrics.Default.ReconnectFailures.Inc()
	return nil
}
