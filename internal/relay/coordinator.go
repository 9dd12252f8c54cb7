// Package relay bridges a client-facing streaming socket to the upstream
// streaming recognizer. One Coordinator.Run call drives one session through
// its whole lifecycle: init, two concurrent pumps, and teardown.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/websocket"
	"github.com/scribeline/scribeline/internal/metrics"
	"github.com/scribeline/scribeline/internal/session"
	"github.com/scribeline/scribeline/internal/stt"
)

const (
	defaultSampleRate    = 16000
	defaultShutdownGrace = 2 * time.Second
)

// Config tunes one Coordinator. Zero values fall back to the defaults the
// relay ships with (300ms debounce, 3 reconnect attempts at 1s base).
type Config struct {
	DebounceQuiet     time.Duration
	ReconnectAttempts int
	ReconnectBase     time.Duration
	ShutdownGrace     time.Duration
}

// Coordinator runs relay sessions. It is safe for concurrent use; each Run
// call is an independent session.
type Coordinator struct {
	store  *session.Store
	dialer stt.Dialer
	cfg    Config
	logger *log.Logger
}

func NewCoordinator(store *session.Store, dialer stt.Dialer, cfg Config, logger *log.Logger) *Coordinator {
	if cfg.DebounceQuiet <= 0 {
		cfg.DebounceQuiet = defaultQuietPeriod
	}
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = defaultReconnectBase
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}
	return &Coordinator{store: store, dialer: dialer, cfg: cfg, logger: logger}
}

// upstreamLink holds the current recognizer connection. The reconnect path
// swaps it while the audio pump keeps writing through it.
type upstreamLink struct {
	mu   sync.Mutex
	conn stt.Conn
}

func (l *upstreamLink) get() stt.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

func (l *upstreamLink) set(conn stt.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
}

func (l *upstreamLink) sendAudio(data []byte) error {
	return l.get().SendAudio(data)
}

func (l *upstreamLink) terminate() {
	l.get().Terminate()
}

// liveSession is the state of one running relay session.
type liveSession struct {
	id         string
	apiKey     string
	sampleRate int

	client ClientConn
	link   *upstreamLink
	buf    *finalBuffer

	store  *session.Store
	dialer stt.Dialer
	cfg    Config
	logger *log.Logger

	cancel context.CancelFunc

	// terminalSent guards the one terminal notification a client gets:
	// either an error or session_ended, never both.
	terminalSent atomic.Bool
}

// Run drives one relay session end to end and returns once it is closed.
// Failures never propagate to the caller; a broken session must not take the
// process or any sibling session down with it.
func (c *Coordinator) Run(parent context.Context, client ClientConn) {
	init, err := c.readInit(client)
	if err != nil {
		c.logger.Printf("relay: init failed: %v", err)
		_ = client.Send(errorEvent{Type: "error", Message: err.Error()})
		return
	}

	metrics.Default.SessionsTotal.Inc()
	metrics.Default.SessionsActive.Inc()
	defer metrics.Default.SessionsActive.Dec()
	started := time.Now()
	defer func() {
		metrics.Default.SessionDuration.Observe(time.Since(started).Seconds())
	}()

	c.store.Create(init.SessionID)

	conn, err := c.dialer.Connect(parent, init.APIKey, init.SampleRate)
	if err != nil {
		msg := fmt.Sprintf("failed to connect to recognizer: %v", err)
		if errors.Is(err, stt.ErrAuth) {
			msg = "invalid AssemblyAI API key"
		} else {
			sentry.CaptureException(err)
		}
		c.logger.Printf("relay: upstream connect failed for session %s: %v", init.SessionID, err)
		_ = client.Send(errorEvent{Type: "error", Message: msg})
		c.store.Remove(init.SessionID)
		return
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	s := &liveSession{
		id:         init.SessionID,
		apiKey:     init.APIKey,
		sampleRate: init.SampleRate,
		client:     client,
		link:       &upstreamLink{conn: conn},
		store:      c.store,
		dialer:     c.dialer,
		cfg:        c.cfg,
		logger:     c.logger,
		cancel:     cancel,
	}
	s.buf = newFinalBuffer(c.cfg.DebounceQuiet, s.commitFinal)

	_ = client.Send(sessionStartedEvent{Type: "session_started", SessionID: s.id})
	c.logger.Printf("relay: session %s started (sample_rate=%d)", s.id, s.sampleRate)

	// Active: two pumps run until the first one finishes, then the session
	// terminates; first completion wins, the survivor is cancelled.
	var wg sync.WaitGroup
	firstDone := make(chan struct{}, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() { firstDone <- struct{}{} }()
		defer cancel()
		defer s.recoverPump("client_to_upstream")
		s.pumpClientToUpstream(ctx)
	}()
	go func() {
		defer wg.Done()
		defer func() { firstDone <- struct{}{} }()
		defer cancel()
		defer s.recoverPump("upstream_to_client")
		s.pumpUpstreamToClient(ctx)
	}()

	<-firstDone
	cancel()

	// Terminating: every step runs regardless of the others failing. The
	// flush precedes removal so a final settled mid-teardown still lands in
	// the transcript, and terminate/close unblock a pump parked on a read.
	s.buf.FlushNow()
	s.link.terminate()
	c.store.Remove(s.id)
	if s.terminalSent.CompareAndSwap(false, true) {
		_ = client.Send(sessionEndedEvent{Type: "session_ended"})
	}
	_ = client.Close()

	if !waitWithGrace(&wg, c.cfg.ShutdownGrace) {
		c.logger.Printf("relay: session %s pump did not exit within %v", s.id, c.cfg.ShutdownGrace)
	}
	c.logger.Printf("relay: session %s closed", s.id)
}

type initParams struct {
	SessionID  string
	APIKey     string
	SampleRate int
}

// readInit waits for the client's init message, which must be the first
// frame on the socket.
func (c *Coordinator) readInit(client ClientConn) (initParams, error) {
	msgType, data, err := client.Read()
	if err != nil {
		return initParams{}, fmt.Errorf("read init: %w", err)
	}
	if msgType != websocket.TextMessage {
		return initParams{}, errors.New("expected an init message before audio")
	}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return initParams{}, fmt.Errorf("parse init: %w", err)
	}
	if msg.Type != "init" {
		return initParams{}, fmt.Errorf("expected init message, got %q", msg.Type)
	}
	if msg.APIKey == "" || msg.SessionID == "" {
		return initParams{}, errors.New("api_key and session_id are required")
	}

	sampleRate := msg.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return initParams{SessionID: msg.SessionID, APIKey: msg.APIKey, SampleRate: sampleRate}, nil
}

// commitFinal is the single commit path for settled finals: append to the
// transcript (which clears the partial) and tell the client the turn is
// final.
func (s *liveSession) commitFinal(text string) {
	s.store.AppendFinal(s.id, text)
	metrics.Default.FinalsCommitted.Inc()
	_ = s.client.Send(turnEvent{Type: "turn", Transcript: text, IsFinal: true})
}

// pumpClientToUpstream forwards client audio frames upstream until the
// client stops, disconnects, or a forward fails. A forward failure is fatal
// for the session; the receive pump owns reconnection, so this direction
// never dials.
func (s *liveSession) pumpClientToUpstream(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := s.client.Read()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Printf("relay: client disconnected from session %s", s.id)
			} else if ctx.Err() == nil {
				s.logger.Printf("relay: client read error for session %s: %v", s.id, err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			metrics.Default.AudioFrames.Inc()
			metrics.Default.AudioBytes.Add(float64(len(data)))
			s.store.Touch(s.id)
			if err := s.link.sendAudio(data); err != nil {
				if ctx.Err() == nil {
					s.logger.Printf("relay: audio forward failed for session %s: %v", s.id, err)
				}
				return
			}

		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.logger.Printf("relay: unparseable control message on session %s: %v", s.id, err)
				continue
			}
			if msg.Type == "stop" {
				s.logger.Printf("relay: session %s stopped by client", s.id)
				return
			}
		}
	}
}

// pumpUpstreamToClient receives recognizer events, classifies them, and
// routes transcript events through the debounce buffer and control events
// straight to the client. On receive failure it is the one place that
// attempts reconnection.
func (s *liveSession) pumpUpstreamToClient(ctx context.Context) {
	rec := newReconnector(s.dialer, s.cfg.ReconnectAttempts, s.cfg.ReconnectBase, s.logger)

	for {
		raw, err := s.link.get().Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Printf("relay: recognizer connection lost for session %s: %v", s.id, err)
			next := rec.run(ctx, s.client, s.apiKey, s.sampleRate)
			if next == nil {
				if ctx.Err() == nil {
					s.sendTerminalError("lost connection to the recognizer and reconnect failed")
				}
				return
			}
			s.link.set(next)
			continue
		}

		ev := stt.Classify(raw)
		switch ev.Kind {
		case stt.KindPartial:
			// A new turn has started: the previous turn's final may not be
			// held back behind its timer.
			s.buf.FlushNow()
			s.store.SetPartial(s.id, ev.Text)
			metrics.Default.Partials.Inc()
			if err := s.client.Send(turnEvent{Type: "turn", Transcript: ev.Text, IsFinal: false}); err != nil {
				return
			}

		case stt.KindProgressiveFinal:
			s.buf.Submit(ev.Text)

		case stt.KindUnformattedFinal:
			metrics.Default.UnformattedDropped.Inc()

		case stt.KindError:
			s.logger.Printf("relay: recognizer error for session %s: %s", s.id, ev.Message)
			if err := s.client.Send(errorEvent{Type: "error", Message: ev.Message}); err != nil {
				return
			}

		case stt.KindSessionReady:
			if err := s.client.Send(sessionReadyEvent{Type: "session_ready"}); err != nil {
				return
			}

		case stt.KindSessionTerminated:
			s.logger.Printf("relay: recognizer session terminated for %s", s.id)
		}
	}
}

// sendTerminalError delivers the session's single terminal notification. A
// later session_ended is suppressed; only the final determination reaches
// the client.
func (s *liveSession) sendTerminalError(msg string) {
	if s.terminalSent.CompareAndSwap(false, true) {
		_ = s.client.Send(errorEvent{Type: "error", Message: msg})
	}
}

// recoverPump converts a pump panic into a termination trigger. The deferred
// cancel after it stops the sibling pump.
func (s *liveSession) recoverPump(name string) {
	if r := recover(); r != nil {
		s.logger.Printf("relay: panic in %s pump for session %s: %v", name, s.id, r)
		sentry.CurrentHub().Recover(r)
	}
}

// waitWithGrace waits for wg up to grace and reports whether it finished.
// The pumps it waits for are unblocked by the teardown closes, so a timeout
// here means a stuck socket, not normal operation.
func waitWithGrace(wg *sync.WaitGroup, grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}
