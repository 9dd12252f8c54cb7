package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scribeline/scribeline/internal/stt"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// --- fake browser-facing connection ---

type frame struct {
	msgType int
	data    []byte
	err     error
}

type fakeClient struct {
	in        chan frame
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	sent    []any
	sendErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		in:     make(chan frame, 32),
		closed: make(chan struct{}),
	}
}

func (c *fakeClient) Read() (int, []byte, error) {
	select {
	case f := <-c.in:
		if f.err != nil {
			return 0, nil, f.err
		}
		return f.msgType, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("client connection closed")
	}
}

func (c *fakeClient) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeClient) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeClient) failSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

func (c *fakeClient) events() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeClient) sendInit(sessionID, apiKey string, sampleRate int) {
	data, _ := json.Marshal(clientMessage{Type: "init", SessionID: sessionID, APIKey: apiKey, SampleRate: sampleRate})
	c.in <- frame{msgType: websocket.TextMessage, data: data}
}

func (c *fakeClient) sendAudio(data []byte) {
	c.in <- frame{msgType: websocket.BinaryMessage, data: data}
}

func (c *fakeClient) sendText(raw string) {
	c.in <- frame{msgType: websocket.TextMessage, data: []byte(raw)}
}

func (c *fakeClient) sendStop() {
	c.in <- frame{msgType: websocket.TextMessage, data: []byte(`{"type":"stop"}`)}
}

func (c *fakeClient) disconnect(err error) {
	c.in <- frame{err: err}
}

// --- fake recognizer connection and dialer ---

type fakeUpstream struct {
	events chan []byte
	failCh chan struct{}
	closed chan struct{}

	failOnce sync.Once
	termOnce sync.Once

	mu         sync.Mutex
	audio      [][]byte
	sendErr    error
	terminated bool
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		events: make(chan []byte, 32),
		failCh: make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (u *fakeUpstream) SendAudio(data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.sendErr != nil {
		return u.sendErr
	}
	u.audio = append(u.audio, data)
	return nil
}

func (u *fakeUpstream) Receive() ([]byte, error) {
	select {
	case ev := <-u.events:
		return ev, nil
	case <-u.failCh:
		return nil, errors.New("upstream connection lost")
	case <-u.closed:
		return nil, errors.New("upstream connection closed")
	}
}

func (u *fakeUpstream) Terminate() {
	u.termOnce.Do(func() {
		u.mu.Lock()
		u.terminated = true
		u.mu.Unlock()
		close(u.closed)
	})
}

func (u *fakeUpstream) emit(raw string) {
	u.events <- []byte(raw)
}

// fail makes the next Receive return an error, simulating link loss.
func (u *fakeUpstream) fail() {
	u.failOnce.Do(func() { close(u.failCh) })
}

func (u *fakeUpstream) audioFrames() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.audio)
}

func (u *fakeUpstream) wasTerminated() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.terminated
}

type connectResult struct {
	conn stt.Conn
	err  error
}

type fakeDialer struct {
	mu     sync.Mutex
	script []connectResult
	calls  []time.Time
}

func (d *fakeDialer) Connect(_ context.Context, _ string, _ int) (stt.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, time.Now())
	if len(d.script) == 0 {
		return nil, errors.New("unexpected connect call")
	}
	next := d.script[0]
	d.script = d.script[1:]
	return next.conn, next.err
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDialer) callTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]time.Time, len(d.calls))
	copy(out, d.calls)
	return out
}

// --- assertion helpers ---

func eventType(ev any) string {
	switch e := ev.(type) {
	case sessionStartedEvent:
		return e.Type
	case sessionReadyEvent:
		return e.Type
	case turnEvent:
		return e.Type
	case errorEvent:
		return e.Type
	case reconnectingEvent:
		return e.Type
	case sessionEndedEvent:
		return e.Type
	default:
		return fmt.Sprintf("unknown(%T)", ev)
	}
}

func countFinalTurns(events []any, transcript string) int {
	n := 0
	for _, ev := range events {
		if turn, ok := ev.(turnEvent); ok && turn.IsFinal && turn.Transcript == transcript {
			n++
		}
	}
	return n
}
