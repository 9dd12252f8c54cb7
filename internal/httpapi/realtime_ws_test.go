package httpapi

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scribeline/scribeline/internal/relay"
	"github.com/scribeline/scribeline/internal/session"
	"github.com/scribeline/scribeline/internal/stt"
)

// stubUpstream is a scripted recognizer connection for socket-level tests.
type stubUpstream struct {
	events chan []byte
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	audio int
}

func newStubUpstream() *stubUpstream {
	return &stubUpstream{
		events: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (u *stubUpstream) SendAudio(data []byte) error {
	u.mu.Lock()
	u.audio++
	u.mu.Unlock()
	return nil
}

func (u *stubUpstream) Receive() ([]byte, error) {
	select {
	case ev := <-u.events:
		return ev, nil
	case <-u.closed:
		return nil, io.EOF
	}
}

func (u *stubUpstream) Terminate() {
	u.once.Do(func() { close(u.closed) })
}

type stubDialer struct {
	conn stt.Conn
}

func (d *stubDialer) Connect(context.Context, string, int) (stt.Conn, error) {
	return d.conn, nil
}

func newWSTestServer(t *testing.T, dialer stt.Dialer, registry *SessionRegistry) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := session.NewStore()
	coord := relay.NewCoordinator(store, dialer, relay.Config{
		DebounceQuiet: 20 * time.Millisecond,
	}, logger)
	srv := httptest.NewServer(NewRouter(logger, store, coord, registry))
	t.Cleanup(srv.Close)
	return srv
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev map[string]any
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestRealtimeWS_FullSession(t *testing.T) {
	upstream := newStubUpstream()
	srv := newWSTestServer(t, &stubDialer{conn: upstream}, NewSessionRegistry())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/realtime"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	init := `{"type":"init","session_id":"s1","api_key":"k","sample_rate":16000}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(init)); err != nil {
		t.Fatalf("send init: %v", err)
	}

	if ev := readEvent(t, conn); ev["type"] != "session_started" || ev["session_id"] != "s1" {
		t.Fatalf("first event = %v, want session_started for s1", ev)
	}

	upstream.events <- []byte(`{"type":"Begin"}`)
	if ev := readEvent(t, conn); ev["type"] != "session_ready" {
		t.Fatalf("event = %v, want session_ready", ev)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	upstream.events <- []byte(`{"type":"Turn","transcript":"hi","end_of_turn":false,"turn_is_formatted":false}`)
	ev := readEvent(t, conn)
	if ev["type"] != "turn" || ev["is_final"] != false || ev["transcript"] != "hi" {
		t.Fatalf("event = %v, want partial turn %q", ev, "hi")
	}

	upstream.events <- []byte(`{"type":"Turn","transcript":"Hi there.","end_of_turn":true,"turn_is_formatted":true}`)
	ev = readEvent(t, conn)
	if ev["type"] != "turn" || ev["is_final"] != true || ev["transcript"] != "Hi there." {
		t.Fatalf("event = %v, want final turn %q", ev, "Hi there.")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)); err != nil {
		t.Fatalf("send stop: %v", err)
	}
	if ev := readEvent(t, conn); ev["type"] != "session_ended" {
		t.Fatalf("event = %v, want session_ended", ev)
	}
}

func TestRealtimeWS_InvalidInit(t *testing.T) {
	srv := newWSTestServer(t, &stubDialer{conn: newStubUpstream()}, NewSessionRegistry())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/realtime"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"init"}`)); err != nil {
		t.Fatalf("send init: %v", err)
	}

	if ev := readEvent(t, conn); ev["type"] != "error" {
		t.Fatalf("event = %v, want error", ev)
	}
}

func TestRealtimeWS_RejectedWhileDraining(t *testing.T) {
	registry := NewSessionRegistry()
	registry.StartDraining()
	srv := newWSTestServer(t, &stubDialer{conn: newStubUpstream()}, registry)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/realtime"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial should fail while draining")
	}
	if resp == nil || resp.StatusCode != 503 {
		t.Errorf("handshake response = %+v, want 503", resp)
	}
}
