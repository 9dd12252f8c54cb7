package stt

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const assemblyAIStreamURL = "wss://streaming.assemblyai.com/v3/ws"

// Connection parameters fixed by the relay: raw PCM 16-bit little-endian
// input, the multilingual streaming model, and formatted (punctuated)
// finals. Only the sample rate varies per session.
const (
	audioEncoding = "pcm_s16le"
	speechModel   = "universal-streaming-multilingual"
)

// AssemblyAIDialer opens connections to the AssemblyAI v3 realtime
// streaming API.
type AssemblyAIDialer struct {
	url    string
	logger *log.Logger
}

// NewAssemblyAIDialer creates a dialer for the given endpoint. An empty url
// uses the production AssemblyAI endpoint.
func NewAssemblyAIDialer(url string, logger *log.Logger) *AssemblyAIDialer {
	if url == "" {
		url = assemblyAIStreamURL
	}
	return &AssemblyAIDialer{url: url, logger: logger}
}

// Connect performs the streaming handshake. A 401/403 handshake response is
// reported as ErrAuth so callers can distinguish a bad credential from a
// transient connect failure.
func (d *AssemblyAIDialer) Connect(ctx context.Context, apiKey string, sampleRate int) (Conn, error) {
	url := fmt.Sprintf("%s?sample_rate=%d&encoding=%s&speech_model=%s&format_turns=true",
		d.url, sampleRate, audioEncoding, speechModel)

	headers := http.Header{}
	headers.Set("Authorization", apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("assemblyai handshake: %w", ErrAuth)
		}
		return nil, fmt.Errorf("failed to connect to AssemblyAI: %w", err)
	}

	// Short id to correlate log lines across reconnects within a session.
	id := uuid.NewString()[:8]
	d.logger.Printf("assemblyai: connected conn=%s sample_rate=%d", id, sampleRate)

	return &assemblyConn{conn: conn, id: id, logger: d.logger}, nil
}

type assemblyConn struct {
	conn      *websocket.Conn
	id        string
	logger    *log.Logger
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *assemblyConn) SendAudio(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (c *assemblyConn) Receive() ([]byte, error) {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("recv: %w", err)
		}
		// Events are JSON text frames; anything else is ignored.
		if msgType != websocket.TextMessage {
			continue
		}
		return msg, nil
	}
}

func (c *assemblyConn) Terminate() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Terminate"}`))
		c.writeMu.Unlock()
		_ = c.conn.Close()
		c.logger.Printf("assemblyai: conn=%s terminated", c.id)
	})
}
