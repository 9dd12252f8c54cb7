package relay

// clientMessage is an inbound text frame from the browser. Only "init" and
// "stop" are recognized.
type clientMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// Outbound events sent to the browser.

type sessionStartedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type sessionReadyEvent struct {
	Type string `json:"type"`
}

type turnEvent struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type reconnectingEvent struct {
	Type    string `json:"type"`
	Attempt int    `json:"attempt"`
}

type sessionEndedEvent struct {
	Type string `json:"type"`
}

// ClientConn is the relay's view of the browser-facing socket. Read is
// called from a single goroutine; Send and Close must be safe for
// concurrent use.
type ClientConn interface {
	Read() (messageType int, data []byte, err error)
	Send(v any) error
	Close() error
}
