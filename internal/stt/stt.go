package stt

import (
	"context"
	"errors"
)

// Conn is one live connection to the streaming recognizer.
type Conn interface {
	// SendAudio forwards one opaque audio frame. Safe for concurrent use
	// with Terminate.
	SendAudio(data []byte) error

	// Receive blocks until the next recognizer event arrives and returns
	// its raw payload. Events are returned one at a time, in arrival order.
	Receive() ([]byte, error)

	// Terminate closes the connection gracefully: it sends a terminate
	// control message, then closes the socket. Failures are swallowed;
	// teardown must never raise.
	Terminate()
}

// Dialer opens recognizer connections.
type Dialer interface {
	Connect(ctx context.Context, apiKey string, sampleRate int) (Conn, error)
}

// ErrAuth marks a connect failure caused by a rejected credential. Callers
// check it with errors.Is to surface the failure verbatim instead of
// retrying.
var ErrAuth = errors.New("recognizer rejected credentials")
