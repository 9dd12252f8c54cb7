package httpapi

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient adapts a gorilla connection to the relay's ClientConn. The write
// mutex serializes sends from the relay pumps and the debounce timer; reads
// stay on the single pump goroutine.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Read() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *wsClient) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}

func (r *Router) handleRealtimeWS(w http.ResponseWriter, req *http.Request) {
	if !r.sessions.Add() {
		http.Error(w, "server is draining", http.StatusServiceUnavailable)
		return
	}
	defer r.sessions.Done()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("realtime_ws: upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	defer client.Close()

	r.coordinator.Run(req.Context(), client)
}
