package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scribeline/scribeline/internal/relay"
	"github.com/scribeline/scribeline/internal/session"
)

type Router struct {
	logger      *log.Logger
	store       *session.Store
	coordinator *relay.Coordinator
	sessions    *SessionRegistry
	mux         *http.ServeMux
}

func NewRouter(logger *log.Logger, store *session.Store, coordinator *relay.Coordinator, sessions *SessionRegistry) http.Handler {
	r := &Router{
		logger:      logger,
		store:       store,
		coordinator: coordinator,
		sessions:    sessions,
		mux:         http.NewServeMux(),
	}
	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health and readiness
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Realtime transcription relay
	r.mux.HandleFunc("GET /ws/realtime", r.handleRealtimeWS)

	// Collaborator reads (summarizer polling, UI live preview)
	r.mux.HandleFunc("GET /api/sessions/{id}/transcript", r.handleGetTranscript)
	r.mux.HandleFunc("GET /api/sessions/{id}/partial", r.handleGetPartial)

	// Prometheus metrics
	r.mux.Handle("GET /metrics", promhttp.Handler())
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.sessions.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}
