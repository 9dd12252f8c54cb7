package app

import (
	"log"
	"net/http"
	"time"

	"github.com/scribeline/scribeline/internal/httpapi"
	"github.com/scribeline/scribeline/internal/jobs"
	"github.com/scribeline/scribeline/internal/relay"
	"github.com/scribeline/scribeline/internal/session"
	"github.com/scribeline/scribeline/internal/stt"
)

type App struct {
	cfg         Config
	logger      *log.Logger
	store       *session.Store
	coordinator *relay.Coordinator
	reaper      *jobs.SessionReaper
}

func New(cfg Config, logger *log.Logger) *App {
	store := session.NewStore()
	dialer := stt.NewAssemblyAIDialer(cfg.UpstreamURL, logger)

	coordinator := relay.NewCoordinator(store, dialer, relay.Config{
		DebounceQuiet:     time.Duration(cfg.DebounceQuietMs) * time.Millisecond,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectBase:     time.Duration(cfg.ReconnectBaseMs) * time.Millisecond,
	}, logger)

	reaper := jobs.NewSessionReaper(store, logger, cfg.SessionMaxAge, cfg.ReapInterval)

	return &App{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		coordinator: coordinator,
		reaper:      reaper,
	}
}

func (a *App) Router(sessions *httpapi.SessionRegistry) http.Handler {
	return httpapi.NewRouter(a.logger, a.store, a.coordinator, sessions)
}

func (a *App) Start() {
	a.reaper.Start()
}

func (a *App) Close() {
	a.reaper.Stop()
}
