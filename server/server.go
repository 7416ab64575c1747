// Package server implements the HTTP API for the hearthd daemon.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hearthlabs/hearth/memory"
	"github.com/hearthlabs/hearth/profiler"
	"github.com/hearthlabs/hearth/runtime"
	"github.com/hearthlabs/hearth/trigger"
)

// requestTimeout bounds every request; profile refreshes call the oracle
// once per history day, so the ceiling is generous.
const requestTimeout = 60 * time.Second

// Server is the hearthd HTTP API over the trigger registry, memory bank,
// profiler, and dispatcher.
type Server struct {
	registry   *trigger.Registry
	bank       *memory.Bank
	profiler   *profiler.Profiler
	dispatcher *runtime.Dispatcher
	poller     *runtime.Poller
	logger     zerolog.Logger

	httpServer *http.Server
	startedAt  time.Time
}

// Config holds server configuration options.
type Config struct {
	Listen string
	Logger zerolog.Logger
}

// New creates the server and builds its router.
func New(cfg Config, registry *trigger.Registry, bank *memory.Bank, prof *profiler.Profiler, dispatcher *runtime.Dispatcher, poller *runtime.Poller) *Server {
	s := &Server{
		registry:   registry,
		bank:       bank,
		profiler:   prof,
		dispatcher: dispatcher,
		poller:     poller,
		logger:     cfg.Logger.With().Str("component", "http_server").Logger(),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Post("/triggers", s.handleRegisterTrigger)
	r.Get("/triggers", s.handleListTriggers)
	r.Delete("/triggers/{id}", s.handleCancelTrigger)

	r.Get("/dispatches/next", s.handleNextDispatch)
	r.Post("/dispatches", s.handleManualDispatch)

	r.Post("/memory/interactions", s.handleAppendInteraction)
	r.Post("/memory/index", s.handleBuildIndex)
	r.Post("/memory/search", s.handleSearchMemory)
	r.Get("/memory/{user}/contains", s.handleContains)
	r.Get("/memory/export", s.handleExportMemory)
	r.Post("/memory/import", s.handleImportMemory)

	r.Get("/profiles/{user}", s.handleGetProfile)
	r.Post("/profiles/{user}/refresh", s.handleRefreshProfile)

	r.Post("/reset", s.handleReset)
	r.Get("/healthz", s.handleHealthz)

	return r
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the listener until Shutdown is called.
func (s *Server) Start() error {
	s.startedAt = time.Now()
	s.logger.Info().Str("listen", s.httpServer.Addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs every request once it completes, mirroring the status
// code so failures stand out.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		evt := s.logger.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			evt = s.logger.Error()
		}
		evt.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("http_method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}
