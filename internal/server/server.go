// Package server exposes the admin monitor facade: the HTTP API, the
// SSE and websocket event streams, and the periodic status monitor.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/config"
	"github.com/mcfalli/TickStockAppV2-sub021/internal/di"
	jobshandlers "github.com/mcfalli/TickStockAppV2-sub021/internal/modules/jobs/handlers"
	monitoringhandlers "github.com/mcfalli/TickStockAppV2-sub021/internal/modules/monitoring/handlers"
	universehandlers "github.com/mcfalli/TickStockAppV2-sub021/internal/modules/universe/handlers"
)

// Server is the HTTP server for the operator API and event streams.
type Server struct {
	cfg           *config.Config
	container     *di.Container
	router        *chi.Mux
	server        *http.Server
	statusMonitor *StatusMonitor
	startedAt     time.Time
	log           zerolog.Logger
}

// New assembles the router and handlers around an already-wired
// container. Nothing starts listening until Start is called.
func New(cfg *config.Config, container *di.Container, log zerolog.Logger) *Server {
	s := &Server{
		cfg:           cfg,
		container:     container,
		router:        chi.NewRouter(),
		statusMonitor: NewStatusMonitor(container, cfg.DataDir, log),
		startedAt:     time.Now(),
		log:           log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	// Streaming endpoints are registered outside the timeout and
	// compression middleware so long-lived connections are neither cut
	// off after 60s nor buffered by the gzip writer.
	s.router.Group(func(r chi.Router) {
		r.Get("/api/events/stream", s.handleEventStream)
		r.Get("/api/events/ws", s.handleEventSocket)
	})

	systemHandlers := NewSystemHandlers(s.container, s.cfg.DataDir, s.startedAt, s.log)
	logHandlers := NewLogHandlers(s.cfg.LogsDir(), s.log)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !s.cfg.DevMode {
			r.Use(middleware.Compress(5))
		}

		r.Route("/api", func(r chi.Router) {
			universehandlers.NewHandler(s.container.UniverseService, s.log).RegisterRoutes(r)
			jobshandlers.NewHandler(s.container.JobService, s.log).RegisterRoutes(r)
			monitoringhandlers.NewHandler(
				s.container.EventWindow,
				s.container.AlertTracker,
				s.container.AlertRepo,
				s.container.ErrorRepo,
				s.container.Bus,
				s.log,
			).RegisterRoutes(r)

			r.Route("/system", func(r chi.Router) {
				r.Get("/info", systemHandlers.HandleSystemInfo)
				r.Get("/database/stats", systemHandlers.HandleDatabaseStats)
				r.Get("/disk", systemHandlers.HandleDiskUsage)
				r.Get("/logs/list", logHandlers.HandleListLogs)
				r.Get("/logs", logHandlers.HandleGetLogs)
			})
		})
	})
}

// Start launches the status monitor and begins serving requests. It
// blocks until the server stops.
func (s *Server) Start() error {
	s.statusMonitor.Start(statusInterval)

	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops the status monitor and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.statusMonitor.Stop()

	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
