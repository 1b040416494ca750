// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	handlers "github.com/newthinker/stratboard/internal/api/handler/api"
	"github.com/newthinker/stratboard/internal/api/middleware"
	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
	"github.com/newthinker/stratboard/internal/ingest"
	"github.com/newthinker/stratboard/internal/metrics"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for the dashboard API
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	router     chi.Router
	deps       Dependencies
	cfg        Config
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	APIKey         string
	CORSOrigins    []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	MaxUploadFiles int
	MetricsPath    string
}

// Dependencies holds the services the handlers need. Metrics may be nil.
type Dependencies struct {
	Store   reportdb.Store
	Ingest  *ingest.Service
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Store == nil || deps.Ingest == nil {
		return nil, fmt.Errorf("store and ingest service are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		logger: logger,
		router: chi.NewRouter(),
		deps:   deps,
		cfg:    cfg,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures middleware and all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(metrics.LoggingMiddleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.APIKeyHeader,
			middleware.UserIDHeader, middleware.UserNameHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if s.deps.Metrics != nil {
		r.Use(metrics.HTTPMiddleware(s.deps.Metrics))
	}
	r.Use(middleware.UserIdentity)

	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, s.cfg.MetricsPath,
			promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}

	strategies := handlers.NewStrategiesHandler(s.deps.Store, s.deps.Ingest, handlers.UploadLimits{
		MaxBytes: s.cfg.MaxUploadBytes,
		MaxFiles: s.cfg.MaxUploadFiles,
	})
	reports := handlers.NewReportsHandler(s.deps.Store, s.deps.Ingest, s.cfg.MaxUploadBytes)
	community := handlers.NewCommunityHandler(s.deps.Store, s.deps.Metrics)
	compare := handlers.NewCompareHandler(s.deps.Store)
	reference := handlers.NewReferenceHandler(s.deps.Store)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/strategies", strategies.List)
		r.Get("/strategies/{id}", strategies.Get)
		r.Get("/reports/{id}", reports.Get)
		r.Get("/reports/{id}/raw", reports.Raw)
		r.Get("/reports/{id}/ratings", community.Ratings)
		r.Get("/reports/{id}/comments", community.Comments)
		r.Get("/compare", compare.Compare)
		r.Get("/symbols", reference.Symbols)
		r.Get("/timeframes", reference.Timeframes)

		// Writes require the API key when one is configured
		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(s.cfg.APIKey))

			r.Post("/strategies", strategies.Create)
			r.Post("/strategy-reports", reports.CreateBatch)

			r.With(middleware.RequireUser).Post("/reports/{id}/ratings", community.Rate)
			r.With(middleware.RequireUser).Post("/reports/{id}/comments", community.Comment)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusNotFound, response.ErrorResponse{Error: "route not found", Code: core.ErrNotFound.Code})
	})
}

func (s *Server) corsOrigins() []string {
	if len(s.cfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.CORSOrigins
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
