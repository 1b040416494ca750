// Package app wires configuration into the running dashboard: the report
// store, the document archive, metrics, ingestion and the HTTP API.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/stratboard/internal/api"
	"github.com/newthinker/stratboard/internal/config"
	"github.com/newthinker/stratboard/internal/ingest"
	"github.com/newthinker/stratboard/internal/metrics"
	"github.com/newthinker/stratboard/internal/report"
	"github.com/newthinker/stratboard/internal/storage/archive"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *reportdb.DB
	store   *reportdb.SQLStore
	archive archive.Storage
	metrics *metrics.Registry
	ingest  *ingest.Service
	server  *api.Server

	mu      sync.Mutex
	running bool
}

// New opens the database and builds every component from cfg. The caller
// must Close the App.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := reportdb.Open(reportdb.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening report database: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  reportdb.NewSQLStore(db),
	}

	a.archive, err = newArchive(cfg.Archive)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}

	opts := []ingest.Option{
		ingest.WithLogger(logger.Named("ingest")),
		ingest.WithTimeframe(report.Timeframe{
			Name:    cfg.Ingest.Timeframe,
			Minutes: cfg.Ingest.TimeframeMinutes,
		}),
	}
	if a.archive != nil {
		opts = append(opts, ingest.WithArchive(a.archive))
	}
	if a.metrics != nil {
		opts = append(opts, ingest.WithMetrics(a.metrics))
	}
	a.ingest = ingest.NewService(a.store, opts...)

	a.server, err = api.NewServer(api.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		APIKey:         cfg.Server.APIKey,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: int64(cfg.Ingest.MaxUploadMB) << 20,
		MaxUploadFiles: cfg.Ingest.MaxFiles,
		MetricsPath:    cfg.Metrics.Path,
	}, api.Dependencies{
		Store:   a.store,
		Ingest:  a.ingest,
		Metrics: a.metrics,
	}, logger.Named("api"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating server: %w", err)
	}

	logger.Info("application initialized",
		zap.String("database", db.Path()),
		zap.String("archive", archiveType(cfg.Archive)),
		zap.Bool("metrics", a.metrics != nil),
	)
	return a, nil
}

// newArchive returns nil when archiving is disabled.
func newArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "localfs":
		fs, err := archive.NewLocalFS(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "s3":
		s3, err := archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

func archiveType(cfg config.ArchiveConfig) string {
	if cfg.Type == "" {
		return "disabled"
	}
	return cfg.Type
}

// Ingest returns the ingestion service.
func (a *App) Ingest() *ingest.Service {
	return a.ingest
}

// Store returns the report store.
func (a *App) Store() reportdb.Store {
	return a.store
}

// Server returns the HTTP server.
func (a *App) Server() *api.Server {
	return a.server
}

// Run serves HTTP until ctx is cancelled, then shuts the server down
// within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}

// Close releases the database.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
