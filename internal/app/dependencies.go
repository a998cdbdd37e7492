// Package app wires the ledger services from configuration. It is shared by the
// API server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/FACorreiaa/poker-ledger/internal/domain/categorization"
	importhandler "github.com/FACorreiaa/poker-ledger/internal/domain/import/handler"
	importrepo "github.com/FACorreiaa/poker-ledger/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/poker-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/poker-ledger/internal/domain/reclassify"
	"github.com/FACorreiaa/poker-ledger/pkg/config"
	"github.com/FACorreiaa/poker-ledger/pkg/cron"
	"github.com/FACorreiaa/poker-ledger/pkg/db"
	"github.com/FACorreiaa/poker-ledger/pkg/interceptors"
	"github.com/FACorreiaa/poker-ledger/pkg/metrics"
	"github.com/FACorreiaa/poker-ledger/pkg/storage"
	"github.com/FACorreiaa/poker-ledger/pkg/tracing"
)

const serviceName = "poker-ledger"

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracing *tracing.Provider

	// Repositories
	RecordStore *importrepo.PostgresStore
	Archive     storage.Archive // nil when archiving is disabled

	// Services
	Categorizer   *categorization.Categorizer
	Reclassifier  *reclassify.Reclassifier
	ImportService *importservice.ImportService
	Scheduler     *cron.Scheduler // nil when no schedule is configured

	// Handlers
	Auth          *interceptors.Authenticator
	ImportHandler *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := deps.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	if err := deps.initDatabase(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initTracing installs the global tracer provider. Spans go to stderr so they do
// not mix with the JSON logs on stdout.
func (d *Dependencies) initTracing() error {
	provider, err := tracing.New(tracing.Config{
		Exporter:    d.Config.Observability.TracingExporter,
		ServiceName: serviceName,
		SampleRatio: d.Config.Observability.TracingSampleRatio,
	}, os.Stderr)
	if err != nil {
		return err
	}
	provider.Install()
	d.Tracing = provider

	d.Logger.Info("tracing initialized", slog.String("exporter", d.Config.Observability.TracingExporter))
	return nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.RecordStore = importrepo.NewPostgresStore(d.DB.Pool)

	archive, err := storage.New(storage.Config{LocalPath: d.Config.Storage.LocalPath})
	if err != nil {
		return fmt.Errorf("failed to init import archive: %w", err)
	}
	d.Archive = archive

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	categorizer, err := NewCategorizer(d.Config.Import)
	if err != nil {
		return err
	}
	d.Categorizer = categorizer

	d.Reclassifier = reclassify.New(d.RecordStore, categorizer.TierScheme(), d.Logger).
		WithMetrics(d.Metrics).
		WithTracerProvider(d.Tracing)

	d.ImportService = importservice.NewImportService(d.RecordStore, categorizer, d.Logger).
		WithReclassifier(d.Reclassifier).
		WithMetrics(d.Metrics).
		WithTracerProvider(d.Tracing).
		WithOptions(importservice.Options{
			ChunkSize:        d.Config.Import.ChunkSize,
			ProgressEvery:    d.Config.Import.ProgressEvery,
			DuplicatePreview: d.Config.Import.DuplicatePreview,
			DedupMode:        d.Config.Import.DedupMode,
		})

	if d.Config.Reclassify.Schedule != "" {
		d.Scheduler = cron.NewScheduler(d.Config.Reclassify.Schedule, d.RecordStore, d.Reclassifier, d.Logger)
	}

	d.Logger.Info("services initialized",
		slog.String("tier_scheme", categorizer.TierScheme().Name()),
		slog.String("dedup_mode", string(d.Config.Import.DedupMode)),
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.Auth = interceptors.NewAuthenticator(d.Config.Auth.JWTSecret, d.Logger)
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Reclassifier, d.RecordStore, d.Logger).
		WithMaxUpload(int64(d.Config.Server.MaxUploadMB) << 20)
	if d.Archive != nil {
		d.ImportHandler.WithArchive(d.Archive)
	}
	d.Logger.Info("handlers initialized")
}

// NewCategorizer builds the categorizer from the embedded rule set, or from the
// configured rules file, with the configured tier scheme.
func NewCategorizer(cfg config.ImportConfig) (*categorization.Categorizer, error) {
	scheme, err := categorization.ParseTierScheme(cfg.TierScheme)
	if err != nil {
		return nil, err
	}
	if cfg.RulesFile == "" {
		return categorization.NewDefault(scheme)
	}

	rules, err := categorization.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load categorization rules: %w", err)
	}
	return categorization.New(rules, scheme)
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Tracing.Shutdown(ctx); err != nil {
			d.Logger.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}
	d.Logger.Info("cleanup completed")
}
