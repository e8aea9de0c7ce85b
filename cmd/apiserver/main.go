// Package main runs the deckvault REST API server together with its
// scheduled catalog sync and backup jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/api"
	"github.com/ramonehamilton/deckvault/internal/auth"
	"github.com/ramonehamilton/deckvault/internal/backup"
	"github.com/ramonehamilton/deckvault/internal/catalog"
	"github.com/ramonehamilton/deckvault/internal/config"
	"github.com/ramonehamilton/deckvault/internal/events"
	"github.com/ramonehamilton/deckvault/internal/logging"
	"github.com/ramonehamilton/deckvault/internal/service"
	"github.com/ramonehamilton/deckvault/internal/storage"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

var (
	configPath = pflag.StringP("config", "c", "deckvault.toml", "Path to the TOML config file")
	port       = pflag.IntP("port", "p", 0, "API server port (overrides config)")
	dbPath     = pflag.String("db-path", "", "Database path (overrides config)")
)

func main() {
	pflag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "deckvault: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := events.NewEventDispatcher(logging.Component(logger, "events"))
	dispatcher.Register(events.NewLoggingObserver(logging.Component(logger, "events")))

	accessTTL, refreshTTL, err := cfg.TokenTTLs()
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(cfg.JWT.Secret, accessTTL, refreshTTL)
	if err != nil {
		return err
	}

	services := &service.Services{
		DB:        db,
		Tokens:    issuer,
		Publisher: dispatcher,
		Logger:    logging.Component(logger, "service"),
	}

	manager, err := newBackupManager(ctx, cfg, db, dispatcher, logger)
	if err != nil {
		return err
	}
	syncer := newSyncer(cfg, db, manager, dispatcher, logger)

	defaults := backup.ScheduleConfig{
		Enabled:   cfg.Backup.Enabled,
		Cron:      cfg.Backup.Cron,
		Retention: cfg.Backup.Retention,
	}
	scheduler := backup.NewScheduler(backup.SchedulerOptions{
		Manager:  manager,
		Settings: repository.NewSettingsRepository(db.Conn()),
		Defaults: defaults,
		SyncCron: cfg.Catalog.SyncCron,
		SyncJob: func(ctx context.Context) error {
			_, err := syncer.Run(ctx, "schedule")
			return err
		},
		Logger: logging.Component(logger, "scheduler"),
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	cards, err := service.NewCardService(services, cfg.Catalog.CacheSize)
	if err != nil {
		return err
	}
	dispatcher.Register(cards.CacheObserver())

	facades := &api.Facades{
		Accounts:  service.NewAccountService(services),
		Cards:     cards,
		Decks:     service.NewDeckService(services),
		Shares:    service.NewShareService(services),
		Inventory: service.NewInventoryService(services),
		Shopping:  service.NewShoppingService(services),
		Admin:     service.NewAdminService(services, syncer, manager, scheduler),
	}

	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}
	server := api.NewServer(&api.Config{
		Port:           cfg.Server.Port,
		Environment:    cfg.Server.Environment,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: timeout,
	}, facades, logging.Component(logger, "api"))
	dispatcher.Register(server.NewWebSocketObserver())
	dispatcher.Register(server.Metrics())

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	logger.Info("deckvault started",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Environment),
		zap.String("database", db.Path()))

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	return nil
}

func openDatabase(path string) (*storage.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	dbConfig := storage.DefaultConfig(path)
	dbConfig.AutoMigrate = true
	db, err := storage.Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func newBackupManager(ctx context.Context, cfg *config.Config, db *storage.DB, publisher events.Publisher, logger *zap.Logger) (*backup.Manager, error) {
	opts := backup.Options{
		Dir:       cfg.Backup.Dir,
		Publisher: publisher,
		Logger:    logging.Component(logger, "backup"),
	}
	if s3cfg := cfg.Backup.S3; s3cfg.Bucket != "" {
		mirror, err := backup.NewS3Mirror(ctx, backup.S3Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			Prefix:          s3cfg.Prefix,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		opts.Mirror = mirror
	}
	return backup.NewManager(db, opts), nil
}

func newSyncer(cfg *config.Config, db *storage.DB, manager *backup.Manager, publisher events.Publisher, logger *zap.Logger) *catalog.Syncer {
	log := logging.Component(logger, "catalog")
	client := catalog.NewClient(catalog.ClientOptions{
		BaseURL: cfg.Catalog.BaseURL,
		Logger:  log,
	})
	source := catalog.NewRemoteSource(client, cfg.Catalog.DataDir, log)
	return catalog.NewSyncer(source, catalog.NewImporter(db, log), manager.PreSync, publisher, log)
}
