package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/statement-importer/internal/domain/categorization"
	"github.com/FACorreiaa/statement-importer/internal/domain/category"
	"github.com/FACorreiaa/statement-importer/internal/domain/ledger"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-importer/pkg/config"
	"github.com/FACorreiaa/statement-importer/pkg/cron"
	"github.com/FACorreiaa/statement-importer/pkg/db"
	"github.com/FACorreiaa/statement-importer/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	CategorizationRepo *categorization.Repository
	CategoryRepo       *category.Repository
	LedgerRepo         *ledger.Repository

	// Services
	ImportService *service.Service
	Scheduler     *cron.Scheduler
	Archive       storage.Archive
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
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
	d.CategorizationRepo = categorization.NewRepository(d.DB)
	d.CategoryRepo = category.NewRepository(d.DB)
	d.LedgerRepo = ledger.NewRepository(d.DB)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.ImportService = service.New(
		d.CategorizationRepo,
		d.CategorizationRepo,
		d.LedgerRepo,
		d.Config.Importer,
		d.Logger,
	).WithCategorySource(d.CategoryRepo)

	if dir := d.Config.Importer.ArchiveDir; dir != "" {
		archive, err := storage.NewLocalArchive(dir)
		if err != nil {
			return fmt.Errorf("failed to init document archive: %w", err)
		}
		d.Archive = archive
		d.ImportService.WithArchive(archive)
	}

	d.Scheduler = cron.NewScheduler(d.ImportService, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
