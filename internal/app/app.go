// Package app wires the services shared by the API server and the dashboard
// for the configured store driver.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/notcool100/financial-management-system/internal/config"
	"github.com/notcool100/financial-management-system/internal/database"
	"github.com/notcool100/financial-management-system/internal/export"
	"github.com/notcool100/financial-management-system/internal/importer"
	"github.com/notcool100/financial-management-system/internal/journal"
	journalstore "github.com/notcool100/financial-management-system/internal/journal/store"
	"github.com/notcool100/financial-management-system/internal/loan"
	loanstore "github.com/notcool100/financial-management-system/internal/loan/store"
	"github.com/notcool100/financial-management-system/internal/memstore"
	"github.com/notcool100/financial-management-system/internal/notify"
)

type App struct {
	Journal    *journal.Service
	Loans      *loan.Service
	Importer   *importer.Service
	Statements *export.Service
	ExportDir  string

	db       *sql.DB
	notifier *notify.Dispatcher
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var (
		journalRepo journal.Repository
		loanRepo    loan.Repository
		db          *sql.DB
	)

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if cfg.DB.AutoMigrate {
			if err := database.Migrate(ctx, cfg.ConnectionString()); err != nil {
				return nil, fmt.Errorf("migrating: %w", err)
			}
		}

		var err error

		db, err = database.New(ctx, cfg.ConnectionString())
		if err != nil {
			return nil, err
		}

		journalRepo = journalstore.New(db)
		loanRepo = loanstore.New(db)

	case config.DriverMemory:
		store := memstore.New()
		journalRepo = store.Journal()
		loanRepo = store.Loans()

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	journalService := journal.NewService(journalRepo)

	if cfg.Store.Driver == config.DriverMemory {
		if _, err := journalService.SeedChart(ctx, journal.DefaultChart()); err != nil {
			return nil, err
		}
	}

	dispatcher := notify.NewDispatcher(notify.LogSender{}, cfg.Notify.QueueSize, cfg.Notify.Timeout)
	loanService := loan.NewService(loanRepo, journalService, cfg.LoanAccounts(), dispatcher)

	slog.Info("services ready", "driver", cfg.Store.Driver)

	return &App{
		Journal:    journalService,
		Loans:      loanService,
		Importer:   importer.NewService(loanService),
		Statements: export.NewService(loanService),
		ExportDir:  cfg.Export.Dir,
		db:         db,
		notifier:   dispatcher,
	}, nil
}

// Close drains pending notifications and closes the database pool.
func (a *App) Close() {
	a.notifier.Close()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}
}
