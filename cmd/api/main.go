package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/notcool100/financial-management-system/internal/app"
	"github.com/notcool100/financial-management-system/internal/config"
	apiHttp "github.com/notcool100/financial-management-system/internal/http"
	importHandler "github.com/notcool100/financial-management-system/internal/http/importcsv"
	journalHandler "github.com/notcool100/financial-management-system/internal/http/journal"
	loanHandler "github.com/notcool100/financial-management-system/internal/http/loan"
	"github.com/notcool100/financial-management-system/internal/logging"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	var (
		loanH    = loanHandler.NewHandler(services.Loans)
		journalH = journalHandler.NewHandler(services.Journal)
		importH  = importHandler.NewHandler(services.Importer)
	)

	router := apiHttp.New(apiHttp.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Timeout:        cfg.Server.Timeout,
	}, loanH, journalH, importH)

	if cfg.Auth.JWTSecret == "" {
		slog.Warn("JWT_SECRET is empty, API requests are unauthenticated")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "app", cfg.App.Name, "port", cfg.App.Port, "driver", cfg.Store.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
