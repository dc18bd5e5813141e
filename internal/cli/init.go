// Package cli provides common CLI initialization utilities shared by the
// saldo subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saldo/internal/config"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/storage"
)

// SetupLogger initializes structured logging at the given level writing to w.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(w io.Writer, level string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = applog.ParseLevel(level)
	cfg.Component = applog.ComponentCLI
	cfg.Output = w
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as the file is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App holds the store handle and every component built on it.
type App struct {
	Config     *config.Config
	Repo       *storage.SQLiteRepository
	Expenses   *services.ExpenseService
	Balance    *services.BalanceCalculator
	Statistics *services.StatisticsAggregator
	Export     *services.ExportWriter

	now func() time.Time
}

// NewApp opens the store and wires the components on top of it.
func NewApp(cfg *config.Config) (*App, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize store at %s: %w", cfg.SQLiteDBPath, err)
	}

	format, err := services.ParseExportFormat(cfg.ExportFormat)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Repo:       repo,
		Expenses:   services.NewExpenseService(repo),
		Balance:    services.NewBalanceCalculator(repo),
		Statistics: services.NewStatisticsAggregator(repo, cfg.StatsMonths),
		Export:     services.NewExportWriter(repo, format),
		now:        time.Now,
	}, nil
}

// Close releases the store handle.
func (a *App) Close() error {
	return a.Repo.Close()
}

// GracefulShutdown returns a context cancelled on the first SIGINT or
// SIGTERM.
func GracefulShutdown(logger *applog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	return ctx
}
