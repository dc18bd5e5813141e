package main

import (
	"context"
	"errors"
	"os"

	"saldo/internal/cli"
	"saldo/internal/core"
	applog "saldo/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load .env file for local development
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger := cli.SetupLogger(os.Stderr, "info")
		logger.Error("Configuration validation failed",
			applog.FieldErrorType, applog.ErrorTypeConfiguration,
			applog.FieldError, err)
		return 1
	}
	logger := cli.SetupLogger(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(cfg)
	if err != nil {
		logger.Error("Failed to open store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		return 1
	}
	defer app.Close()

	ctx := context.Background()
	if len(args) > 0 && args[0] == "serve" {
		ctx = cli.GracefulShutdown(logger)
	}

	runner := &cli.Runner{App: app, Logger: logger, Stdout: os.Stdout, Stderr: os.Stderr}
	err = runner.Run(ctx, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cli.ErrUsage):
		return 2
	case errors.Is(err, core.ErrValidation):
		logger.Warn("Invalid input", applog.FieldErrorType, applog.ErrorTypeValidation, applog.FieldError, err)
		return 1
	case errors.Is(err, core.ErrExport):
		logger.Error("Export failed", applog.FieldErrorType, applog.ErrorTypeExport, applog.FieldError, err)
		return 1
	default:
		logger.Error("Command failed", applog.FieldError, err)
		return 1
	}
}
