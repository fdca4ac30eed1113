package main

import (
	"context"
	"errors"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, cfgErr := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(log.ComponentWorker, cfg)
	if envErr != nil {
		cli.Fatal(logger, "Failed to load .env file", envErr)
	}
	if cfgErr != nil {
		cli.Fatal(logger, "Configuration validation failed", cfgErr)
	}

	logger.Info("Starting budget-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend is process-local; the worker will not see records written by the server")
	}
	backendCfg.RequireEvents = true
	if backendCfg.AMQPURL == "" {
		cli.Fatal(logger, "budget-worker needs record events", errors.New("AMQP_URL is not set"))
	}

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	w := worker.NewReportWorker(res.Store, res.Budget, logger, cfg.WorkerReportInterval)
	if err := w.Run(ctx, res.Events); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		return
	}
	logger.Info("Worker shutdown complete")
}
