package main

import (
	"context"
	"errors"
	"os"

	"finanzas/internal/backend"
	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting finanzas-worker")

	if cfg.DataBackend == backend.MemoryBackend.String() {
		logger.Warn("Worker running on the memory backend; attributions are lost on exit and invisible to the API process")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be, registry := cli.InitBackend(ctx, logger, cfg)
	defer be.Close()

	var (
		publisher services.Publisher
		consumer  worker.Consumer
	)
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		publisher, consumer = client, client
	}

	invoices := services.NewInvoiceService(be.Store, be.Store, registry, publisher, logger)
	w := worker.NewInvoiceWorker(consumer, invoices, worker.Config{
		RetrySchedule: cfg.UnmatchedRetrySchedule,
		BatchSize:     cfg.UnmatchedBatchSize,
	}, logger)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
