package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be, registry := cli.InitBackend(ctx, logger, cfg)
	defer be.Close()

	var publisher services.Publisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	}

	snapshotCache := cache.NewLRUCache[services.SnapshotResult](cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(snapshotCache)
	cacheManager.StartCleanup(ctx, time.Minute)
	defer cacheManager.Stop()

	snapshots := services.NewSnapshotService(be.Store, registry, snapshotCache, logger)
	invoices := services.NewInvoiceService(be.Store, be.Store, registry, publisher, logger)
	invoices.OnChange(snapshots.Invalidate)

	deps := apphttp.Dependencies{
		Registry:  registry,
		Invoices:  invoices,
		Snapshots: snapshots,
	}
	if p, ok := be.Store.(interface{ Ping(context.Context) error }); ok {
		deps.Ready = p.Ping
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps, logger)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting finanzas server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped
	logger.Info("Server stopped gracefully")
}
