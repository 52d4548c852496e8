// Command api runs the HTTP submission/status surface (spec §2, §6.1). It
// owns no pipeline stages; a separate worker process claims and processes
// jobs from the same record store. The bootstrap shape — load config,
// build the logger, wire dependencies, run until a signal arrives — is
// grounded on the teacher's cmd/mcp-server/main.go.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/slidecaster/slidecaster/internal/admission"
	"github.com/slidecaster/slidecaster/internal/api"
	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/config"
	"github.com/slidecaster/slidecaster/internal/observability"
	"github.com/slidecaster/slidecaster/internal/quality"
	"github.com/slidecaster/slidecaster/internal/recordstore"
)

func main() {
	logger := observability.InitLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadSecrets(ctx, cfg.SecretPrefix, logger); err != nil {
		logger.Warn("load secrets", "error", err)
	}

	store := recordstore.New(cfg.RecordStoreURL, cfg.RecordStoreEmail, cfg.RecordStorePassword)
	probe := quality.New(cfg.QualityProbeURL, cfg.QualityProbeMinChars, cfg.QualityProbeTimeout)
	sysClock := clock.System{}

	controller := admission.New(store, probe, sysClock, logger, cfg.RateLimitPerDay, cfg.MaxQueueSize, cfg.JobExpiry)
	server := api.New(controller, store, logger, api.Config{Port: cfg.Port, DataRoot: cfg.DataRoot})

	logger.Info("api server starting", "port", cfg.Port)
	if err := server.Start(ctx); err != nil {
		logger.Error("api server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("api server stopped")
}
