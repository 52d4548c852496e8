// Command worker claims pending jobs from the record store and drives
// them through the script/audio/slides/video pipeline (spec §2, §4.6). It
// also runs the expiry reaper as a second background loop in the same
// process, since both are periodic tasks over the same data root.
// Bootstrap shape grounded on the teacher's cmd/mcp-server/main.go.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/config"
	"github.com/slidecaster/slidecaster/internal/ingest"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/observability"
	"github.com/slidecaster/slidecaster/internal/pipelinerun"
	"github.com/slidecaster/slidecaster/internal/reaper"
	"github.com/slidecaster/slidecaster/internal/recordstore"
	"github.com/slidecaster/slidecaster/internal/script"
	"github.com/slidecaster/slidecaster/internal/stages/audio"
	scriptstage "github.com/slidecaster/slidecaster/internal/stages/script"
	slidesstage "github.com/slidecaster/slidecaster/internal/stages/slides"
	videostage "github.com/slidecaster/slidecaster/internal/stages/video"
	"github.com/slidecaster/slidecaster/internal/tts"
	"github.com/slidecaster/slidecaster/internal/worker"
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
	sysClock := clock.System{}

	slidesStage, err := slidesstage.New(slidesstage.Config{Language: "en"})
	if err != nil {
		logger.Error("init slides stage", "error", err)
		os.Exit(1)
	}

	stageFactory := func(record jobs.Record) pipelinerun.Stages {
		generator, err := script.NewGenerator(cfg.ScriptModel, "")
		if err != nil {
			logger.Error("init script generator", "job_id", record.ID, "error", err)
		}
		scriptStage := scriptstage.New(scriptstage.Config{
			Model: cfg.ScriptModel,
		}, ingest.NewIngester(record.URL), generator)

		provider, err := tts.NewProvider(cfg.TTSProvider, "", "", "", tts.ProviderConfig{})
		if err != nil {
			logger.Error("init tts provider", "job_id", record.ID, "error", err)
		}
		audioStage := audio.New(audio.Config{ProviderName: cfg.TTSProvider}, provider)

		return pipelinerun.Stages{
			Script:    scriptStage,
			Audio:     audioStage,
			Slides:    slidesStage,
			Video:     videostage.New(videostage.Config{Language: "en"}),
			Languages: []string{"en"},
		}
	}

	w := worker.New(store, sysClock, logger, worker.Config{
		DataRoot:          cfg.DataRoot,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		PollInterval:      cfg.PollInterval,
	}, stageFactory)

	r := reaper.New(store, sysClock, logger, reaper.Config{
		DataRoot: cfg.DataRoot,
		Interval: cfg.ExpiryReapInterval,
	})

	w.Recover(ctx)

	go r.Run(ctx)

	logger.Info("worker starting", "max_concurrent_jobs", cfg.MaxConcurrentJobs)
	w.Run(ctx)
	logger.Info("worker stopped")
}
