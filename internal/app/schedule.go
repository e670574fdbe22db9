package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"

	"bedrock/internal/model"
)

// Serve runs both jobs on their cron schedules until ctx ends or SIGINT/SIGTERM arrives.
// Each job runs in singleton mode: a tick that fires while the previous run is still
// going is skipped.
func Serve(ctx context.Context, cfg *Config, ij *IngestJob, sj *SyncJob, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	ingestJob, err := s.Cron(cfg.IngestCron).Tag("ingest").Do(func() {
		day := Yesterday(time.Now())
		sum, err := ij.Run(ctx, day)
		if err != nil {
			logger.Error("ingest run failed", "day", day.Format(model.DayLayout), "error", err)
			return
		}
		logger.Info("ingest run done", "day", day.Format(model.DayLayout), "written", sum.Written, "empty", sum.Empty, "failed", sum.Failed)
	})
	if err != nil {
		return &model.ConfigError{Err: fmt.Errorf("INGEST_CRON %q: %w", cfg.IngestCron, err)}
	}
	syncJob, err := s.Cron(cfg.SyncCron).Tag("sync").Do(func() {
		res, err := sj.Run(ctx)
		if err != nil {
			logger.Error("sync run failed", "error", err)
			return
		}
		logger.Info("sync run done", "rows", res.Rows, "partitions", len(res.Partitions), "total", res.Total)
	})
	if err != nil {
		return &model.ConfigError{Err: fmt.Errorf("SYNC_CRON %q: %w", cfg.SyncCron, err)}
	}

	s.StartAsync()
	logger.Info("scheduler started",
		"ingest_cron", cfg.IngestCron, "ingest_next", ingestJob.NextRun().Format(time.RFC3339),
		"sync_cron", cfg.SyncCron, "sync_next", syncJob.NextRun().Format(time.RFC3339))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		logger.Info("received signal, graceful shutdown", "sig", sig)
	case <-ctx.Done():
		logger.Info("context done, stopping scheduler")
	}
	cancel()
	s.Stop()
	return nil
}
