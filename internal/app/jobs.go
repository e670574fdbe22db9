package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bedrock/internal/ingest"
	"bedrock/internal/model"
	"bedrock/internal/rawzone"
	"bedrock/internal/refined"
	"bedrock/internal/runlock"
	"bedrock/internal/saver"
	"bedrock/internal/slogx"
	"bedrock/internal/universe"
	"bedrock/internal/warehouse"
)

// SyncLockName is the run-lock held by a warehouse sync.
const SyncLockName = "warehouse-sync"

// Yesterday returns the UTC calendar day before now.
func Yesterday(now time.Time) time.Time {
	return model.Day(now).AddDate(0, 0, -1)
}

// IngestJob fetches one day of bars for the universe and writes the raw zone.
type IngestJob struct {
	cfg    *Config
	open   Openers
	logger *slog.Logger
}

// NewIngestJob creates an IngestJob.
func NewIngestJob(cfg *Config, open Openers, logger *slog.Logger) *IngestJob {
	return &IngestJob{cfg: cfg, open: open, logger: logger}
}

// Policy is BestEffort: a failed ticker never stops the others.
func (j *IngestJob) Policy() model.FailurePolicy { return model.BestEffort }

// Run ingests day. Only configuration problems and cancellation return an error;
// per-ticker failures are in the summary.
func (j *IngestJob) Run(ctx context.Context, day time.Time) (ingest.Summary, error) {
	cfg := j.cfg
	if err := cfg.ValidateIngest(); err != nil {
		return ingest.Summary{}, err
	}
	tickers, err := universe.Resolve(cfg.Tickers, cfg.TickersFile)
	if err != nil {
		return ingest.Summary{}, &model.ConfigError{Err: err}
	}

	fetcher, err := j.open.Fetcher(cfg, j.logger)
	if err != nil {
		return ingest.Summary{}, &model.ConfigError{Err: err}
	}
	defer fetcher.Close()

	store, err := j.open.Store(ctx, cfg, cfg.RawContainer)
	if err != nil {
		return ingest.Summary{}, &model.ConfigError{Err: fmt.Errorf("raw store: %w", err)}
	}
	loader := rawzone.NewLoader(store, saver.NewEncoder(cfg.RawFormat), j.logger)

	j.logger.Info("ingest job",
		"provider", fetcher.Name(),
		"store", store.Location(),
		"format", cfg.RawFormat,
		"tickers", len(tickers))

	runner := ingest.NewRunner(fetcher, loader, ingest.Options{
		Workers:      cfg.IngestWorkers,
		FetchTimeout: cfg.FetchTimeout,
		StoreTimeout: cfg.StoreTimeout,
		Retry: ingest.RetryPolicy{
			MaxRetries:      cfg.RetryMax,
			InitialInterval: cfg.RetryInitial,
			MaxInterval:     cfg.RetryMaxInterval,
		},
		Policy:    j.Policy(),
		Heartbeat: cfg.HeartbeatInterval,
		ReportDir: cfg.ReportDir(),
		LogLevel:  slogx.ParseLevel(cfg.LogLevel),
	}, j.logger)
	return runner.Run(ctx, day, tickers)
}

// SyncJob loads the refined snapshot into the warehouse.
type SyncJob struct {
	cfg    *Config
	open   Openers
	logger *slog.Logger
}

// NewSyncJob creates a SyncJob.
func NewSyncJob(cfg *Config, open Openers, logger *slog.Logger) *SyncJob {
	return &SyncJob{cfg: cfg, open: open, logger: logger}
}

// Policy is FailFast: any failure fails the run.
func (j *SyncJob) Policy() model.FailurePolicy { return model.FailFast }

// Run performs one sync under the run-lock. Configuration is validated before any
// external service is touched.
func (j *SyncJob) Run(ctx context.Context) (warehouse.Result, error) {
	cfg := j.cfg
	if err := cfg.ValidateSync(); err != nil {
		return warehouse.Result{}, err
	}

	lock, err := j.open.Lock(cfg)
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("open run lock: %w", err)
	}
	defer lock.Close()

	owner := uuid.NewString()
	lease, err := lock.Acquire(ctx, SyncLockName, owner, cfg.RunLockTTL)
	if err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			j.logger.Warn("another sync is running", "error", err)
		}
		return warehouse.Result{}, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx), lease); err != nil {
			j.logger.Warn("could not release run lock", "error", err)
		}
	}()

	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
		defer cancel()
	}

	store, err := j.open.Store(ctx, cfg, cfg.RefinedContainer)
	if err != nil {
		return warehouse.Result{}, &model.LoadError{Err: fmt.Errorf("refined store: %w", err)}
	}
	wh, err := j.open.Warehouse(ctx, cfg, j.logger)
	if err != nil {
		return warehouse.Result{}, &model.LoadError{Err: err}
	}
	defer wh.Close()

	j.logger.Info("sync job",
		"run_id", owner,
		"store", store.Location(),
		"prefix", cfg.RefinedPrefix,
		"table", cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table,
		"batch", cfg.SyncBatchSize)

	reader := refined.NewReader(store, cfg.RefinedPrefix, j.logger)
	return warehouse.NewLoader(reader, wh, cfg.SyncBatchSize, j.logger).Sync(ctx)
}
