// Package ingest runs the daily raw ingestion: for each ticker of the universe it fetches
// one day of bars and writes them to the raw zone.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bedrock/internal/model"
	"bedrock/internal/provider"
	"bedrock/internal/slogx"
)

// RawStore writes one row-set to its raw partition. *rawzone.Loader implements it.
type RawStore interface {
	Store(ctx context.Context, rs model.RowSet) (string, error)
}

// Job is one ingestion unit.
type Job struct {
	Ticker string
	Day    time.Time
}

// Outcome of one job.
type Outcome int

const (
	Written Outcome = iota
	Empty
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Empty:
		return "empty"
	default:
		return "failed"
	}
}

// JobResult is sent by workers for fan-in.
type JobResult struct {
	Ticker   string
	Day      time.Time
	Outcome  Outcome
	Path     string
	Bars     int
	Attempts int
	Err      error
}

// Summary of one run.
type Summary struct {
	RunID    string
	Day      time.Time
	Written  int
	Empty    int
	Failed   int
	Results  []JobResult
	Duration time.Duration
}

// Failures returns the failed results in ticker order.
func (s Summary) Failures() []JobResult {
	var out []JobResult
	for _, r := range s.Results {
		if r.Outcome == Failed {
			out = append(out, r)
		}
	}
	return out
}

// Options tune a Runner. Zero values fall back to defaults.
type Options struct {
	Workers      int
	FetchTimeout time.Duration
	StoreTimeout time.Duration
	Retry        RetryPolicy
	Policy       model.FailurePolicy
	// Heartbeat is the progress log interval when more than one worker runs.
	Heartbeat time.Duration
	// ReportDir receives .lastrun.success.json and .lastrun.failed.json. Empty disables reports.
	ReportDir string
	// LogOutput receives worker log lines. Defaults to stderr.
	LogOutput io.Writer
	LogLevel  slog.Leveler
}

// Runner drives Fetcher and raw loader over a ticker list for one day.
type Runner struct {
	fetcher provider.BarFetcher
	raw     RawStore
	opts    Options
	logger  *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(fetcher provider.BarFetcher, raw RawStore, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	if opts.LogLevel == nil {
		opts.LogLevel = slog.LevelInfo
	}
	return &Runner{fetcher: fetcher, raw: raw, opts: opts, logger: logger}
}

// Run ingests day for every ticker. Under BestEffort a failed ticker is recorded in the
// summary and the run continues; the returned error is non-nil only when ctx ends the run.
// Under FailFast the first failure cancels the remaining jobs and is returned.
func (r *Runner) Run(ctx context.Context, day time.Time, tickers []string) (Summary, error) {
	start := time.Now()
	day = model.Day(day)
	sum := Summary{RunID: uuid.NewString(), Day: day}
	if len(tickers) == 0 {
		r.logger.Info("no tickers to ingest, skip", "day", day.Format(model.DayLayout))
		return sum, nil
	}

	logs := make(chan string, 2048)
	logger := slogx.NewChanLogger(logs, r.opts.LogLevel).With("run_id", sum.RunID)
	var logWg sync.WaitGroup
	logWg.Add(1)
	go func() {
		defer logWg.Done()
		runLogWriter(r.opts.LogOutput, logs)
	}()
	defer func() {
		close(logs)
		logWg.Wait()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make(chan Job, len(tickers))
	for _, t := range tickers {
		pending <- Job{Ticker: t, Day: day}
	}
	close(pending)

	logger.Info("ingest start",
		"provider", r.fetcher.Name(),
		"day", day.Format(model.DayLayout),
		"tickers", len(tickers),
		"workers", r.opts.Workers,
		"policy", r.opts.Policy)

	results := make(chan JobResult, len(tickers))
	t := &tally{}
	var resWg sync.WaitGroup
	resWg.Add(1)
	var firstErr error
	go func() {
		defer resWg.Done()
		for res := range results {
			t.add(res)
			sum.Results = append(sum.Results, res)
			if res.Outcome == Failed && r.opts.Policy == model.FailFast && firstErr == nil {
				firstErr = res.Err
				cancel()
			}
		}
	}()

	hbCtx, stopHeartbeat := context.WithCancel(runCtx)
	var hbWg sync.WaitGroup
	if r.opts.Workers > 1 {
		hbWg.Add(1)
		go func() {
			defer hbWg.Done()
			runHeartbeat(hbCtx, r.opts.Heartbeat, len(tickers), t, logger)
		}()
	}

	var wg sync.WaitGroup
	wg.Add(r.opts.Workers)
	for i := 0; i < r.opts.Workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-runCtx.Done():
					return
				case job, ok := <-pending:
					if !ok {
						return
					}
					results <- r.runJob(runCtx, job, logger)
				}
			}
		}()
	}
	wg.Wait()
	close(results)
	resWg.Wait()
	stopHeartbeat()
	hbWg.Wait()

	sort.Slice(sum.Results, func(i, j int) bool { return sum.Results[i].Ticker < sum.Results[j].Ticker })
	sum.Written, sum.Empty, sum.Failed = t.snapshot()
	sum.Duration = time.Since(start)

	failures := sum.Failures()
	logger.Info("summary",
		"day", day.Format(model.DayLayout),
		"written", sum.Written,
		"empty", sum.Empty,
		"failed", sum.Failed,
		"duration", sum.Duration.Round(time.Millisecond))
	if len(failures) > 0 {
		logger.Info("summary failed", "count", len(failures), "reasons", joinFailedReasons(failures))
	}
	if r.opts.ReportDir != "" {
		if err := writeRunReport(r.opts.ReportDir, sum); err != nil {
			logger.Warn("could not write run report", "error", err)
		}
	}

	if firstErr != nil {
		return sum, firstErr
	}
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("ingest %s interrupted after %d of %d tickers: %w",
			day.Format(model.DayLayout), len(sum.Results), len(tickers), err)
	}
	return sum, nil
}

// runJob fetches and stores one ticker. Both steps run under their own deadline and retry.
func (r *Runner) runJob(ctx context.Context, job Job, logger *slog.Logger) JobResult {
	res := JobResult{Ticker: job.Ticker, Day: job.Day}
	dayStr := job.Day.Format(model.DayLayout)

	var rs model.RowSet
	err := retry(ctx, r.opts.Retry, func() error {
		res.Attempts++
		fctx, cancel := withTimeout(ctx, r.opts.FetchTimeout)
		defer cancel()
		var err error
		rs, err = r.fetcher.FetchDay(fctx, job.Ticker, job.Day)
		return err
	}, func(err error, wait time.Duration) {
		logger.Warn("fetch retry", "ticker", job.Ticker, "day", dayStr, "attempt", res.Attempts, "wait", wait, "error", err)
	})
	if err != nil {
		return r.fail(res, err, logger)
	}
	if rs.Empty() {
		res.Outcome = Empty
		logger.Info("no data", "ticker", job.Ticker, "day", dayStr)
		return res
	}

	var path string
	err = retry(ctx, r.opts.Retry, func() error {
		sctx, cancel := withTimeout(ctx, r.opts.StoreTimeout)
		defer cancel()
		var err error
		path, err = r.raw.Store(sctx, rs)
		return err
	}, func(err error, wait time.Duration) {
		logger.Warn("store retry", "ticker", job.Ticker, "day", dayStr, "wait", wait, "error", err)
	})
	if err != nil {
		return r.fail(res, err, logger)
	}

	res.Outcome = Written
	res.Path = path
	res.Bars = len(rs.Bars)
	logger.Info("ingest ok", "ticker", job.Ticker, "day", dayStr, "bars", res.Bars, "path", path)
	return res
}

func (r *Runner) fail(res JobResult, err error, logger *slog.Logger) JobResult {
	res.Outcome = Failed
	res.Err = err
	kind := "unknown"
	switch {
	case errors.Is(err, model.ErrFetchFailed):
		kind = "fetch"
	case errors.Is(err, model.ErrStoreFailed):
		kind = "store"
	case errors.Is(err, model.ErrConfig):
		kind = "config"
	case errors.Is(err, context.Canceled):
		kind = "canceled"
	}
	logger.Error("ingest fail", "ticker", res.Ticker, "day", res.Day.Format(model.DayLayout), "kind", kind, "attempts", res.Attempts, "error", err)
	return res
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func joinFailedReasons(failed []JobResult) string {
	if len(failed) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range failed {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Ticker)
		b.WriteString(": ")
		b.WriteString(reason(f))
		if i >= 4 && len(failed) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failed)-5))
			break
		}
	}
	return b.String()
}

func reason(r JobResult) string {
	if r.Err == nil {
		return r.Outcome.String()
	}
	return r.Err.Error()
}
