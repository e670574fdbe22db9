package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/subcommands"

	"bedrock/internal/app"
	"bedrock/internal/model"
)

func initialize() (*App, subcommands.ExitStatus) {
	a, err := InitializeApp(app.EnvFile(*envFile))
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return nil, subcommands.ExitFailure
	}
	return a, subcommands.ExitSuccess
}

type ingestCmd struct {
	date string
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "fetch one day of bars for the universe into the raw zone" }
func (*ingestCmd) Usage() string {
	return `ingest [-date YYYY-MM-DD]:
  Fetch daily bars for every ticker and write one raw partition per ticker.
  Exits non-zero only on configuration errors.
`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "day to ingest (default: yesterday UTC)")
}

func (c *ingestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	day := app.Yesterday(time.Now())
	if c.date != "" {
		d, err := model.ParseDay(c.date)
		if err != nil {
			slog.Error("invalid -date", "date", c.date, "error", err)
			return subcommands.ExitUsageError
		}
		day = d
	}

	a, status := initialize()
	if a == nil {
		return status
	}
	sum, err := a.Ingest.Run(ctx, day)
	if err != nil {
		a.Logger.Error("ingest failed", "day", day.Format(model.DayLayout), "error", err)
		return subcommands.ExitFailure
	}
	a.Logger.Info("ingest finished",
		"run_id", sum.RunID,
		"day", day.Format(model.DayLayout),
		"written", sum.Written,
		"empty", sum.Empty,
		"failed", sum.Failed)
	return subcommands.ExitSuccess
}

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "load the refined snapshot into ClickHouse" }
func (*syncCmd) Usage() string {
	return `sync:
  Replace every month of the warehouse table present in the refined snapshot.
  Exits non-zero on any failure.
`
}

func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := initialize()
	if a == nil {
		return status
	}
	res, err := a.Sync.Run(ctx)
	if err != nil {
		var le *model.LoadError
		if errors.As(err, &le) {
			a.Logger.Error("sync failed", "rows_attempted", le.Rows, "error", err)
		} else {
			a.Logger.Error("sync failed", "error", err)
		}
		return subcommands.ExitFailure
	}
	a.Logger.Info("sync finished",
		"rows", res.Rows,
		"duplicates", res.Duplicates,
		"partitions", fmt.Sprint(res.Partitions),
		"total", res.Total)
	return subcommands.ExitSuccess
}

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run ingest and sync on their cron schedules" }
func (*serveCmd) Usage() string {
	return `serve:
  Run INGEST_CRON (ingests yesterday) and SYNC_CRON until SIGINT/SIGTERM.
`
}

func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, status := initialize()
	if a == nil {
		return status
	}
	if err := app.Serve(ctx, a.Config, a.Ingest, a.Sync, a.Logger); err != nil {
		a.Logger.Error("scheduler failed", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
