package main

import (
	"log/slog"

	"bedrock/internal/app"
)

// App holds application dependencies built by Wire.
type App struct {
	Config *app.Config
	Logger *slog.Logger
	Ingest *app.IngestJob
	Sync   *app.SyncJob
}
