package app

import (
	"log/slog"

	"github.com/google/wire"

	"bedrock/internal/slogx"
)

// EnvFile is the optional .env path read before the environment.
type EnvFile string

// ProviderSet is the Wire provider set for the jobs.
var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideOpeners,
	NewIngestJob,
	NewSyncJob,
)

// ProvideConfig loads config from environment (for Wire).
func ProvideConfig(envFile EnvFile) (*Config, error) {
	return LoadConfig(string(envFile))
}

// ProvideLogger builds the stderr logger at LOG_LEVEL and installs it as default (for Wire).
func ProvideLogger(cfg *Config) *slog.Logger {
	logger := slogx.NewDefault(cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

// ProvideOpeners returns the production openers (for Wire).
func ProvideOpeners() Openers {
	return DefaultOpeners()
}
