package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bedrock/internal/objstore"
	"bedrock/internal/provider"
	"bedrock/internal/provider/alpaca"
	"bedrock/internal/provider/polygon"
	"bedrock/internal/runlock"
	"bedrock/internal/warehouse"
)

// Locker is the run-lock a sync holds for its whole duration.
type Locker interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (*runlock.Lease, error)
	Release(ctx context.Context, l *runlock.Lease) error
	Close() error
}

// Openers build the components that talk to external services.
// Jobs call them only after configuration validated.
type Openers struct {
	Fetcher   func(cfg *Config, logger *slog.Logger) (provider.BarFetcher, error)
	Store     func(ctx context.Context, cfg *Config, container string) (objstore.Store, error)
	Warehouse func(ctx context.Context, cfg *Config, logger *slog.Logger) (warehouse.Warehouse, error)
	Lock      func(cfg *Config) (Locker, error)
}

// DefaultOpeners wires the production implementations.
func DefaultOpeners() Openers {
	return Openers{
		Fetcher:   CreateProvider,
		Store:     OpenObjectStore,
		Warehouse: OpenWarehouse,
		Lock:      OpenLock,
	}
}

// CreateProvider creates the BarFetcher selected by DATA_PROVIDER.
func CreateProvider(cfg *Config, logger *slog.Logger) (provider.BarFetcher, error) {
	httpc := provider.NewHTTPClient(cfg.FetchTimeout)
	switch cfg.DataProvider {
	case "alpaca":
		c, err := alpaca.NewClient(alpaca.Config{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaSecret,
			BaseURL:   cfg.AlpacaDataURL,
			Feed:      cfg.AlpacaFeed,
		}, httpc, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "polygon":
		opts := []polygon.Option{
			polygon.WithHTTPClient(httpc),
			polygon.WithLogger(logger),
			polygon.WithMinInterval(cfg.PolygonMinInterval),
		}
		if cfg.PolygonBaseURL != "" {
			opts = append(opts, polygon.WithBaseURL(cfg.PolygonBaseURL))
		}
		return polygon.NewFetcher(cfg.PolygonAPIKeys, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported data provider: %s. Options: alpaca, polygon", cfg.DataProvider)
	}
}

// OpenObjectStore opens container on the configured storage backend.
func OpenObjectStore(ctx context.Context, cfg *Config, container string) (objstore.Store, error) {
	switch cfg.StorageBackend {
	case "azure":
		s, err := objstore.OpenAzure(cfg.Azure, container)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "local":
		s, err := objstore.NewLocal(cfg.DataDir, container)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s. Options: azure, local", cfg.StorageBackend)
	}
}

// OpenWarehouse connects to ClickHouse.
func OpenWarehouse(ctx context.Context, cfg *Config, logger *slog.Logger) (warehouse.Warehouse, error) {
	ch, err := warehouse.OpenClickHouse(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// OpenLock opens the run-lock database.
func OpenLock(cfg *Config) (Locker, error) {
	s, err := runlock.Open(cfg.RunLockPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}
