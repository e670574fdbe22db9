// Package warehouse loads the refined snapshot into the analytical warehouse.
package warehouse

import (
	"context"

	"bedrock/internal/model"
)

// Warehouse is the set of table operations a sync needs. ClickHouse implements it;
// tests use an in-memory table.
type Warehouse interface {
	// EnsureSchema creates the target table if missing. Idempotent.
	EnsureSchema(ctx context.Context) error
	// ResetStaging creates the staging table if missing and empties it.
	ResetStaging(ctx context.Context) error
	// Stage appends rows to the staging table.
	Stage(ctx context.Context, rows []model.Bar) error
	// Promote replaces every month partition present in staging in the target and
	// returns the replaced partition ids, sorted.
	Promote(ctx context.Context) ([]string, error)
	// Count returns the number of distinct rows in the target.
	Count(ctx context.Context) (uint64, error)
	Close() error
}

// Source streams the refined snapshot in batches. *refined.Reader implements it.
type Source interface {
	Scan(ctx context.Context, batchSize int, fn func([]model.Bar) error) (int, error)
}
