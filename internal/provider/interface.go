package provider

import (
	"context"
	"time"

	"bedrock/internal/model"
)

// BarFetcher is the abstraction used by the ingest job when accessing a data source.
// FetchDay covers exactly one calendar day for one ticker and requests unadjusted bars.
// An empty model.RowSet is a normal outcome; failures are *model.FetchError.
type BarFetcher interface {
	Name() string
	FetchDay(ctx context.Context, ticker string, day time.Time) (model.RowSet, error)
	Close() error
}
