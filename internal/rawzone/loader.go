// Package rawzone writes fetched row-sets to date-and-ticker partitioned paths in the raw zone.
package rawzone

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bedrock/internal/model"
	"bedrock/internal/objstore"
	"bedrock/internal/saver"
)

// PartitionPath returns YYYY/MM/DD/TICKER.ext for the day's UTC calendar date.
// It is pure: the same (day, ticker, ext) always yields the same path.
func PartitionPath(day time.Time, ticker, ext string) string {
	d := model.Day(day)
	return fmt.Sprintf("%04d/%02d/%02d/%s.%s", d.Year(), int(d.Month()), d.Day(), ticker, ext)
}

// Loader writes one partition per (ticker, day) with overwrite semantics.
type Loader struct {
	store   objstore.Store
	encoder saver.Encoder
	logger  *slog.Logger
}

// NewLoader creates a raw loader writing with enc into store.
func NewLoader(store objstore.Store, enc saver.Encoder, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, encoder: enc, logger: logger}
}

// Path returns the partition path the loader uses for (ticker, day).
func (l *Loader) Path(ticker string, day time.Time) string {
	return PartitionPath(day, strings.ToUpper(ticker), l.encoder.Extension())
}

// Store serializes rs and writes it to its partition path, replacing any earlier
// write for the same key. An empty row-set writes nothing and returns "".
// Failures come back as *model.StoreError; Store does not retry.
func (l *Loader) Store(ctx context.Context, rs model.RowSet) (string, error) {
	if rs.Empty() {
		l.logger.Debug("skip empty partition", "ticker", rs.Ticker, "day", rs.Day.Format(model.DayLayout))
		return "", nil
	}
	p := l.Path(rs.Ticker, rs.Day)

	data, err := l.encoder.Encode(rs.Bars)
	if err != nil {
		return "", &model.StoreError{Path: p, Err: fmt.Errorf("encode %s: %w", l.encoder.Extension(), err)}
	}
	if err := l.store.Put(ctx, p, data); err != nil {
		return "", &model.StoreError{Path: p, Err: err}
	}
	l.logger.Info("partition written", "path", p, "location", l.store.Location(), "bars", len(rs.Bars), "bytes", len(data))
	return p, nil
}
