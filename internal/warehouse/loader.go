package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bedrock/internal/model"
)

// Result summarizes one sync.
type Result struct {
	// Rows is the number of distinct rows staged from the snapshot.
	Rows int
	// Duplicates counts snapshot rows dropped because their (ticker, timestamp) was already staged.
	Duplicates int
	// Partitions lists the month partitions replaced in the target, sorted, as the
	// warehouse assigned them.
	Partitions []string
	// Total is the target row count after the sync.
	Total    uint64
	Duration time.Duration
}

// Loader moves the full refined snapshot into the warehouse.
//
// Every month present in the snapshot is rebuilt in staging and swapped into the
// target, so rerunning over an unchanged snapshot leaves the target unchanged.
// Months absent from the snapshot are not touched.
//
// Duplicate detection keeps one int64 per distinct bar for the duration of a
// sync, grouped per ticker, so memory grows with the snapshot: tens of millions
// of rows per GB. Snapshots beyond that need a keyed pre-pass in the refinement job.
type Loader struct {
	src       Source
	wh        Warehouse
	batchSize int
	logger    *slog.Logger
}

// NewLoader creates a loader. A non-positive batchSize uses the source default.
func NewLoader(src Source, wh Warehouse, batchSize int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, wh: wh, batchSize: batchSize, logger: logger}
}

// Sync runs one full load. Any failure is returned as *model.LoadError carrying
// the number of rows attempted so far; the target is left as it was unless the
// failure happened while promoting.
func (l *Loader) Sync(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	if err := l.wh.EnsureSchema(ctx); err != nil {
		return res, &model.LoadError{Err: err}
	}
	if err := l.wh.ResetStaging(ctx); err != nil {
		return res, &model.LoadError{Err: err}
	}

	seen := make(keySet)
	attempted := 0
	batch := make([]model.Bar, 0, l.batchSize)

	_, err := l.src.Scan(ctx, l.batchSize, func(bars []model.Bar) error {
		batch = batch[:0]
		for _, b := range bars {
			if !seen.add(b.Key()) {
				res.Duplicates++
				continue
			}
			batch = append(batch, b)
		}
		attempted += len(batch)
		if err := l.wh.Stage(ctx, batch); err != nil {
			return err
		}
		l.logger.Debug("batch staged", "rows", len(batch), "total", attempted)
		return nil
	})
	if err != nil {
		return res, &model.LoadError{Rows: attempted, Err: fmt.Errorf("stage snapshot: %w", err)}
	}
	res.Rows = attempted
	l.logger.Debug("snapshot staged", "rows", attempted, "tracked_keys", seen.len(), "tickers", len(seen))

	partitions, err := l.wh.Promote(ctx)
	if err != nil {
		return res, &model.LoadError{Rows: attempted, Err: err}
	}
	res.Partitions = partitions
	total, err := l.wh.Count(ctx)
	if err != nil {
		return res, &model.LoadError{Rows: attempted, Err: err}
	}
	res.Total = total
	res.Duration = time.Since(start)

	l.logger.Info("warehouse sync done",
		"rows", res.Rows,
		"duplicates", res.Duplicates,
		"partitions", len(res.Partitions),
		"total", res.Total,
		"duration", res.Duration.Round(time.Millisecond))
	if res.Duplicates > 0 {
		l.logger.Warn("snapshot carries duplicate keys", "count", res.Duplicates)
	}
	return res, nil
}

// keySet records bar keys seen during one sync. Timestamps are grouped under their
// ticker so each ticker string is held once rather than once per row.
type keySet map[string]map[int64]struct{}

// add reports whether k was not yet in the set.
func (s keySet) add(k model.Key) bool {
	ts, ok := s[k.Ticker]
	if !ok {
		ts = make(map[int64]struct{})
		s[k.Ticker] = ts
	}
	if _, dup := ts[k.Timestamp]; dup {
		return false
	}
	ts[k.Timestamp] = struct{}{}
	return true
}

func (s keySet) len() int {
	n := 0
	for _, ts := range s {
		n += len(ts)
	}
	return n
}
