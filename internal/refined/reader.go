// Package refined reads the refined dataset: a Delta-format table of Parquet files
// produced by the external refinement step. The reader streams it in bounded batches.
package refined

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/parquet-go/parquet-go"

	"bedrock/internal/model"
	"bedrock/internal/objstore"
)

// DefaultBatchSize is used when Scan is given a non-positive batch size.
const DefaultBatchSize = 10000

// Reader reads a refined table rooted at Prefix inside a store.
type Reader struct {
	store  objstore.Store
	table  string
	logger *slog.Logger
}

// NewReader creates a reader for the table at prefix (e.g. "daily_bars").
func NewReader(store objstore.Store, prefix string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	table := strings.Trim(prefix, "/")
	if table != "" {
		table += "/"
	}
	return &Reader{store: store, table: table, logger: logger}
}

// Files returns the data files of the current snapshot, as store paths.
// With a _delta_log the transaction log decides; without one every .parquet
// file under the prefix is part of the snapshot.
func (r *Reader) Files(ctx context.Context) ([]string, error) {
	commits, err := listCommits(ctx, r.store, r.table)
	if err != nil {
		return nil, fmt.Errorf("list delta log: %w", err)
	}
	if len(commits) > 0 {
		rel, err := replayLog(ctx, r.store, commits)
		if err != nil {
			return nil, err
		}
		files := make([]string, len(rel))
		for i, p := range rel {
			files[i] = r.table + p
		}
		r.logger.Debug("delta snapshot resolved", "version", commits[len(commits)-1].version, "files", len(files))
		return files, nil
	}

	paths, err := r.store.List(ctx, r.table)
	if err != nil {
		return nil, fmt.Errorf("list refined files: %w", err)
	}
	var files []string
	for _, p := range paths {
		if strings.HasSuffix(p, ".parquet") && !strings.Contains(p, "/"+deltaLogDir) && !strings.HasPrefix(p, deltaLogDir) {
			files = append(files, p)
		}
	}
	return files, nil
}

// Scan streams every row of the snapshot to fn in batches of at most batchSize.
// The batch slice is reused between calls; fn must copy what it keeps.
// Columns are matched by name, so column order in the files does not matter.
func (r *Reader) Scan(ctx context.Context, batchSize int, fn func([]model.Bar) error) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	files, err := r.Files(ctx)
	if err != nil {
		return 0, err
	}
	r.logger.Info("reading refined snapshot", "location", r.store.Location(), "table", r.table, "files", len(files))

	buf := make([]model.Bar, batchSize)
	total := 0
	for _, f := range files {
		n, err := r.scanFile(ctx, f, buf, fn)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Reader) scanFile(ctx context.Context, file string, buf []model.Bar, fn func([]model.Bar) error) (int, error) {
	data, err := r.store.Get(ctx, file)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", file, err)
	}
	pr := parquet.NewGenericReader[model.Bar](bytes.NewReader(data))
	defer pr.Close()

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, readErr := pr.Read(buf)
		if n > 0 {
			for i := range buf[:n] {
				buf[i].Timestamp = buf[i].Timestamp.UTC()
			}
			if err := fn(buf[:n]); err != nil {
				return total, err
			}
			total += n
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("decode %s: %w", file, readErr)
		}
	}
}
