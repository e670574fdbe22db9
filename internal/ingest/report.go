package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bedrock/internal/model"
)

const (
	successReport = ".lastrun.success.json"
	failedReport  = ".lastrun.failed.json"
)

type successEntry struct {
	Ticker string `json:"ticker"`
	Path   string `json:"path,omitempty"`
	Bars   int    `json:"bars"`
}

type failedEntry struct {
	Ticker string `json:"ticker"`
	Day    string `json:"day"`
	Reason string `json:"reason"`
}

type runReport[T any] struct {
	RunID   string `json:"run_id"`
	Day     string `json:"day"`
	Entries []T    `json:"entries"`
}

// writeRunReport writes the success and failed lists of the last run. A list with no
// entries removes the file left by an earlier run.
func writeRunReport(dir string, s Summary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	day := s.Day.Format(model.DayLayout)

	var ok []successEntry
	var failed []failedEntry
	for _, r := range s.Results {
		switch r.Outcome {
		case Written, Empty:
			ok = append(ok, successEntry{Ticker: r.Ticker, Path: r.Path, Bars: r.Bars})
		case Failed:
			failed = append(failed, failedEntry{Ticker: r.Ticker, Day: day, Reason: reason(r)})
		}
	}

	if err := writeOrRemove(filepath.Join(dir, successReport), runReport[successEntry]{RunID: s.RunID, Day: day, Entries: ok}, len(ok)); err != nil {
		return err
	}
	return writeOrRemove(filepath.Join(dir, failedReport), runReport[failedEntry]{RunID: s.RunID, Day: day, Entries: failed}, len(failed))
}

func writeOrRemove(path string, v any, n int) error {
	if n == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0644)
}
