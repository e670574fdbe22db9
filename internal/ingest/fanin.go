package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

func runLogWriter(w io.Writer, lines <-chan string) {
	for s := range lines {
		fmt.Fprintln(w, s)
	}
}

// tally counts outcomes for the heartbeat and the summary.
type tally struct {
	mu                     sync.Mutex
	written, empty, failed int
	bars                   int
}

func (t *tally) add(r JobResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch r.Outcome {
	case Written:
		t.written++
		t.bars += r.Bars
	case Empty:
		t.empty++
	default:
		t.failed++
	}
}

func (t *tally) snapshot() (written, empty, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written, t.empty, t.failed
}

func runHeartbeat(ctx context.Context, interval time.Duration, totalJobs int, t *tally, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			w, e, f, bars := t.written, t.empty, t.failed, t.bars
			t.mu.Unlock()
			logger.Info("heartbeat", "done", w+e+f, "total", totalJobs, "written", w, "empty", e, "failed", f, "bars", bars)
		}
	}
}
