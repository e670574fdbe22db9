package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock/internal/model"
	"bedrock/internal/objstore"
	"bedrock/internal/rawzone"
	"bedrock/internal/saver"
)

var day = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

// fakeFetcher serves canned bars. errs queues errors returned before the bars.
type fakeFetcher struct {
	mu    sync.Mutex
	bars  map[string][]model.Bar
	errs  map[string][]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bars:  make(map[string][]model.Bar),
		errs:  make(map[string][]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Name() string { return "Fake" }

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) FetchDay(ctx context.Context, ticker string, d time.Time) (model.RowSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ticker]++
	if err := ctx.Err(); err != nil {
		return model.RowSet{}, &model.FetchError{Ticker: ticker, Day: d, Err: err}
	}
	if q := f.errs[ticker]; len(q) > 0 {
		f.errs[ticker] = q[1:]
		return model.RowSet{}, q[0]
	}
	return model.RowSet{Ticker: ticker, Day: d, Bars: f.bars[ticker]}, nil
}

func (f *fakeFetcher) callCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

func dailyBar(ticker string, close float64) model.Bar {
	return model.Bar{Timestamp: day, Ticker: ticker, Open: close, High: close, Low: close, Close: close, Volume: 1000}
}

func fetchErr(ticker string) error {
	return &model.FetchError{Ticker: ticker, Day: day, Err: errors.New("API status 503")}
}

func newLocalLoader(t *testing.T) (*rawzone.Loader, *objstore.Local) {
	t.Helper()
	store, err := objstore.NewLocal(t.TempDir(), "raw-data")
	require.NoError(t, err)
	return rawzone.NewLoader(store, saver.NewEncoder("csv"), nil), store
}

func quietOptions() Options {
	return Options{
		Retry:     RetryPolicy{MaxRetries: 0, InitialInterval: time.Millisecond},
		LogOutput: io.Discard,
	}
}

func TestRunWritesOnlyNonEmptyPartitions(t *testing.T) {
	f := newFakeFetcher()
	f.bars["SPY"] = []model.Bar{dailyBar("SPY", 470.5)}
	loader, store := newLocalLoader(t)

	sum, err := NewRunner(f, loader, quietOptions(), nil).Run(context.Background(), day, []string{"SPY", "AAPL"})
	require.NoError(t, err)

	paths, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024/01/10/SPY.csv"}, paths)

	assert.Equal(t, 1, sum.Written)
	assert.Equal(t, 1, sum.Empty)
	assert.Zero(t, sum.Failed)
	assert.NotEmpty(t, sum.RunID)
	require.Len(t, sum.Results, 2)
	assert.Equal(t, "AAPL", sum.Results[0].Ticker)
	assert.Equal(t, Empty, sum.Results[0].Outcome)
	assert.Equal(t, "2024/01/10/SPY.csv", sum.Results[1].Path)
}

func TestRunRerunOverwritesPartition(t *testing.T) {
	f := newFakeFetcher()
	f.bars["SPY"] = []model.Bar{dailyBar("SPY", 470.5)}
	loader, store := newLocalLoader(t)
	r := NewRunner(f, loader, quietOptions(), nil)

	_, err := r.Run(context.Background(), day, []string{"SPY"})
	require.NoError(t, err)
	f.bars["SPY"] = []model.Bar{dailyBar("SPY", 471.25)}
	_, err = r.Run(context.Background(), day, []string{"SPY"})
	require.NoError(t, err)

	paths, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, paths, 1)
	data, err := store.Get(context.Background(), "2024/01/10/SPY.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "471.25")
	assert.NotContains(t, string(data), "470.5")
}

func TestRunBestEffortContinuesAfterFailure(t *testing.T) {
	f := newFakeFetcher()
	f.bars["SPY"] = []model.Bar{dailyBar("SPY", 470.5)}
	f.bars["MSFT"] = []model.Bar{dailyBar("MSFT", 375)}
	f.errs["AAPL"] = []error{fetchErr("AAPL")}
	loader, _ := newLocalLoader(t)
	reports := t.TempDir()

	opts := quietOptions()
	opts.ReportDir = reports
	sum, err := NewRunner(f, loader, opts, nil).Run(context.Background(), day, []string{"AAPL", "MSFT", "SPY"})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Written)
	assert.Equal(t, 1, sum.Failed)
	failures := sum.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "AAPL", failures[0].Ticker)
	assert.ErrorIs(t, failures[0].Err, model.ErrFetchFailed)

	data, err := os.ReadFile(filepath.Join(reports, failedReport))
	require.NoError(t, err)
	var rep runReport[failedEntry]
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, sum.RunID, rep.RunID)
	assert.Equal(t, "2024-01-10", rep.Day)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, "AAPL", rep.Entries[0].Ticker)

	_, err = os.Stat(filepath.Join(reports, successReport))
	assert.NoError(t, err)
}

func TestRunReportRemovesStaleFailedList(t *testing.T) {
	f := newFakeFetcher()
	f.errs["SPY"] = []error{fetchErr("SPY")}
	f.bars["SPY"] = []model.Bar{dailyBar("SPY", 470.5)}
	loader, _ := newLocalLoader(t)
	opts := quietOptions()
	opts.ReportDir = t.TempDir()
	r := NewRunner(f, loader, opts, nil)

	_, err := r.Run(context.Background(), day, []string{"SPY"})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(opts.ReportDir, failedReport))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), day, []string{"SPY"})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(opts.ReportDir, failedReport))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	f := newFakeFetcher()
	f.bars["GOOG"] = []model.Bar{dailyBar("GOOG", 140)}
	f.errs["GOOG"] = []error{fetchErr("GOOG"), fetchErr("GOOG")}
	loader, _ := newLocalLoader(t)

	opts := quietOptions()
	opts.Retry = RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	sum, err := NewRunner(f, loader, opts, nil).Run(context.Background(), day, []string{"GOOG"})
	require.NoError(t, err)

	require.Len(t, sum.Results, 1)
	assert.Equal(t, Written, sum.Results[0].Outcome)
	assert.Equal(t, 3, sum.Results[0].Attempts)
}

func TestRunRetryExhausted(t *testing.T) {
	f := newFakeFetcher()
	f.errs["GOOG"] = []error{fetchErr("GOOG"), fetchErr("GOOG"), fetchErr("GOOG")}
	loader, _ := newLocalLoader(t)

	opts := quietOptions()
	opts.Retry = RetryPolicy{MaxRetries: 1, InitialInterval: time.Millisecond}
	sum, err := NewRunner(f, loader, opts, nil).Run(context.Background(), day, []string{"GOOG"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, f.callCount("GOOG"))
}

func TestRunDoesNotRetryConfigErrors(t *testing.T) {
	f := newFakeFetcher()
	f.errs["SPY"] = []error{&model.ConfigError{Err: errors.New("api key rejected")}}
	loader, _ := newLocalLoader(t)

	opts := quietOptions()
	opts.Retry = RetryPolicy{MaxRetries: 5, InitialInterval: time.Millisecond}
	sum, err := NewRunner(f, loader, opts, nil).Run(context.Background(), day, []string{"SPY"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.callCount("SPY"))
	assert.ErrorIs(t, sum.Results[0].Err, model.ErrConfig)
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingStore) Store(ctx context.Context, rs model.RowSet) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "", &model.StoreError{Path: "2024/01/10/" + rs.Ticker + ".csv", Err: errors.New("quota exceeded")}
}

func TestRunStoreFailure(t *testing.T) {
	f := newFakeFetcher()
	f.bars["SPY"] = []model.Bar{dailyBar("SPY", 470.5)}
	store := &failingStore{}

	opts := quietOptions()
	opts.Retry = RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond}
	sum, err := NewRunner(f, store, opts, nil).Run(context.Background(), day, []string{"SPY"})
	require.NoError(t, err)

	require.Len(t, sum.Results, 1)
	assert.Equal(t, Failed, sum.Results[0].Outcome)
	assert.ErrorIs(t, sum.Results[0].Err, model.ErrStoreFailed)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, 1, f.callCount("SPY"))
}

func TestRunFailFastReturnsFirstFailure(t *testing.T) {
	f := newFakeFetcher()
	f.errs["AAPL"] = []error{fetchErr("AAPL")}
	loader, _ := newLocalLoader(t)

	opts := quietOptions()
	opts.Policy = model.FailFast
	sum, err := NewRunner(f, loader, opts, nil).Run(context.Background(), day, []string{"AAPL"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrFetchFailed)
	assert.Equal(t, 1, sum.Failed)
}

func TestRunParallelWorkers(t *testing.T) {
	f := newFakeFetcher()
	tickers := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	for _, tk := range tickers {
		f.bars[tk] = []model.Bar{dailyBar(tk, 10)}
	}
	loader, store := newLocalLoader(t)

	opts := quietOptions()
	opts.Workers = 4
	opts.Heartbeat = time.Millisecond
	sum, err := NewRunner(f, loader, opts, nil).Run(context.Background(), day, tickers)
	require.NoError(t, err)
	assert.Equal(t, len(tickers), sum.Written)

	paths, err := store.List(context.Background(), "2024/01/10/")
	require.NoError(t, err)
	assert.Len(t, paths, len(tickers))
}

func TestRunCanceled(t *testing.T) {
	f := newFakeFetcher()
	loader, _ := newLocalLoader(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(f, loader, quietOptions(), nil).Run(ctx, day, []string{"SPY"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunNoTickers(t *testing.T) {
	loader, _ := newLocalLoader(t)
	sum, err := NewRunner(newFakeFetcher(), loader, quietOptions(), nil).Run(context.Background(), day, nil)
	require.NoError(t, err)
	assert.Empty(t, sum.Results)
}

func TestJoinFailedReasons(t *testing.T) {
	var failed []JobResult
	for _, tk := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		failed = append(failed, JobResult{Ticker: tk, Outcome: Failed, Err: errors.New("boom")})
	}
	got := joinFailedReasons(failed)
	assert.Contains(t, got, "A: boom; B: boom")
	assert.Contains(t, got, "(+2 more)")
	assert.NotContains(t, got, "F: boom")
}
