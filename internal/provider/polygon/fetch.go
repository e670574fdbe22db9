package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bedrock/internal/model"
	"bedrock/internal/provider"
)

// Max 50k results per request
const maxLimit = 50000

// Fetcher requests daily aggregates from the Polygon API.
type Fetcher struct {
	client  *http.Client
	baseURL string
	keys    *keyPool
	logger  *slog.Logger
}

var _ provider.BarFetcher = (*Fetcher)(nil)

// Name returns provider name
func (f *Fetcher) Name() string {
	return "Polygon"
}

// Close closes connections
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// buildDailyAggregatesRequest builds the GET request for unadjusted 1-day aggregates over [day, day].
func (f *Fetcher) buildDailyAggregatesRequest(ctx context.Context, ticker string, day time.Time, apiKey string) (*http.Request, error) {
	d := day.Format(model.DayLayout)
	rawURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s", f.baseURL, url.PathEscape(ticker), d, d)
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("adjusted", "false")
	q.Set("limit", strconv.Itoa(maxLimit))
	q.Set("sort", "asc")
	q.Set("apiKey", apiKey)
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// FetchDay fetches the unadjusted daily bar for ticker on day.
// DELAYED responses are failures: the day is not published yet and must be retried, not skipped.
func (f *Fetcher) FetchDay(ctx context.Context, ticker string, day time.Time) (model.RowSet, error) {
	day = model.Day(day)
	rs := model.RowSet{Ticker: ticker, Day: day}
	fail := func(err error) (model.RowSet, error) {
		return rs, &model.FetchError{Ticker: ticker, Day: day, Err: err}
	}

	key, err := f.keys.take(ctx)
	if err != nil {
		return fail(err)
	}
	f.logger.Debug("key take", "ticker", ticker, "key", keyPrefix(key))
	req, err := f.buildDailyAggregatesRequest(ctx, ticker, day, key)
	if err != nil {
		return fail(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("API call failed: %w", err))
	}
	body, err := provider.ReadBody(resp)
	if err != nil {
		return fail(err)
	}

	var result AggregatesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fail(fmt.Errorf("parse JSON: %w", err))
	}
	switch result.Status {
	case "OK":
	case "DELAYED":
		return fail(fmt.Errorf("data delayed, not yet available"))
	case "":
		return fail(fmt.Errorf("response has no status field"))
	default:
		return fail(fmt.Errorf("API status not OK: %s", result.Status))
	}

	bars := make([]model.Bar, 0, len(result.Results))
	for i, raw := range result.Results {
		bar, err := raw.ToBar(ticker)
		if err != nil {
			return fail(fmt.Errorf("result %d: %w", i, err))
		}
		bars = append(bars, bar)
	}
	rs.Bars = bars
	f.logger.Debug("polygon fetch", "ticker", ticker, "day", day.Format(model.DayLayout), "bars", len(bars))
	return rs, nil
}
