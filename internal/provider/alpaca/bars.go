package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"bedrock/internal/model"
	"bedrock/internal/provider"
)

const (
	barsPath = "/bars"
	// oneDay is the Alpaca timeframe for daily bars.
	oneDay = "1Day"
	// rawAdjustment asks for unadjusted prices; splits and dividends are applied downstream.
	rawAdjustment = "raw"
)

// requiredFields are the bar keys every Alpaca bar must carry, with their json type.
var requiredFields = []struct {
	name string
	typ  gjson.Type
}{
	{"t", gjson.String},
	{"o", gjson.Number},
	{"h", gjson.Number},
	{"l", gjson.Number},
	{"c", gjson.Number},
	{"v", gjson.Number},
}

// FetchDay fetches the unadjusted daily bar for ticker on day.
func (c *Client) FetchDay(ctx context.Context, ticker string, day time.Time) (model.RowSet, error) {
	day = model.Day(day)
	rs := model.RowSet{Ticker: ticker, Day: day}
	fail := func(err error) (model.RowSet, error) {
		return rs, &model.FetchError{Ticker: ticker, Day: day, Err: err}
	}

	params := url.Values{}
	params.Add("symbols", ticker)
	params.Add("timeframe", oneDay)
	params.Add("start", day.Format(model.DayLayout))
	params.Add("end", day.Format(model.DayLayout))
	params.Add("adjustment", rawAdjustment)
	if c.cfg.Feed != "" {
		params.Add("feed", c.cfg.Feed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(barsPath, params.Encode()), nil)
	if err != nil {
		return fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("APCA-API-KEY-ID", c.cfg.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.cfg.APISecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fail(fmt.Errorf("fetching daily bars: %w", err))
	}
	body, err := provider.ReadBody(resp)
	if err != nil {
		return fail(err)
	}

	bars, err := ParseBars(body, ticker)
	if err != nil {
		return fail(err)
	}
	rs.Bars = bars
	c.logger.Debug("alpaca fetch", "ticker", ticker, "day", day.Format(model.DayLayout), "bars", len(bars))
	return rs, nil
}

// ParseBars extracts the bars for ticker from a multi-symbol bars response.
// A missing "bars" key is a malformed response; a null/empty map or no entry
// for the ticker means no data.
func ParseBars(body []byte, ticker string) ([]model.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("response is not a json object")
	}
	barsByTicker := root.Get("bars")
	if !barsByTicker.Exists() {
		return nil, fmt.Errorf("response has no bars field")
	}
	if barsByTicker.Type == gjson.Null {
		return nil, nil
	}
	if !barsByTicker.IsObject() {
		return nil, fmt.Errorf("bars field is not an object")
	}

	entry := barsByTicker.Get(gjson.Escape(ticker))
	if !entry.Exists() || entry.Type == gjson.Null {
		return nil, nil
	}
	if !entry.IsArray() {
		return nil, fmt.Errorf("bars for %s is not an array", ticker)
	}

	data := entry.Array()
	bars := make([]model.Bar, 0, len(data))
	for idx := range data {
		for _, field := range requiredFields {
			v := data[idx].Get(field.name)
			if !v.Exists() {
				return nil, fmt.Errorf("bar %d is missing field %q", idx, field.name)
			}
			if v.Type != field.typ {
				return nil, fmt.Errorf("bar %d field %q is %s, want %s", idx, field.name, v.Type, field.typ)
			}
		}
		ts, err := time.Parse(time.RFC3339, data[idx].Get("t").String())
		if err != nil {
			return nil, fmt.Errorf("parsing bar %d timestamp: %w", idx, err)
		}
		bar := model.Bar{
			Timestamp: ts.UTC(),
			Ticker:    ticker,
			Open:      data[idx].Get("o").Float(),
			High:      data[idx].Get("h").Float(),
			Low:       data[idx].Get("l").Float(),
			Close:     data[idx].Get("c").Float(),
			Volume:    data[idx].Get("v").Int(),
		}
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("bar %d: %w", idx, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
