package alpaca

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrock/internal/model"
)

var day = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, status int, body string, check func(*http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "key", APISecret: "secret", BaseURL: srv.URL}, srv.Client(), nil)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{APIKey: "key"}, nil, nil)
	assert.Error(t, err)
}

func TestFetchDayRequest(t *testing.T) {
	body := `{"bars":{"SPY":[{"t":"2024-01-10T05:00:00Z","o":474.16,"h":477.45,"l":473.87,"c":476.36,"v":67310649,"n":512345,"vw":475.9}]},"next_page_token":null}`
	c := newTestClient(t, http.StatusOK, body, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/bars", r.URL.Path)
		assert.Equal(t, "SPY", q.Get("symbols"))
		assert.Equal(t, "1Day", q.Get("timeframe"))
		assert.Equal(t, "2024-01-10", q.Get("start"))
		assert.Equal(t, "2024-01-10", q.Get("end"))
		assert.Equal(t, "raw", q.Get("adjustment"))
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
	})

	rs, err := c.FetchDay(context.Background(), "SPY", day)
	require.NoError(t, err)
	require.Len(t, rs.Bars, 1)
	assert.Equal(t, model.Bar{
		Timestamp: time.Date(2024, 1, 10, 5, 0, 0, 0, time.UTC),
		Ticker:    "SPY",
		Open:      474.16,
		High:      477.45,
		Low:       473.87,
		Close:     476.36,
		Volume:    67310649,
	}, rs.Bars[0])
}

func TestParseBarsNoData(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null bars", `{"bars":null,"next_page_token":null}`},
		{"empty bars", `{"bars":{},"next_page_token":null}`},
		{"other ticker only", `{"bars":{"SPY":[{"t":"2024-01-10T05:00:00Z","o":1,"h":1,"l":1,"c":1,"v":1}]}}`},
		{"empty list", `{"bars":{"AAPL":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, err := ParseBars([]byte(tt.body), "AAPL")
			require.NoError(t, err)
			assert.Empty(t, bars)
		})
	}
}

func TestParseBarsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>`},
		{"array root", `[]`},
		{"missing bars", `{"message":"ok"}`},
		{"bars not object", `{"bars":[1,2]}`},
		{"entry not array", `{"bars":{"AAPL":{"t":"x"}}}`},
		{"missing close", `{"bars":{"AAPL":[{"t":"2024-01-10T05:00:00Z","o":1,"h":1,"l":1,"v":1}]}}`},
		{"bad timestamp", `{"bars":{"AAPL":[{"t":"yesterday","o":1,"h":1,"l":1,"c":1,"v":1}]}}`},
		{"null open", `{"bars":{"AAPL":[{"t":"2024-01-10T05:00:00Z","o":null,"h":1,"l":1,"c":1,"v":10}]}}`},
		{"string open", `{"bars":{"AAPL":[{"t":"2024-01-10T05:00:00Z","o":"n/a","h":1,"l":1,"c":1,"v":10}]}}`},
		{"object volume", `{"bars":{"AAPL":[{"t":"2024-01-10T05:00:00Z","o":1,"h":1,"l":1,"c":1,"v":{}}]}}`},
		{"numeric timestamp", `{"bars":{"AAPL":[{"t":1704862800,"o":1,"h":1,"l":1,"c":1,"v":10}]}}`},
		{"negative price", `{"bars":{"AAPL":[{"t":"2024-01-10T05:00:00Z","o":-1,"h":1,"l":1,"c":1,"v":1}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars, err := ParseBars([]byte(tt.body), "AAPL")
			assert.Error(t, err)
			assert.Empty(t, bars)
		})
	}
}

func TestFetchDayEmptyIsNotAnError(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `{"bars":{},"next_page_token":null}`, nil)

	rs, err := c.FetchDay(context.Background(), "AAPL", day)
	require.NoError(t, err)
	assert.True(t, rs.Empty())
}

func TestFetchDayFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"forbidden", http.StatusForbidden, `{"message":"forbidden"}`},
		{"rate limited", http.StatusTooManyRequests, `{"message":"too many requests"}`},
		{"malformed", http.StatusOK, `{"unexpected":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.status, tt.body, nil)
			_, err := c.FetchDay(context.Background(), "AAPL", day)
			require.ErrorIs(t, err, model.ErrFetchFailed)
		})
	}
}
