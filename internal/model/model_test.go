package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"fetch", &FetchError{Ticker: "SPY", Day: day, Err: cause}, ErrFetchFailed},
		{"store", &StoreError{Path: "2024/01/10/SPY.csv", Err: cause}, ErrStoreFailed},
		{"config", &ConfigError{Err: cause}, ErrConfig},
		{"load", &LoadError{Rows: 10, Err: cause}, ErrLoadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("job: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
			assert.ErrorIs(t, wrapped, cause)
			assert.NotErrorIs(t, wrapped, ErrNoData)
		})
	}

	var fe *FetchError
	require.ErrorAs(t, fmt.Errorf("x: %w", &FetchError{Ticker: "AAPL", Day: day, Err: cause}), &fe)
	assert.Equal(t, "AAPL", fe.Ticker)
	assert.Equal(t, "fetch AAPL on 2024-01-10: boom", fe.Error())
}

func TestBarValidate(t *testing.T) {
	ts := time.Date(2024, 1, 10, 5, 0, 0, 0, time.UTC)
	good := Bar{Timestamp: ts, Ticker: "SPY", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100}
	require.NoError(t, good.Validate())

	bad := good
	bad.Low = -1
	assert.Error(t, bad.Validate())

	bad = good
	bad.Volume = -5
	assert.Error(t, bad.Validate())

	bad = good
	bad.Ticker = ""
	assert.Error(t, bad.Validate())
}

func TestBarKeyAndPartition(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	a := Bar{Ticker: "SPY", Timestamp: time.Date(2024, 1, 31, 20, 0, 0, 0, ny)}
	b := Bar{Ticker: "SPY", Timestamp: a.Timestamp.UTC()}

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "202402", a.Partition())
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDay("03/05/2024")
	assert.Error(t, err)

	assert.Equal(t, d, Day(time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)))
	assert.True(t, RowSet{Ticker: "SPY"}.Empty())
}
