package model

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day format used in provider queries, logs and reports.
const DayLayout = "2006-01-02"

// Bar represents one daily OHLCV observation.
// The same struct travels through every tier: raw encoders, the refined Parquet
// reader (parquet tags) and the ClickHouse batch insert (ch tags), so column
// names are the contract between tiers.
type Bar struct {
	Timestamp time.Time `json:"timestamp" parquet:"timestamp,timestamp(microsecond)" ch:"timestamp"`
	Ticker    string    `json:"ticker" parquet:"ticker" ch:"ticker"`
	Open      float64   `json:"open" parquet:"open" ch:"open"`
	High      float64   `json:"high" parquet:"high" ch:"high"`
	Low       float64   `json:"low" parquet:"low" ch:"low"`
	Close     float64   `json:"close" parquet:"close" ch:"close"`
	Volume    int64     `json:"volume" parquet:"volume" ch:"volume"`
}

// Validate rejects bars that break the non-negative price/volume invariant.
func (b Bar) Validate() error {
	if b.Ticker == "" {
		return fmt.Errorf("bar at %s has no ticker", b.Timestamp.Format(time.RFC3339))
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%s bar has no timestamp", b.Ticker)
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("%s bar at %s has a negative price", b.Ticker, b.Timestamp.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("%s bar at %s has a negative volume", b.Ticker, b.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// Key identifies a bar inside the warehouse: (ticker, timestamp).
type Key struct {
	Ticker    string
	Timestamp int64
}

// Key returns the warehouse identity of the bar.
func (b Bar) Key() Key {
	return Key{Ticker: b.Ticker, Timestamp: b.Timestamp.UTC().Unix()}
}

// Partition returns the month partition id (yyyymm) the bar belongs to.
func (b Bar) Partition() string {
	return b.Timestamp.UTC().Format("200601")
}

// RowSet is the result of fetching one ticker for one calendar day.
type RowSet struct {
	Ticker string
	Day    time.Time
	Bars   []Bar
}

// Empty reports whether the provider had no bars for the key (holiday, delisted symbol).
func (r RowSet) Empty() bool {
	return len(r.Bars) == 0
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar day in UTC.
func ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return d, nil
}
