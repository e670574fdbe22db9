package saver

import (
	"encoding/json"
	"time"

	"bedrock/internal/model"
)

// jsonRow fixes the object key order to Columns, matching the CSV and Parquet encoders.
type jsonRow struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	Ticker    string    `json:"ticker"`
	Timestamp time.Time `json:"timestamp"`
}

// JSONEncoder writes bars as an indented JSON array.
type JSONEncoder struct{}

func (JSONEncoder) Extension() string { return "json" }

func (JSONEncoder) Encode(bars []model.Bar) ([]byte, error) {
	rows := make([]jsonRow, len(bars))
	for i, b := range bars {
		rows[i] = jsonRow{
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Ticker:    b.Ticker,
			Timestamp: b.Timestamp.UTC(),
		}
	}
	return json.MarshalIndent(rows, "", "  ")
}
