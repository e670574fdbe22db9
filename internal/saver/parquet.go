package saver

import (
	"bytes"

	"github.com/parquet-go/parquet-go"

	"bedrock/internal/model"
)

// rawRow fixes the Parquet column order to Columns; model.Bar orders for the warehouse.
type rawRow struct {
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
	Ticker    string  `parquet:"ticker"`
	Timestamp int64   `parquet:"timestamp,timestamp(microsecond)"`
}

// ParquetEncoder writes bars as a single Parquet file.
type ParquetEncoder struct{}

func (ParquetEncoder) Extension() string { return "parquet" }

func (ParquetEncoder) Encode(bars []model.Bar) ([]byte, error) {
	rows := make([]rawRow, len(bars))
	for i, b := range bars {
		rows[i] = rawRow{
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Ticker:    b.Ticker,
			Timestamp: b.Timestamp.UTC().UnixMicro(),
		}
	}
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
