package saver

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"bedrock/internal/model"
)

// CSVEncoder writes a header row followed by one row per bar, in Columns order.
type CSVEncoder struct{}

func (CSVEncoder) Extension() string { return "csv" }

func (CSVEncoder) Encode(bars []model.Bar) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, b := range bars {
		if err := w.Write([]string{
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			strconv.FormatInt(b.Volume, 10),
			b.Ticker,
			b.Timestamp.UTC().Format(time.RFC3339),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
