package saver

import (
	"strings"

	"bedrock/internal/model"
)

// Encoder serializes one partition's bars to bytes for the raw zone.
// The raw loader depends only on this interface; main picks the format.
type Encoder interface {
	Encode(bars []model.Bar) ([]byte, error)
	Extension() string
}

// Columns is the raw partition column order the refinement step reads.
var Columns = []string{"open", "high", "low", "close", "volume", "ticker", "timestamp"}

// NewEncoder creates an implementation by format (csv, parquet, json).
// Returns nil if format not supported.
func NewEncoder(format string) Encoder {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVEncoder{}
	case "parquet":
		return ParquetEncoder{}
	case "json":
		return JSONEncoder{}
	default:
		return nil
	}
}
