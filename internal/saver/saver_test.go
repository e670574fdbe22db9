package saver

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"bedrock/internal/model"
)

func sampleBars() []model.Bar {
	return []model.Bar{{
		Timestamp: time.Date(2024, 1, 10, 5, 0, 0, 0, time.UTC),
		Ticker:    "SPY",
		Open:      474.16,
		High:      477.45,
		Low:       473.87,
		Close:     476.36,
		Volume:    67310649,
	}}
}

func TestNewEncoder(t *testing.T) {
	assert.Equal(t, "csv", NewEncoder("CSV ").Extension())
	assert.Equal(t, "parquet", NewEncoder("parquet").Extension())
	assert.Equal(t, "json", NewEncoder("json").Extension())
	assert.Nil(t, NewEncoder("xlsx"))
}

func TestCSVEncoder(t *testing.T) {
	got, err := CSVEncoder{}.Encode(sampleBars())
	require.NoError(t, err)

	want := "open,high,low,close,volume,ticker,timestamp\n" +
		"474.16,477.45,473.87,476.36,67310649,SPY,2024-01-10T05:00:00Z\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVEncoderEmpty(t *testing.T) {
	got, err := CSVEncoder{}.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "open,high,low,close,volume,ticker,timestamp\n", string(got))
}

func TestJSONEncoder(t *testing.T) {
	got, err := JSONEncoder{}.Encode(sampleBars())
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(got, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "SPY", decoded[0]["ticker"])
	assert.Equal(t, "2024-01-10T05:00:00Z", decoded[0]["timestamp"])
}

func TestEncoderColumnOrder(t *testing.T) {
	tests := []struct {
		name    string
		encoder Encoder
		columns func(t *testing.T, got []byte) []string
	}{
		{
			name:    "json",
			encoder: JSONEncoder{},
			columns: func(t *testing.T, got []byte) []string {
				var keys []string
				gjson.GetBytes(got, "0").ForEach(func(key, _ gjson.Result) bool {
					keys = append(keys, key.String())
					return true
				})
				return keys
			},
		},
		{
			name:    "csv",
			encoder: CSVEncoder{},
			columns: func(t *testing.T, got []byte) []string {
				header, _, _ := strings.Cut(string(got), "\n")
				return strings.Split(strings.TrimSpace(header), ",")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.encoder.Encode(sampleBars())
			require.NoError(t, err)
			assert.Equal(t, Columns, tt.columns(t, got))
		})
	}
}

func TestParquetEncoderColumnOrder(t *testing.T) {
	got, err := ParquetEncoder{}.Encode(sampleBars())
	require.NoError(t, err)

	f, err := parquet.OpenFile(bytes.NewReader(got), int64(len(got)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.NumRows())

	var names []string
	for _, field := range f.Schema().Fields() {
		names = append(names, field.Name())
	}
	assert.Equal(t, Columns, names)
}
