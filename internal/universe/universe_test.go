package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []string
	}{
		{"txt with comments", "tickers.txt", "# core\nspy\n\nAAPL\n# skip\naapl\n", []string{"SPY", "AAPL"}},
		{"json", "tickers.json", `["goog", "MSFT", " spy "]`, []string{"GOOG", "MSFT", "SPY"}},
		{"yaml list", "tickers.yaml", "- spy\n- qqq\n", []string{"SPY", "QQQ"}},
		{"yaml mapping", "universe.yml", "tickers:\n  - iwm\n  - dia\n", []string{"IWM", "DIA"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadFile(writeTempFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = LoadFile(writeTempFile(t, "tickers.csv", "SPY"))
	assert.Error(t, err)

	_, err = LoadFile(writeTempFile(t, "tickers.json", `{"bad":`))
	assert.Error(t, err)

	_, err = LoadFile(writeTempFile(t, "tickers.txt", "# nothing\n"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	got, err := Resolve(nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "AAPL", "GOOG", "MSFT"}, got)

	got, err = Resolve([]string{"nvda", "", "NVDA", "tsla"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "TSLA"}, got)

	got, err = Resolve([]string{"nvda"}, writeTempFile(t, "t.txt", "amd\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD"}, got)
}
