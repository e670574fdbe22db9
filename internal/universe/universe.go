// Package universe resolves the fixed ticker universe an ingest run iterates.
package universe

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default is used when neither TICKERS nor TICKERS_FILE is configured.
var Default = []string{"SPY", "AAPL", "GOOG", "MSFT"}

// Resolve returns the ticker universe: a non-empty file wins over the inline list,
// and the inline list over Default. The result is upper-cased and deduplicated in order.
func Resolve(inline []string, path string) ([]string, error) {
	if path != "" {
		return LoadFile(path)
	}
	if tickers := Normalize(inline); len(tickers) > 0 {
		return tickers, nil
	}
	return Normalize(Default), nil
}

// LoadFile reads a list of tickers from a file.
// Supported formats:
//   - .txt         : one ticker per line, '#' lines are treated as comments
//   - .json        : JSON array of strings
//   - .yaml / .yml : YAML list of strings, or a mapping with a "tickers" list
func LoadFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ticker file %s: %w", path, err)
	}

	var tickers []string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(content, &tickers); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		tickers, err = parseYAML(content)
		if err != nil {
			return nil, err
		}
	case ".txt":
		tickers = parseText(string(content))
	default:
		return nil, fmt.Errorf("unsupported ticker file extension %q (use .txt, .json or .yaml)", filepath.Ext(path))
	}

	unique := Normalize(tickers)
	if len(unique) == 0 {
		return nil, fmt.Errorf("ticker file %s lists no tickers", path)
	}
	slog.Info("loaded tickers from file", "count", len(unique), "path", path)
	return unique, nil
}

// Normalize trims, upper-cases and removes empty and duplicate tickers.
func Normalize(tickers []string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, t := range tickers {
		t = strings.TrimSpace(strings.ToUpper(t))
		if t != "" && !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	return unique
}

// parseText parses a plain text representation of tickers
// where each non-empty, non-comment line represents a ticker.
func parseText(s string) []string {
	var tickers []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			tickers = append(tickers, line)
		}
	}
	return tickers
}

func parseYAML(content []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(content, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Tickers []string `yaml:"tickers"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return doc.Tickers, nil
}
