// Package alpaca fetches daily bars from the Alpaca market data API v2.
package alpaca

import (
	"fmt"
	"log/slog"
	"net/http"

	"bedrock/internal/provider"
)

// DefaultBaseURL is the Alpaca stocks data endpoint.
const DefaultBaseURL = "https://data.alpaca.markets/v2/stocks"

// Config represents the configuration for the Alpaca client.
type Config struct {
	// APIKey is the Alpaca key id.
	APIKey string
	// APISecret is the Alpaca secret key.
	APISecret string
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// Feed selects the data feed (iex, sip). Empty uses the account default.
	Feed string
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("alpaca api key and secret are required")
	}
	return nil
}

// Client represents the Alpaca market data client.
type Client struct {
	cfg    Config
	httpc  *http.Client
	logger *slog.Logger
}

// Ensure the client implements the BarFetcher interface.
var _ provider.BarFetcher = (*Client)(nil)

// NewClient instantiates a new Alpaca client. A nil httpc uses the shared provider transport.
func NewClient(cfg Config, httpc *http.Client, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpc == nil {
		httpc = provider.NewHTTPClient(provider.DefaultTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		httpc:  httpc,
		logger: logger,
	}, nil
}

// Name returns provider name.
func (c *Client) Name() string { return "Alpaca" }

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}

// formURL creates full urls including parameters for the api.
// Safe for concurrent workers: nothing is shared between calls.
func (c *Client) formURL(path string, params string) string {
	return c.cfg.BaseURL + path + "?" + params
}
