package polygon

import (
	"log/slog"
	"net/http"
	"time"

	"bedrock/internal/provider"
)

// DefaultBaseURL is the Polygon REST endpoint.
const DefaultBaseURL = "https://api.polygon.io"

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL points the fetcher at another endpoint (tests, proxies).
func WithBaseURL(u string) Option {
	return func(f *Fetcher) {
		if u != "" {
			f.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.client = hc
	}
}

// WithMinInterval spaces consecutive requests on the same key by d.
func WithMinInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.keys.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher constructs a Fetcher with the shared provider HTTP client.
// Requests rotate over apiKeys round-robin.
func NewFetcher(apiKeys []string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  provider.NewHTTPClient(provider.DefaultTimeout),
		baseURL: DefaultBaseURL,
		keys:    newKeyPool(apiKeys, 0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}
