package provider

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole provider round trip when the caller sets no deadline.
const DefaultTimeout = 30 * time.Second

// baseTransportConfig returns the shared HTTP transport configuration used by provider clients.
func baseTransportConfig() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: DefaultTimeout,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
	}
}

// NewHTTPClient creates an HTTP client configured for provider requests.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: baseTransportConfig(),
		Timeout:   timeout,
	}
}

// maxErrorBody caps how much of a failed response body ends up in an error.
const maxErrorBody = 512

// ReadBody returns the body of a 2xx response, or an error carrying the status
// and a prefix of the body for anything else.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("API status %d: %s", resp.StatusCode, string(body))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
