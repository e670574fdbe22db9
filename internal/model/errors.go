package model

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Typed errors below match their kind with errors.Is.
var (
	// ErrFetchFailed covers transport, HTTP status and response shape failures upstream.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNoData is an outcome, not a failure: the provider had no bars for the key.
	ErrNoData = errors.New("no data")
	// ErrStoreFailed covers object-storage write failures.
	ErrStoreFailed = errors.New("store failed")
	// ErrConfig covers missing or invalid configuration. Never retried.
	ErrConfig = errors.New("configuration error")
	// ErrLoadFailed covers warehouse connectivity, read and insert failures.
	ErrLoadFailed = errors.New("load failed")
)

// FetchError is returned by fetchers for one (ticker, day).
type FetchError struct {
	Ticker string
	Day    time.Time
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s on %s: %v", e.Ticker, e.Day.Format(DayLayout), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// StoreError is returned by the raw loader for one partition path.
type StoreError struct {
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreFailed }

// ConfigError carries every configuration problem found at startup.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// LoadError is returned by the warehouse loader. Rows is the number of rows
// attempted when the failure happened.
type LoadError struct {
	Rows int
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load after %d rows: %v", e.Rows, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoadFailed }
