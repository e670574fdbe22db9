package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bedrock/internal/model"
)

// RetryPolicy bounds the exponential backoff around fetch and store.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. Zero means no retry.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries three times starting at one second.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, InitialInterval: time.Second, MaxInterval: 30 * time.Second}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)
}

// retry runs op until it succeeds, the policy is exhausted or ctx ends.
// Config errors and errors seen after ctx ended are not retried. The last
// error from op is returned, so callers keep the typed error.
func retry(ctx context.Context, p RetryPolicy, op func() error, notify backoff.Notify) error {
	var last error
	err := backoff.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		last = err
		if ctx.Err() != nil || errors.Is(err, model.ErrConfig) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), notify)
	if err != nil && last != nil {
		return last
	}
	return err
}
