// Package retry re-runs an operation with exponential backoff while its
// error looks like a rate limit.
package retry

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"
)

// Timer is the clock the backoff waits on. Tests swap it out.
type Timer = backoff.Timer

// Policy configures one call site.
type Policy struct {
	// MaxRetries is the retry budget. The operation runs at most MaxRetries+1 times.
	MaxRetries int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// Multiplier grows the delay after each retry. Zero means 2.
	Multiplier float64
	// Retryable decides whether an error is worth another attempt.
	// Nil means IsRateLimited.
	Retryable func(error) bool
}

type options struct {
	timer  Timer
	notify backoff.Notify
}

// Option tunes a single Do call.
type Option func(*options)

// WithTimer replaces the real timer.
func WithTimer(t Timer) Option {
	return func(o *options) { o.timer = t }
}

// WithNotify is called before every wait with the error that triggered the
// retry and the delay about to be slept.
func WithNotify(fn func(err error, delay time.Duration)) Option {
	return func(o *options) { o.notify = fn }
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// budget is spent. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRateLimited
	}

	operation := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotifyWithTimer(operation, p.backOff(ctx), o.notify, o.timer)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts...)
	return out, err
}

// backOff builds a plain doubling schedule: no jitter, no ceiling, no
// elapsed-time limit.
func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = p.Multiplier
	if exp.Multiplier <= 0 {
		exp.Multiplier = 2
	}
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// IsRateLimited reports whether err carries the rate-limit signature:
// a "429" anywhere in the message or the word "exhausted" in any case.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "exhausted")
}
