// Package retry retries idempotent database reads that fail transiently.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0
}

// DefaultConfig suits the record load: two retries starting at 250ms,
// capped at 2s, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   2,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() *Config {
	return &Config{}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// DoIfRetryable runs fn and retries it while it fails with a transient error.
// Permanent errors are returned at once, and cancellation of ctx stops the
// wait between attempts. The result of the last attempt is returned.
func DoIfRetryable[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil || attempt >= cfg.MaxRetries || !IsRetryable(err) {
			return result, err
		}

		select {
		case <-time.After(applyJitter(delay, cfg.JitterFactor)):
		case <-ctx.Done():
			return result, ctx.Err()
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// transientPatterns are SQL Server and network failures that succeed on a
// second attempt often enough to be worth one.
var transientPatterns = []string{
	"deadlock victim",
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"tls handshake timeout",
	"timed out",
	"is not currently available",
	"service is currently busy",
	"too many connections",
}

// IsRetryable reports whether err looks transient. Context cancellation and
// deadlines are never retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
