// Package resilience provides fault-tolerance helpers for outbound calls:
// retry with exponential backoff and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds retry parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so RetryWithBackoff returns it immediately.
// Use it for failures a retry cannot fix, such as a 4xx response.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryWithBackoff executes fn up to MaxRetries+1 times with exponential
// backoff plus jitter between attempts. It stops early on success, on a
// Permanent error, or when ctx is done.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil || IsPermanent(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(cfg.InitialBackoff, attempt)):
			}
		}
	}
	return lastErr
}

// backoff returns initial * 2^attempt plus up to 50% jitter.
func backoff(initial time.Duration, attempt int) time.Duration {
	d := initial << attempt
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// NewCircuitBreaker creates a circuit breaker that opens once at least five
// requests in a 30s window fail at a 60% rate, and probes again after 10s.
// Permanent errors do not count as failures.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
	})
}
