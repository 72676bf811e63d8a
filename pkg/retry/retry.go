// Package retry implements the shared rate-limit backoff policy used by both
// the agent dispatcher and the judge client. Only rate-limit errors are
// retried; everything else fails the attempt immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RateLimitError marks an upstream 429. Wrap transport errors in this type to
// opt them into backoff.
type RateLimitError struct {
	Source string // "agent" or "judge"
	Detail string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited: %s", e.Source, e.Detail)
}

// ErrAttemptsExhausted wraps the last error after MaxAttempts rate-limited
// tries.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Policy holds the backoff parameters. Zero values are replaced by defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy mirrors the env defaults: 5 attempts, 1s base, 30s cap.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// OnWait is invoked before each backoff sleep with the 1-based attempt number
// and the wait duration. Callers surface these into run status history.
type OnWait func(attempt int, wait time.Duration)

// Do runs fn up to MaxAttempts times, sleeping between rate-limited attempts
// with exponential backoff (doubling from BaseDelay, capped at MaxDelay, plus
// jitter in [0, BaseDelay)). Non-rate-limit errors and context cancellation
// return immediately.
func (p Policy) Do(ctx context.Context, fn func() error, onWait OnWait) error {
	p = p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRateLimit(err) {
			return err
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		wait := p.backoff(attempt)
		if onWait != nil {
			onWait(attempt, wait)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts, lastErr)
}

// backoff returns BaseDelay*2^(attempt-1) capped at MaxDelay, plus jitter.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	jitter := time.Duration(rand.Int64N(int64(p.BaseDelay)))
	return d + jitter
}
