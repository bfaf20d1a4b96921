// Package retry wraps fallible operations with bounded, classified
// reattempts.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AngHelll/AutomationFrameworkP/config"
	"github.com/AngHelll/AutomationFrameworkP/driver"
	"github.com/AngHelll/AutomationFrameworkP/log"
)

// Policy bounds how often and how fast an operation is reattempted.
// A BackoffFactor below or equal to 1 keeps the delay fixed. Policies
// are immutable once constructed.
type Policy struct {
	MaxAttempts   int
	Delay         time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	RetryOn       []driver.Class
}

// DefaultPolicy retries the transient classifications three times with
// a doubling delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		Delay:         500 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      5 * time.Second,
		RetryOn:       []driver.Class{driver.ClassNotFound, driver.ClassStale, driver.ClassIntercepted},
	}
}

// FromConfig builds a policy from resolved configuration, keeping the
// default retryable classifications.
func FromConfig(c config.RetryConfig) Policy {
	p := DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	p.Delay = c.Delay()
	p.BackoffFactor = c.BackoffFactor
	if c.MaxDelayMS > 0 {
		p.MaxDelay = c.MaxDelay()
	}
	return p
}

func (p Policy) retryable(c driver.Class) bool {
	for _, r := range p.RetryOn {
		if r == c {
			return true
		}
	}
	return false
}

// delay returns the pause after the given 1-based attempt, capped at
// MaxDelay.
func (p Policy) delay(attempt int) time.Duration {
	d := p.Delay
	if p.BackoffFactor > 1 {
		d = time.Duration(float64(p.Delay) * math.Pow(p.BackoffFactor, float64(attempt-1)))
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// ExhaustedError reports an operation that kept failing until its
// attempt budget ran out. It classifies as its last cause.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

func (e *ExhaustedError) Classification() driver.Class { return driver.ClassOf(e.Err) }

// Do runs op under the policy. Failures whose classification is listed
// in RetryOn are reattempted after the policy delay; everything else
// propagates on first occurrence. A dead session is never retried no
// matter what the policy says. The error returned after exhaustion
// wraps the last failure, so classification and cause stay reachable.
func Do(ctx context.Context, name string, p Policy, op func(ctx context.Context) error) error {
	logger := log.LoggerFromContext(ctx)
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry",
					slog.String("operation", name),
					slog.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err
		class := driver.ClassOf(err)
		logger.Debug("attempt failed",
			slog.String("operation", name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("class", string(class)),
			slog.String("err", err.Error()))

		if class == driver.ClassSessionDead || !p.retryable(class) {
			return err
		}
		if attempt == attempts {
			break
		}
		if d := p.delay(attempt); d > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}
	}
	return &ExhaustedError{Op: name, Attempts: attempts, Err: lastErr}
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, name string, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, name, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
