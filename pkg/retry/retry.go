package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 1
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNilPredicate is returned when WithRetryIf gets a nil function.
	ErrNilPredicate = errors.New("retry predicate must not be nil")
)

// Func is a unit of work that may be attempted more than once.
type Func func(ctx context.Context) error

// Option configures Do.
type Option func(*config) error

type config struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	retryIf      func(error) bool
	onRetry      func(attempt int, err error, delay time.Duration)
}

// Do runs fn until it succeeds, fails with an error the predicate rejects, the
// attempts are used up, or ctx is done. Delays grow as baseDelay * 2^(attempt-1)
// plus jitter. Without WithRetryIf nothing is retried.
func Do(ctx context.Context, fn Func, options ...Option) error {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		retryIf:      func(error) bool { return false },
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := Backoff(cfg.baseDelay, attempt, cfg.jitterFactor)
			if cfg.onRetry != nil {
				cfg.onRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !cfg.retryIf(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// Backoff returns the delay before the given retry attempt (1-based).
func Backoff(base time.Duration, attempt int, jitterFactor float64) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := base * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * jitterFactor //nolint:gosec // jitter does not need crypto randomness
	return delay + time.Duration(jitter)
}

// WithMaxAttempts sets the total number of attempts, the first one included.
func WithMaxAttempts(attempts int) Option {
	return func(cfg *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		cfg.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(delay time.Duration) Option {
	return func(cfg *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		cfg.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets the random share added on top of each delay, 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(cfg *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		cfg.jitterFactor = factor
		return nil
	}
}

// WithRetryIf decides which errors are worth another attempt.
func WithRetryIf(retryIf func(error) bool) Option {
	return func(cfg *config) error {
		if retryIf == nil {
			return ErrNilPredicate
		}
		cfg.retryIf = retryIf
		return nil
	}
}

// WithOnRetry registers a hook called before every retry, e.g. for logging.
func WithOnRetry(onRetry func(attempt int, err error, delay time.Duration)) Option {
	return func(cfg *config) error {
		cfg.onRetry = onRetry
		return nil
	}
}
