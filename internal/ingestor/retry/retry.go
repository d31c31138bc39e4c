package retry

import (
	"context"
	"time"

	"golang-metrics-ingestor/internal/ingestor/apperrors"
)

// Config controls the retry schedule. A zero value is not usable; start from
// DefaultConfig.
type Config struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	RateLimitFactor float64       `mapstructure:"rate_limit_factor"`
}

// DefaultConfig returns the standard schedule: up to 3 attempts with delays
// of 4s and 8s between them, capped at 60s, and rate-limit failures backed
// off three times as long.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       4 * time.Second,
		MaxDelay:        60 * time.Second,
		RateLimitFactor: 3,
	}
}

// BackoffDelay is the pure backoff schedule: base * 2^(attempt-1), capped at
// MaxDelay. Rate-limit failures get an extra multiplier since the provider
// asked us to slow down. attempt is 1-based.
func (c Config) BackoffDelay(attempt int, category apperrors.ErrorCategory) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.BaseDelay << uint(attempt-1)
	if category == apperrors.CategoryRateLimitError && c.RateLimitFactor > 1 {
		delay = time.Duration(float64(delay) * c.RateLimitFactor)
	}
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Do invokes op with bounded retries and exponential backoff. Terminal
// failures propagate immediately; retryable ones are reattempted until the
// attempt budget runs out. The returned int is the number of retries issued
// (0 when the first attempt settles it). Each invocation carries its own
// attempt counter, so concurrent calls need no coordination.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, int, error) {
	var zero T
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, attempt - 1, nil
		}
		lastErr = err

		category := apperrors.Classify(err)
		if !category.Retryable() || attempt == cfg.MaxAttempts {
			return zero, attempt - 1, tagRetries(err, attempt-1)
		}

		if err := sleep(ctx, cfg.BackoffDelay(attempt, category)); err != nil {
			return zero, attempt - 1, tagRetries(lastErr, attempt-1)
		}
	}

	return zero, cfg.MaxAttempts - 1, tagRetries(lastErr, cfg.MaxAttempts-1)
}

func tagRetries(err error, retries int) error {
	if ce, ok := apperrors.AsConnectorError(err); ok {
		ce.Retries = retries
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
