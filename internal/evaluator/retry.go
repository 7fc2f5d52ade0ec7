package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/skillcheck/internal/domain"
)

// RetryConfig bounds the retry behavior of a Retrying evaluator.
type RetryConfig struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	RequestTimeout time.Duration
}

// Retrying wraps an Evaluator with per-attempt timeouts and bounded
// exponential backoff. After the attempt ceiling is reached the last error
// is returned for the caller to absorb into its manual-review path.
type Retrying struct {
	inner  Evaluator
	cfg    RetryConfig
	logger *slog.Logger
}

var _ Evaluator = (*Retrying)(nil)

// WithRetry decorates inner with the given retry policy.
func WithRetry(inner Evaluator, cfg RetryConfig, logger *slog.Logger) *Retrying {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{inner: inner, cfg: cfg, logger: logger}
}

// Evaluate runs the inner evaluator up to MaxAttempts times.
func (r *Retrying) Evaluate(ctx context.Context, question *domain.Question, response string) (*domain.Evaluation, error) {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := r.cfg.BackoffBase * time.Duration(1<<(attempt-1))
			r.logger.Debug("retrying evaluation",
				"question_id", question.ID,
				"attempt", attempt+1,
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.RequestTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.RequestTimeout)
		}
		result, err := r.inner.Evaluate(attemptCtx, question, response)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Caller cancellation is not retryable.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("evaluate question %s after %d attempts: %w", question.ID, r.cfg.MaxAttempts, lastErr)
}
