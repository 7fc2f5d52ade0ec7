package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/skillcheck/internal/domain"
)

type flakyEvaluator struct {
	failures int
	calls    int
}

func (f *flakyEvaluator) Evaluate(_ context.Context, _ *domain.Question, _ string) (*domain.Evaluation, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return &domain.Evaluation{Score: 4}, nil
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	flaky := &flakyEvaluator{failures: 2}
	r := WithRetry(flaky, RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond}, nil)

	result, err := r.Evaluate(context.Background(), &domain.Question{ID: "q1"}, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.calls)
	}
}

func TestRetryExhaustsCeiling(t *testing.T) {
	flaky := &flakyEvaluator{failures: 10}
	r := WithRetry(flaky, RetryConfig{MaxAttempts: 3, BackoffBase: time.Millisecond}, nil)

	if _, err := r.Evaluate(context.Background(), &domain.Question{ID: "q1"}, "answer"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if flaky.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", flaky.calls)
	}
}

func TestRetryStopsOnCancellation(t *testing.T) {
	flaky := &flakyEvaluator{failures: 10}
	r := WithRetry(flaky, RetryConfig{MaxAttempts: 5, BackoffBase: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Evaluate(ctx, &domain.Question{ID: "q1"}, "answer")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("cancellation did not interrupt backoff")
	}
}

func TestUnavailableEvaluator(t *testing.T) {
	_, err := Unavailable{}.Evaluate(context.Background(), &domain.Question{ID: "q1"}, "answer")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
