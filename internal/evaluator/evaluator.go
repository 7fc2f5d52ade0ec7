// Package evaluator defines the external response-scoring capability.
package evaluator

import (
	"context"
	"errors"

	"github.com/ashureev/skillcheck/internal/domain"
)

// ErrUnavailable indicates the evaluation capability cannot serve requests.
var ErrUnavailable = errors.New("evaluator unavailable")

// Evaluator scores a candidate response against a question. Implementations
// are expected to be safe for concurrent use and to honor ctx deadlines.
type Evaluator interface {
	Evaluate(ctx context.Context, question *domain.Question, response string) (*domain.Evaluation, error)
}

// Unavailable is an Evaluator substituted at composition time when no
// scoring provider is configured. Every call fails with ErrUnavailable, so
// responses fall through to the manual-review path.
type Unavailable struct{}

var _ Evaluator = Unavailable{}

// Evaluate always fails with ErrUnavailable.
func (Unavailable) Evaluate(_ context.Context, _ *domain.Question, _ string) (*domain.Evaluation, error) {
	return nil, ErrUnavailable
}
