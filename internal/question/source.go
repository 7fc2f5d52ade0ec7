// Package question supplies interview questions to the workflow engine.
package question

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ashureev/skillcheck/internal/domain"
)

// Source hands out the next candidate question. Implementations own the
// question content; the engine treats returned questions as immutable.
type Source interface {
	// NextCandidate returns a question not in asked, preferring skill
	// categories absent from covered and difficulty tiers close to the
	// hint. Returns (nil, nil) when no candidate remains.
	NextCandidate(ctx context.Context, asked, covered map[string]bool, difficultyHint int) (*domain.Question, error)
}

// StaticSource serves questions from a fixed in-memory bank with a
// deterministic selection policy.
type StaticSource struct {
	questions []domain.Question
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a source over the given bank.
func NewStaticSource(questions []domain.Question) *StaticSource {
	bank := append([]domain.Question(nil), questions...)
	return &StaticSource{questions: bank}
}

// LoadFile reads a JSON array of questions from path.
func LoadFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse question file %s: %w", path, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("question file %s contains no questions", path)
	}
	return NewStaticSource(questions), nil
}

// NextCandidate picks the next question. Category choice maximizes coverage
// gaps: uncovered categories win over covered ones, and equally uncovered
// categories tie-break on lower average bank difficulty, then name. Within
// the chosen category the question closest to the difficulty hint wins,
// preferring the lower tier on equidistant ties.
func (s *StaticSource) NextCandidate(_ context.Context, asked, covered map[string]bool, difficultyHint int) (*domain.Question, error) {
	remaining := make(map[string][]domain.Question)
	avgDifficulty := make(map[string]float64)
	for _, q := range s.questions {
		if asked[q.ID] {
			continue
		}
		remaining[q.SkillCategory] = append(remaining[q.SkillCategory], q)
	}
	if len(remaining) == 0 {
		return nil, nil
	}

	for category := range remaining {
		var sum float64
		var count int
		for _, q := range s.questions {
			if q.SkillCategory == category {
				sum += float64(q.Difficulty)
				count++
			}
		}
		avgDifficulty[category] = sum / float64(count)
	}

	categories := make([]string, 0, len(remaining))
	for category := range remaining {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool {
		ci, cj := categories[i], categories[j]
		if covered[ci] != covered[cj] {
			return !covered[ci]
		}
		if avgDifficulty[ci] != avgDifficulty[cj] {
			return avgDifficulty[ci] < avgDifficulty[cj]
		}
		return ci < cj
	})

	candidates := remaining[categories[0]]
	sort.Slice(candidates, func(i, j int) bool {
		di := distance(candidates[i].Difficulty, difficultyHint)
		dj := distance(candidates[j].Difficulty, difficultyHint)
		if di != dj {
			return di < dj
		}
		if candidates[i].Difficulty != candidates[j].Difficulty {
			return candidates[i].Difficulty < candidates[j].Difficulty
		}
		return candidates[i].ID < candidates[j].ID
	})

	chosen := candidates[0]
	return &chosen, nil
}

func distance(difficulty, hint int) int {
	if hint <= 0 {
		// No hint yet: favor the lowest tier.
		return difficulty
	}
	d := difficulty - hint
	if d < 0 {
		return -d
	}
	return d
}
