package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	_ "embed"

	"github.com/ashureev/skillcheck/internal/domain"
	"github.com/ashureev/skillcheck/internal/evaluator"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

// Scorer scores interview responses through a Gemini model.
type Scorer struct {
	generator contentGenerator
	logger    *slog.Logger
}

var _ evaluator.Evaluator = (*Scorer)(nil)

// NewScorer creates a Scorer on top of a content generator.
func NewScorer(generator contentGenerator, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{generator: generator, logger: logger}
}

// Evaluate prompts the model with the question and response and parses the
// structured score it returns.
func (s *Scorer) Evaluate(ctx context.Context, question *domain.Question, response string) (*domain.Evaluation, error) {
	if question == nil {
		return nil, fmt.Errorf("question is required")
	}

	prompt := buildPrompt(question, response)

	s.logger.Debug("gemini evaluation request",
		"question_id", question.ID,
		"prompt_length", len(prompt))

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("evaluate response for question %s: %w", question.ID, err)
	}

	result, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse evaluation for question %s: %w", question.ID, err)
	}

	s.logger.Debug("gemini evaluation response",
		"question_id", question.ID,
		"score", result.Score)

	return result, nil
}

func buildPrompt(question *domain.Question, response string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Question:\n{{QUESTION}}\n\nAnswer:\n{{RESPONSE}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{SKILL_CATEGORY}}", question.SkillCategory)
	prompt = strings.ReplaceAll(prompt, "{{DIFFICULTY}}", strconv.Itoa(question.Difficulty))
	prompt = strings.ReplaceAll(prompt, "{{QUESTION}}", question.Prompt)
	prompt = strings.ReplaceAll(prompt, "{{EXPECTED_SIGNALS}}", strings.Join(question.ExpectedSignals, ", "))
	prompt = strings.ReplaceAll(prompt, "{{RESPONSE}}", response)
	return prompt
}

func parseResponse(raw string) (*domain.Evaluation, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("gemini response has no usable score: %q", raw)
	}
	score = math.Min(5, math.Max(0, score))

	result := &domain.Evaluation{
		Score:     score,
		Rationale: coerceString(data["rationale"]),
	}

	if signals, ok := data["signals"].(map[string]any); ok && len(signals) > 0 {
		result.Signals = make(map[string]string, len(signals))
		for name, value := range signals {
			result.Signals[name] = coerceString(value)
		}
	}

	return result, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
