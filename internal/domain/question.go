package domain

// Question is read-only reference data supplied by a question source.
// The session core treats it as an immutable value and does not own its
// lifecycle.
type Question struct {
	ID              string   `json:"id"`
	SkillCategory   string   `json:"skill_category"`
	Difficulty      int      `json:"difficulty"`
	Prompt          string   `json:"prompt"`
	ExpectedSignals []string `json:"expected_signals,omitempty"`
}
