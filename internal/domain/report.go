package domain

import "time"

// SkillBreakdown aggregates evaluated responses for one skill category.
type SkillBreakdown struct {
	Answered     int     `json:"answered"`
	AverageScore float64 `json:"average_score"`
}

// Report is the closing payload produced by finalize.
type Report struct {
	SessionID         string                    `json:"session_id"`
	State             State                     `json:"state"`
	AggregateScore    float64                   `json:"aggregate_score"`
	Skills            map[string]SkillBreakdown `json:"skills"`
	Responses         []ResponseEntry           `json:"responses"`
	TerminationReason string                    `json:"termination_reason,omitempty"`
	Elapsed           time.Duration             `json:"elapsed"`
}

// BuildReport derives the closing report from a session record. A record
// with an empty response log yields zero metrics and an empty breakdown.
func BuildReport(r *SessionRecord, now time.Time) *Report {
	skills := make(map[string]SkillBreakdown)
	sums := make(map[string]float64)
	for _, entry := range r.Responses {
		meta, ok := r.QuestionMeta[entry.QuestionID]
		if !ok || entry.Evaluation == nil {
			continue
		}
		b := skills[meta.SkillCategory]
		b.Answered++
		sums[meta.SkillCategory] += entry.Evaluation.Score
		skills[meta.SkillCategory] = b
	}
	for category, b := range skills {
		b.AverageScore = sums[category] / float64(b.Answered)
		skills[category] = b
	}

	return &Report{
		SessionID:         r.ID,
		State:             r.State,
		AggregateScore:    r.AggregateScore(),
		Skills:            skills,
		Responses:         append([]ResponseEntry(nil), r.Responses...),
		TerminationReason: r.TerminationReason,
		Elapsed:           now.Sub(r.CreatedAt),
	}
}
