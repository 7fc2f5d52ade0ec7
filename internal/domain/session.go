// Package domain defines the core interview data model.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is a session's position in the interview workflow.
type State string

const (
	// StateCreated means the session record exists but no question was asked yet.
	StateCreated State = "CREATED"
	// StateInProgress means the session has a pending question awaiting a response.
	StateInProgress State = "IN_PROGRESS"
	// StateCompleted is a terminal state reached on budget exhaustion or finalize.
	StateCompleted State = "COMPLETED"
	// StateAbandoned is a terminal state reached on explicit termination or inactivity.
	StateAbandoned State = "ABANDONED"
	// StateFailed is a terminal state reached on an unrecoverable internal error.
	StateFailed State = "FAILED"
)

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned || s == StateFailed
}

// Termination reasons recorded on completed or abandoned sessions.
const (
	ReasonQuestionBudget = "question_budget"
	ReasonTimeBudget     = "time_budget"
	ReasonCoverageTarget = "coverage_target"
	ReasonManual         = "manual"
	ReasonInactivity     = "inactivity"
	ReasonExhausted      = "question_source_exhausted"
)

// Evaluation is the scored outcome of a single response.
type Evaluation struct {
	Score     float64           `json:"score"`
	Rationale string            `json:"rationale"`
	Signals   map[string]string `json:"signals,omitempty"`
}

// ResponseEntry is one submitted response with its evaluation, if any.
// Evaluation is nil when the evaluator was unavailable; such entries carry
// NeedsReview and are excluded from score aggregation.
type ResponseEntry struct {
	QuestionID  string      `json:"question_id"`
	Response    string      `json:"response"`
	FileDigest  string      `json:"file_digest,omitempty"`
	Evaluation  *Evaluation `json:"evaluation"`
	NeedsReview bool        `json:"needs_review,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// SessionRecord is the authoritative state of one interview session.
// Aggregate score and skill coverage are derived from the response log and
// are never persisted independently of it.
type SessionRecord struct {
	ID                string          `json:"id"`
	State             State           `json:"state"`
	PendingQuestion   *Question       `json:"pending_question,omitempty"`
	AskedQuestions    []string        `json:"asked_questions"`
	Responses         []ResponseEntry `json:"responses"`
	CreatedAt         time.Time       `json:"created_at"`
	LastActivityAt    time.Time       `json:"last_activity_at"`
	TerminationReason string          `json:"termination_reason,omitempty"`

	// QuestionMeta records category and difficulty of every asked question so
	// aggregates remain computable without the question source.
	QuestionMeta map[string]QuestionMeta `json:"question_meta,omitempty"`
}

// QuestionMeta is the slice of question reference data the session retains
// to recompute aggregates.
type QuestionMeta struct {
	SkillCategory string `json:"skill_category"`
	Difficulty    int    `json:"difficulty"`
}

// NewSessionRecord returns a CREATED record for the given session ID.
func NewSessionRecord(id string, now time.Time) *SessionRecord {
	return &SessionRecord{
		ID:             id,
		State:          StateCreated,
		CreatedAt:      now,
		LastActivityAt: now,
		QuestionMeta:   make(map[string]QuestionMeta),
	}
}

// Touch advances LastActivityAt. The timestamp never moves backwards.
func (r *SessionRecord) Touch(now time.Time) {
	if now.After(r.LastActivityAt) {
		r.LastActivityAt = now
	}
}

// AskQuestion marks q as the pending question and records its metadata.
// Returns an error if q was already asked in this session.
func (r *SessionRecord) AskQuestion(q *Question) error {
	for _, id := range r.AskedQuestions {
		if id == q.ID {
			return fmt.Errorf("question %s already asked in session %s", q.ID, r.ID)
		}
	}
	r.AskedQuestions = append(r.AskedQuestions, q.ID)
	if r.QuestionMeta == nil {
		r.QuestionMeta = make(map[string]QuestionMeta)
	}
	r.QuestionMeta[q.ID] = QuestionMeta{SkillCategory: q.SkillCategory, Difficulty: q.Difficulty}
	pending := *q
	r.PendingQuestion = &pending
	return nil
}

// AppendResponse appends entry to the response log and clears the pending
// question. Derived aggregates need no invalidation since they are always
// recomputed from the log.
func (r *SessionRecord) AppendResponse(entry ResponseEntry) {
	r.Responses = append(r.Responses, entry)
	r.PendingQuestion = nil
}

// AggregateScore recomputes the difficulty-weighted mean score over all
// evaluated responses. Entries without an evaluation do not contribute.
func (r *SessionRecord) AggregateScore() float64 {
	var sum, weight float64
	for _, entry := range r.Responses {
		if entry.Evaluation == nil {
			continue
		}
		w := 1.0
		if meta, ok := r.QuestionMeta[entry.QuestionID]; ok && meta.Difficulty > 0 {
			w = float64(meta.Difficulty)
		}
		sum += entry.Evaluation.Score * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// SkillCoverage returns the set of skill categories with at least one
// answered question.
func (r *SessionRecord) SkillCoverage() map[string]bool {
	covered := make(map[string]bool)
	for _, entry := range r.Responses {
		if meta, ok := r.QuestionMeta[entry.QuestionID]; ok {
			covered[meta.SkillCategory] = true
		}
	}
	return covered
}

// RollingAverage returns the unweighted mean score of the last n evaluated
// responses and whether at least n evaluated responses exist.
func (r *SessionRecord) RollingAverage(n int) (float64, bool) {
	var scores []float64
	for _, entry := range r.Responses {
		if entry.Evaluation != nil {
			scores = append(scores, entry.Evaluation.Score)
		}
	}
	if n <= 0 || len(scores) < n {
		return 0, false
	}
	var sum float64
	for _, s := range scores[len(scores)-n:] {
		sum += s
	}
	return sum / float64(n), true
}

// CurrentDifficulty is the difficulty tier of the most recently asked
// question, or 0 when nothing was asked yet.
func (r *SessionRecord) CurrentDifficulty() int {
	if len(r.AskedQuestions) == 0 {
		return 0
	}
	last := r.AskedQuestions[len(r.AskedQuestions)-1]
	return r.QuestionMeta[last].Difficulty
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	clone := *r
	if r.PendingQuestion != nil {
		pending := *r.PendingQuestion
		pending.ExpectedSignals = append([]string(nil), r.PendingQuestion.ExpectedSignals...)
		clone.PendingQuestion = &pending
	}
	clone.AskedQuestions = append([]string(nil), r.AskedQuestions...)
	clone.Responses = make([]ResponseEntry, len(r.Responses))
	for i, entry := range r.Responses {
		clone.Responses[i] = entry
		if entry.Evaluation != nil {
			ev := *entry.Evaluation
			if entry.Evaluation.Signals != nil {
				ev.Signals = make(map[string]string, len(entry.Evaluation.Signals))
				for k, v := range entry.Evaluation.Signals {
					ev.Signals[k] = v
				}
			}
			clone.Responses[i].Evaluation = &ev
		}
	}
	clone.QuestionMeta = make(map[string]QuestionMeta, len(r.QuestionMeta))
	for k, v := range r.QuestionMeta {
		clone.QuestionMeta[k] = v
	}
	return &clone
}

// Marshal serializes the record for the durable store.
func (r *SessionRecord) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal session record %s: %w", r.ID, err)
	}
	return data, nil
}

// UnmarshalSessionRecord deserializes a record produced by Marshal.
func UnmarshalSessionRecord(data []byte) (*SessionRecord, error) {
	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal session record: %w", err)
	}
	if record.QuestionMeta == nil {
		record.QuestionMeta = make(map[string]QuestionMeta)
	}
	return &record, nil
}
