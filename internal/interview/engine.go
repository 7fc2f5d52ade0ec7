// Package interview implements the workflow state machine driving question
// selection, scoring, and termination.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/skillcheck/internal/config"
	"github.com/ashureev/skillcheck/internal/domain"
	"github.com/ashureev/skillcheck/internal/evalcache"
	"github.com/ashureev/skillcheck/internal/evaluator"
	"github.com/ashureev/skillcheck/internal/question"
	"github.com/ashureev/skillcheck/internal/session"
)

// Engine is the interview workflow state machine. All mutating operations
// on one session run under that session's exclusive lock; Status is
// lock-free and reads committed snapshots only.
type Engine struct {
	sessions  *session.Manager
	questions question.Source
	cache     *evalcache.Cache
	evaluator evaluator.Evaluator
	cfg       config.InterviewConfig
	events    *Broadcaster
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewEngine wires the engine from its collaborators. events may be nil when
// no subscriber transport is attached.
func NewEngine(
	sessions *session.Manager,
	questions question.Source,
	cache *evalcache.Cache,
	eval evaluator.Evaluator,
	cfg config.InterviewConfig,
	events *Broadcaster,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NewBroadcaster()
	}
	return &Engine{
		sessions:  sessions,
		questions: questions,
		cache:     cache,
		evaluator: eval,
		cfg:       cfg,
		events:    events,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Events returns the engine's broadcaster for subscriber transports.
func (e *Engine) Events() *Broadcaster {
	return e.events
}

// StartResult is the outcome of a successful Start.
type StartResult struct {
	SessionID string           `json:"session_id"`
	State     domain.State     `json:"state"`
	Question  *domain.Question `json:"question"`
}

// Start begins an interview. A new session ID is generated when id is
// empty. Valid only when no record exists or the record is still CREATED;
// any further state fails with ErrAlreadyStarted.
func (e *Engine) Start(ctx context.Context, id string) (*StartResult, error) {
	if id == "" {
		id = e.newID()
	}

	var result *StartResult
	err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		record, err := e.sessions.Load(ctx, id)
		if err != nil {
			return err
		}
		now := e.now()
		if record == nil {
			record = domain.NewSessionRecord(id, now)
		} else if record.State != domain.StateCreated {
			return fmt.Errorf("start session %s: %w", id, ErrAlreadyStarted)
		}

		first, err := e.questions.NextCandidate(ctx, nil, nil, 0)
		if err != nil {
			return e.failSession(ctx, record, fmt.Errorf("start session %s: select first question: %w", id, err))
		}
		if first == nil {
			return fmt.Errorf("start session %s: question source is empty", id)
		}

		if err := record.AskQuestion(first); err != nil {
			return e.failSession(ctx, record, fmt.Errorf("start session %s: %w", id, err))
		}
		record.State = domain.StateInProgress
		record.Touch(now)

		if err := e.sessions.Save(ctx, record); err != nil {
			return err
		}

		e.logger.Info("interview started", "session_id", id, "first_question", first.ID)
		e.publish(record)
		result = &StartResult{SessionID: id, State: record.State, Question: first}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RespondResult is the outcome of a successful Respond. ManualReview is set
// when the evaluator was unavailable and the response was logged without a
// score; the session stays IN_PROGRESS in that case.
type RespondResult struct {
	SessionID         string             `json:"session_id"`
	State             domain.State       `json:"state"`
	Evaluation        *domain.Evaluation `json:"evaluation"`
	ManualReview      bool               `json:"manual_review,omitempty"`
	CacheHit          bool               `json:"cache_hit,omitempty"`
	Duplicate         bool               `json:"duplicate,omitempty"`
	AggregateScore    float64            `json:"aggregate_score"`
	Answered          int                `json:"answered"`
	NextQuestion      *domain.Question   `json:"next_question,omitempty"`
	TerminationReason string             `json:"termination_reason,omitempty"`
}

// Respond submits a response to the session's pending question, evaluates
// it (through the cache), appends it to the log, and advances the workflow.
// The whole transition commits atomically or not at all: a durable-store
// failure or caller cancellation leaves the session unchanged.
func (e *Engine) Respond(ctx context.Context, id, response, fileDigest string) (*RespondResult, error) {
	var result *RespondResult
	err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		record, err := e.sessions.Load(ctx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("respond session %s: %w", id, ErrUnknownSession)
		}
		if record.State != domain.StateInProgress {
			return fmt.Errorf("respond session %s in state %s: %w", id, record.State, ErrInvalidState)
		}
		// A duplicate of the just-committed submission replays the prior
		// outcome instead of consuming the next question. This is what keeps
		// concurrent identical submissions down to one log entry.
		if last := lastEntry(record); last != nil &&
			evalcache.NormalizeResponse(last.Response) == evalcache.NormalizeResponse(response) &&
			last.FileDigest == fileDigest {
			result = &RespondResult{
				SessionID:         id,
				State:             record.State,
				Evaluation:        last.Evaluation,
				ManualReview:      last.NeedsReview,
				Duplicate:         true,
				AggregateScore:    record.AggregateScore(),
				Answered:          len(record.Responses),
				NextQuestion:      record.PendingQuestion,
				TerminationReason: record.TerminationReason,
			}
			return nil
		}
		pending := record.PendingQuestion
		if pending == nil {
			return e.failSession(ctx, record, fmt.Errorf("respond session %s: no pending question in IN_PROGRESS state", id))
		}

		evaluation, cacheHit := e.evaluate(ctx, id, pending, response, fileDigest)
		if ctx.Err() != nil {
			// Canceled mid-evaluation: commit nothing.
			return fmt.Errorf("respond session %s: %w", id, ctx.Err())
		}

		now := e.now()
		entry := domain.ResponseEntry{
			QuestionID:  pending.ID,
			Response:    response,
			FileDigest:  fileDigest,
			Evaluation:  evaluation,
			NeedsReview: evaluation == nil,
			Timestamp:   now,
		}
		record.AppendResponse(entry)
		record.Touch(now)

		next, reason, err := e.advance(ctx, record, now)
		if err != nil {
			return e.failSession(ctx, record, fmt.Errorf("respond session %s: %w", id, err))
		}
		if reason != "" {
			record.State = domain.StateCompleted
			record.TerminationReason = reason
		} else if err := record.AskQuestion(next); err != nil {
			return e.failSession(ctx, record, fmt.Errorf("respond session %s: %w", id, err))
		}

		if err := e.sessions.Save(ctx, record); err != nil {
			return err
		}

		e.logger.Info("response recorded",
			"session_id", id,
			"question_id", pending.ID,
			"cache_hit", cacheHit,
			"manual_review", entry.NeedsReview,
			"state", record.State)
		e.publish(record)

		result = &RespondResult{
			SessionID:         id,
			State:             record.State,
			Evaluation:        evaluation,
			ManualReview:      entry.NeedsReview,
			CacheHit:          cacheHit,
			AggregateScore:    record.AggregateScore(),
			Answered:          len(record.Responses),
			NextQuestion:      record.PendingQuestion,
			TerminationReason: record.TerminationReason,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// evaluate resolves the evaluation for one response through the cache. A
// nil return means the evaluator is exhausted and the entry goes to manual
// review; evaluator failure is never surfaced to the caller.
func (e *Engine) evaluate(ctx context.Context, sessionID string, q *domain.Question, response, fileDigest string) (*domain.Evaluation, bool) {
	key := evalcache.NewKey(q.ID, response, fileDigest)
	if cached, ok := e.cache.Get(key); ok {
		return cached, true
	}

	evaluation, err := e.evaluator.Evaluate(ctx, q, response)
	if err != nil {
		e.logger.Warn("evaluation unavailable, flagging response for manual review",
			"session_id", sessionID,
			"question_id", q.ID,
			"error", err)
		return nil, false
	}
	e.cache.Put(key, *evaluation)
	return evaluation, false
}

// advance decides the post-response transition: a termination reason, or
// the next question with difficulty adjusted by the rolling score average.
func (e *Engine) advance(ctx context.Context, record *domain.SessionRecord, now time.Time) (*domain.Question, string, error) {
	if len(record.Responses) >= e.cfg.QuestionBudget {
		return nil, domain.ReasonQuestionBudget, nil
	}
	if e.cfg.TimeBudget > 0 && now.Sub(record.CreatedAt) > e.cfg.TimeBudget {
		return nil, domain.ReasonTimeBudget, nil
	}
	covered := record.SkillCoverage()
	if e.cfg.CoverageTarget > 0 && len(covered) >= e.cfg.CoverageTarget {
		return nil, domain.ReasonCoverageTarget, nil
	}

	difficulty := record.CurrentDifficulty()
	if avg, ok := record.RollingAverage(e.cfg.RollingWindow); ok {
		switch {
		case avg > e.cfg.HighWaterMark && difficulty < e.cfg.MaxDifficulty:
			difficulty++
		case avg < e.cfg.LowWaterMark && difficulty > e.cfg.MinDifficulty:
			difficulty--
		}
	}

	asked := make(map[string]bool, len(record.AskedQuestions))
	for _, qid := range record.AskedQuestions {
		asked[qid] = true
	}

	next, err := e.questions.NextCandidate(ctx, asked, covered, difficulty)
	if err != nil {
		return nil, "", fmt.Errorf("select next question: %w", err)
	}
	if next == nil {
		// The bank ran dry before any budget tripped.
		return nil, domain.ReasonExhausted, nil
	}
	return next, "", nil
}

// StatusResult is the read-only view of a session.
type StatusResult struct {
	SessionID         string           `json:"session_id"`
	State             domain.State     `json:"state"`
	Answered          int              `json:"answered"`
	Planned           int              `json:"planned"`
	Progress          float64          `json:"progress"`
	AggregateScore    float64          `json:"aggregate_score"`
	Elapsed           time.Duration    `json:"elapsed"`
	PendingQuestion   *domain.Question `json:"pending_question,omitempty"`
	TerminationReason string           `json:"termination_reason,omitempty"`
}

// Status reports session progress. It takes no lock and may observe the
// pre- or post-state of an in-flight mutation, but never a torn record.
func (e *Engine) Status(ctx context.Context, id string) (*StatusResult, error) {
	record, err := e.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("status session %s: %w", id, ErrUnknownSession)
	}

	planned := e.cfg.QuestionBudget
	progress := 0.0
	if planned > 0 {
		progress = float64(len(record.Responses)) / float64(planned)
		if progress > 1 {
			progress = 1
		}
	}

	return &StatusResult{
		SessionID:         id,
		State:             record.State,
		Answered:          len(record.Responses),
		Planned:           planned,
		Progress:          progress,
		AggregateScore:    record.AggregateScore(),
		Elapsed:           e.now().Sub(record.CreatedAt),
		PendingQuestion:   record.PendingQuestion,
		TerminationReason: record.TerminationReason,
	}, nil
}

// Finalize forces termination and returns the closing report. Valid from
// IN_PROGRESS (moved to COMPLETED with reason manual) or COMPLETED.
func (e *Engine) Finalize(ctx context.Context, id string) (*domain.Report, error) {
	var report *domain.Report
	err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		record, err := e.sessions.Load(ctx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("finalize session %s: %w", id, ErrUnknownSession)
		}
		switch record.State {
		case domain.StateInProgress:
			now := e.now()
			record.State = domain.StateCompleted
			record.TerminationReason = domain.ReasonManual
			record.PendingQuestion = nil
			record.Touch(now)
			if err := e.sessions.Save(ctx, record); err != nil {
				return err
			}
			e.logger.Info("interview finalized", "session_id", id, "answered", len(record.Responses))
			e.publish(record)
		case domain.StateCompleted:
		default:
			return fmt.Errorf("finalize session %s in state %s: %w", id, record.State, ErrInvalidState)
		}

		report = domain.BuildReport(record, e.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Abandon terminates an IN_PROGRESS session without a report.
func (e *Engine) Abandon(ctx context.Context, id, reason string) error {
	return e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
		record, err := e.sessions.Load(ctx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("abandon session %s: %w", id, ErrUnknownSession)
		}
		if record.State != domain.StateInProgress {
			return fmt.Errorf("abandon session %s in state %s: %w", id, record.State, ErrInvalidState)
		}
		if reason == "" {
			reason = domain.ReasonManual
		}

		record.State = domain.StateAbandoned
		record.TerminationReason = reason
		record.PendingQuestion = nil
		record.Touch(e.now())
		if err := e.sessions.Save(ctx, record); err != nil {
			return err
		}
		e.logger.Info("interview abandoned", "session_id", id, "reason", reason)
		e.publish(record)
		return nil
	})
}

// failSession marks a session FAILED after an unrecoverable internal error.
// The original error is returned either way; a failed persist of the FAILED
// marker is logged but not compounded.
func (e *Engine) failSession(ctx context.Context, record *domain.SessionRecord, cause error) error {
	if record.State.Terminal() {
		return cause
	}
	record.State = domain.StateFailed
	record.PendingQuestion = nil
	record.Touch(e.now())
	if err := e.sessions.Save(ctx, record); err != nil {
		e.logger.Error("could not persist FAILED state", "session_id", record.ID, "error", err)
	} else {
		e.publish(record)
	}
	e.logger.Error("session failed", "session_id", record.ID, "error", cause)
	return cause
}

func lastEntry(record *domain.SessionRecord) *domain.ResponseEntry {
	if len(record.Responses) == 0 {
		return nil
	}
	return &record.Responses[len(record.Responses)-1]
}

func (e *Engine) publish(record *domain.SessionRecord) {
	event := Event{
		SessionID:         record.ID,
		State:             record.State,
		Answered:          len(record.Responses),
		TerminationReason: record.TerminationReason,
		Timestamp:         e.now(),
	}
	if record.PendingQuestion != nil {
		event.PendingQuestionID = record.PendingQuestion.ID
	}
	e.events.Publish(event)
}

// StartInactivitySweep runs a background worker that abandons IN_PROGRESS
// sessions idle past the inactivity timeout. The sweep holds each session's
// lock only for the duration of its own transition.
func (e *Engine) StartInactivitySweep(ctx context.Context) {
	if e.cfg.InactivityTimeout <= 0 || e.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		e.logger.Info("inactivity sweep started",
			"interval", e.cfg.SweepInterval,
			"timeout", e.cfg.InactivityTimeout)

		for {
			select {
			case <-ticker.C:
				e.sweepInactive(ctx)
			case <-ctx.Done():
				e.logger.Info("inactivity sweep shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (e *Engine) sweepInactive(ctx context.Context) {
	ids, err := e.sessions.ListByState(ctx, domain.StateInProgress)
	if err != nil {
		e.logger.Error("inactivity sweep failed to list sessions", "error", err)
		return
	}

	for _, id := range ids {
		err := e.sessions.WithLock(ctx, id, func(ctx context.Context) error {
			record, err := e.sessions.Load(ctx, id)
			if err != nil {
				return err
			}
			if record == nil || record.State != domain.StateInProgress {
				return nil
			}
			if e.now().Sub(record.LastActivityAt) < e.cfg.InactivityTimeout {
				return nil
			}

			record.State = domain.StateAbandoned
			record.TerminationReason = domain.ReasonInactivity
			record.PendingQuestion = nil
			if err := e.sessions.Save(ctx, record); err != nil {
				return err
			}
			e.logger.Info("session abandoned by inactivity sweep", "session_id", id)
			e.publish(record)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("inactivity sweep failed for session", "session_id", id, "error", err)
		}
	}
}
