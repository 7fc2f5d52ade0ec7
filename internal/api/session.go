package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/skillcheck/internal/domain"
	"github.com/ashureev/skillcheck/internal/interview"
	"github.com/ashureev/skillcheck/internal/session"
)

// InterviewService is the slice of the workflow engine the HTTP layer needs.
type InterviewService interface {
	Start(ctx context.Context, id string) (*interview.StartResult, error)
	Respond(ctx context.Context, id, response, fileDigest string) (*interview.RespondResult, error)
	Status(ctx context.Context, id string) (*interview.StatusResult, error)
	Finalize(ctx context.Context, id string) (*domain.Report, error)
	Abandon(ctx context.Context, id, reason string) error
	Events() *interview.Broadcaster
}

// SessionHandler handles interview session endpoints.
type SessionHandler struct {
	svc InterviewService
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc InterviewService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Post("/{sessionID}/respond", h.Respond)
		r.Get("/{sessionID}/status", h.Status)
		r.Post("/{sessionID}/finalize", h.Finalize)
		r.Post("/{sessionID}/abandon", h.Abandon)
		r.Get("/{sessionID}/events", h.StreamEvents)
	})
}

type startRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// Start begins a new interview session.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.svc.Start(r.Context(), req.SessionID)
	if err != nil {
		writeWorkflowError(w, err, "start session")
		return
	}
	JSON(w, http.StatusCreated, result)
}

type respondRequest struct {
	Response   string `json:"response"`
	FileDigest string `json:"file_digest,omitempty"`
}

// Respond submits a response to the session's pending question.
func (h *SessionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req respondRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Response == "" {
		Error(w, http.StatusBadRequest, "response is required")
		return
	}

	result, err := h.svc.Respond(r.Context(), sessionID, req.Response, req.FileDigest)
	if err != nil {
		writeWorkflowError(w, err, "respond")
		return
	}
	JSON(w, http.StatusOK, result)
}

// Status reports session progress without taking the session lock.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	result, err := h.svc.Status(r.Context(), sessionID)
	if err != nil {
		writeWorkflowError(w, err, "status")
		return
	}
	JSON(w, http.StatusOK, result)
}

// Finalize terminates the session and returns the closing report.
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	report, err := h.svc.Finalize(r.Context(), sessionID)
	if err != nil {
		writeWorkflowError(w, err, "finalize")
		return
	}
	JSON(w, http.StatusOK, report)
}

type abandonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Abandon terminates the session without producing a report.
func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req abandonRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.svc.Abandon(r.Context(), sessionID, req.Reason); err != nil {
		writeWorkflowError(w, err, "abandon")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeWorkflowError maps engine errors onto HTTP statuses.
func writeWorkflowError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, interview.ErrUnknownSession):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, interview.ErrAlreadyStarted):
		Error(w, http.StatusConflict, "session already started")
	case errors.Is(err, interview.ErrInvalidState):
		Error(w, http.StatusConflict, "operation not valid in current session state")
	case errors.Is(err, session.ErrPersistenceUnavailable):
		slog.Error("Durable store unavailable", "op", op, "error", err)
		Error(w, http.StatusServiceUnavailable, "persistence unavailable")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		Error(w, http.StatusRequestTimeout, "request canceled")
	default:
		slog.Error("Request failed", "op", op, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
