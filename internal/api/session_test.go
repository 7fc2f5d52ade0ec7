package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/skillcheck/internal/domain"
	"github.com/ashureev/skillcheck/internal/interview"
	"github.com/ashureev/skillcheck/internal/session"
)

type fakeService struct {
	startResult   *interview.StartResult
	respondResult *interview.RespondResult
	statusResult  *interview.StatusResult
	report        *domain.Report
	err           error

	lastID       string
	lastResponse string
	lastReason   string
}

func (f *fakeService) Start(_ context.Context, id string) (*interview.StartResult, error) {
	f.lastID = id
	return f.startResult, f.err
}

func (f *fakeService) Respond(_ context.Context, id, response, _ string) (*interview.RespondResult, error) {
	f.lastID = id
	f.lastResponse = response
	return f.respondResult, f.err
}

func (f *fakeService) Status(_ context.Context, id string) (*interview.StatusResult, error) {
	f.lastID = id
	return f.statusResult, f.err
}

func (f *fakeService) Finalize(_ context.Context, id string) (*domain.Report, error) {
	f.lastID = id
	return f.report, f.err
}

func (f *fakeService) Abandon(_ context.Context, id, reason string) error {
	f.lastID = id
	f.lastReason = reason
	return f.err
}

func (f *fakeService) Events() *interview.Broadcaster {
	return interview.NewBroadcaster()
}

func newRouter(svc InterviewService) *chi.Mux {
	r := chi.NewRouter()
	NewSessionHandler(svc).RegisterRoutes(r)
	return r
}

func TestStartReturnsCreated(t *testing.T) {
	svc := &fakeService{
		startResult: &interview.StartResult{
			SessionID: "s1",
			State:     domain.StateInProgress,
			Question:  &domain.Question{ID: "q1", Prompt: "explain goroutines"},
		},
	}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/", strings.NewReader(`{"session_id":"s1"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastID != "s1" {
		t.Fatalf("expected session ID forwarded, got %q", svc.lastID)
	}

	var got interview.StartResult
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Question == nil || got.Question.ID != "q1" {
		t.Fatalf("expected first question in payload, got %+v", got)
	}
}

func TestStartConflictWhenAlreadyStarted(t *testing.T) {
	svc := &fakeService{err: interview.ErrAlreadyStarted}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestRespondRequiresBody(t *testing.T) {
	r := newRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/respond", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty response, got %d", w.Code)
	}
}

func TestRespondForwardsPayload(t *testing.T) {
	svc := &fakeService{
		respondResult: &interview.RespondResult{
			SessionID:  "s1",
			State:      domain.StateInProgress,
			Evaluation: &domain.Evaluation{Score: 4.2},
			Answered:   1,
		},
	}
	r := newRouter(svc)

	body := `{"response":"channels share memory by communicating","file_digest":"abc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/respond", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastID != "s1" || !strings.Contains(svc.lastResponse, "channels") {
		t.Fatalf("payload not forwarded: id=%q response=%q", svc.lastID, svc.lastResponse)
	}
}

func TestUnknownSessionMapsToNotFound(t *testing.T) {
	svc := &fakeService{err: interview.ErrUnknownSession}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nope/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestInvalidStateMapsToConflict(t *testing.T) {
	svc := &fakeService{err: interview.ErrInvalidState}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/finalize", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestPersistenceFailureMapsToServiceUnavailable(t *testing.T) {
	svc := &fakeService{err: session.ErrPersistenceUnavailable}
	r := newRouter(svc)

	body := `{"response":"answer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/respond", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestInternalErrorIsOpaque(t *testing.T) {
	svc := &fakeService{err: errors.New("sqlite page corrupted at offset 4096")}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "sqlite") {
		t.Fatalf("internal details leaked to client: %s", w.Body.String())
	}
}

func TestAbandonForwardsReason(t *testing.T) {
	svc := &fakeService{}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/abandon", strings.NewReader(`{"reason":"candidate withdrew"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.lastReason != "candidate withdrew" {
		t.Fatalf("reason not forwarded, got %q", svc.lastReason)
	}
}

func TestJSONHelper(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}
