package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

// StreamEvents upgrades the connection to a WebSocket and pushes session
// transition events until the client disconnects or the session reaches a
// terminal state.
func (h *SessionHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// Reject unknown sessions before upgrading.
	if _, err := h.svc.Status(r.Context(), sessionID); err != nil {
		writeWorkflowError(w, err, "stream events")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	events, cancel := h.svc.Events().Subscribe(sessionID)
	defer cancel()

	ctx := r.Context()
	slog.Info("Event stream opened", "session_id", sessionID, "ip", r.RemoteAddr)

	// Reader goroutine: the client sends nothing meaningful, but reading
	// surfaces disconnects promptly.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			if err := writeEventJSON(ctx, ws, event); err != nil {
				slog.Debug("Event stream write failed", "error", err, "session_id", sessionID)
				return
			}
			if event.State.Terminal() {
				slog.Info("Event stream closing on terminal state",
					"session_id", sessionID, "state", event.State)
				return
			}
		case <-readerDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func writeEventJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
