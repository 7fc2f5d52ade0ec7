package interview

import "errors"

// Error kinds surfaced by the workflow engine. Each is wrapped with the
// session ID and the attempted action at the call site.
var (
	// ErrUnknownSession means no record exists for the session ID.
	ErrUnknownSession = errors.New("unknown session")
	// ErrInvalidState means the action is not valid in the session's
	// current state.
	ErrInvalidState = errors.New("action not valid in current state")
	// ErrAlreadyStarted means start was called on a session past CREATED.
	ErrAlreadyStarted = errors.New("session already started")
)
