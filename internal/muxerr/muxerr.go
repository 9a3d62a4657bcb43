// Package muxerr defines the conceptual error kinds the multiplexer
// surfaces, as typed/sentinel errors rather than ad hoc string
// comparisons at the handler boundary.
package muxerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds with no payload. Check with errors.Is.
var (
	// ErrTransportDecodeFailure marks a malformed inbound frame.
	ErrTransportDecodeFailure = errors.New("malformed frame")

	// ErrUnknownMessage marks a frame the router could not classify.
	ErrUnknownMessage = errors.New("unknown message type")

	// ErrUnknownSession marks a non-spawn frame referencing an id not
	// present in the registry. The capitalization matches the literal
	// wire string scenario S5 asserts on.
	ErrUnknownSession = errors.New("Session not found")

	// ErrPermittedSignalViolation marks a kill signal outside the
	// permitted set {TERM, KILL, INT, HUP}.
	ErrPermittedSignalViolation = errors.New("signal not permitted")

	// ErrInvalidDimensions marks a cols/rows value outside the
	// permitted [1, 1000] range (SPEC_FULL §3), on either a spawn
	// config or a resize request.
	ErrInvalidDimensions = errors.New("cols/rows out of range")

	// ErrSessionLimitReached marks a spawn rejected because the
	// registry already holds config.MaxSessions live sessions.
	ErrSessionLimitReached = errors.New("session limit reached")
)

// DuplicateSessionError reports a spawn against an id already present
// in the registry.
type DuplicateSessionError struct {
	SessionID string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("duplicate session id: %s", e.SessionID)
}

// NewDuplicateSession constructs a DuplicateSessionError.
func NewDuplicateSession(id string) *DuplicateSessionError {
	return &DuplicateSessionError{SessionID: id}
}

// SpawnFailureError reports that a child process could not be
// created, wrapping the underlying OS-level cause.
type SpawnFailureError struct {
	Reason string
	Cause  error
}

func (e *SpawnFailureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("spawn failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("spawn failed: %s", e.Reason)
}

func (e *SpawnFailureError) Unwrap() error {
	return e.Cause
}

// NewSpawnFailure constructs a SpawnFailureError wrapping cause.
func NewSpawnFailure(reason string, cause error) *SpawnFailureError {
	return &SpawnFailureError{Reason: reason, Cause: cause}
}
