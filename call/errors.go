package call

import "errors"

// Sentinel errors for call package operations.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrParticipantNotFound indicates a roster lookup by user id failed.
	// Expected under message races; swallowed at every call site except where
	// it drives create-versus-update control flow.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrClientMismatch indicates an incoming message's client id disagrees
	// with the client id previously recorded for the participant. Signals a
	// spoofed or stale sender; the operation aborts and is not retried.
	ErrClientMismatch = errors.New("client id mismatch")

	// ErrSessionMismatch indicates a message's session id matches neither the
	// call's session nor the target participant's session. The message is
	// stale or belongs to another call attempt and must be discarded.
	ErrSessionMismatch = errors.New("session id mismatch")

	// ErrInvalidTransition indicates an illegal call state transition.
	ErrInvalidTransition = errors.New("invalid call state transition")
)
