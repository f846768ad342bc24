package signal

import "errors"

// Sentinel errors for signal package operations.
// These errors enable reliable error classification using errors.Is().

var (
	// ErrUnknownType indicates an envelope carried an unrecognized message type.
	ErrUnknownType = errors.New("unknown message type")

	// ErrUnknownConfirmType indicates a confirmation was requested for a
	// message kind that has no confirmation semantics.
	ErrUnknownConfirmType = errors.New("message type has no confirmation semantics")

	// ErrMissingUserID indicates an envelope without a sender user identifier.
	ErrMissingUserID = errors.New("message is missing a user id")

	// ErrMalformedSDP indicates an SDP payload that could not be parsed.
	ErrMalformedSDP = errors.New("malformed SDP payload")
)
