package registry

import "errors"

var (
	// ErrCallExists indicates an outgoing call attempt for a conversation
	// that already has a live call.
	ErrCallExists = errors.New("call already exists for conversation")
	// ErrUnknownCall indicates an envelope for a conversation with no live
	// call that the message kind cannot create one for.
	ErrUnknownCall = errors.New("no call for conversation")
)
