package call

import (
	"context"

	"github.com/opd-ai/callsession/signal"
)

// SignalingGateway delivers call-control messages to the other side.
//
// Send failures never abort teardown: the caller observes the result but the
// call state machine does not depend on it.
type SignalingGateway interface {
	// SendCallEvent sends one call-control message for the given conversation.
	SendCallEvent(ctx context.Context, conversationID string, msg signal.Message) error
}

// CallRegistry is the owner of call instances. The Call asks it to dispose of
// the call at the end of its lifecycle.
type CallRegistry interface {
	// RequestDelete asks the registry to drop the call with the given id.
	RequestDelete(callID string)

	// InjectDeactivateEvent feeds a self-originated deactivation event back
	// into the event stream. msg is the triggering message, if any.
	InjectDeactivateEvent(msg signal.Message, creatorID string, outcome Outcome)
}

// AudioNotifier plays audio cues. All methods are fire-and-forget: no
// acknowledgement, and stopping a cue that is not playing is a no-op.
type AudioNotifier interface {
	// PlayLoop starts looping playback of the cue.
	PlayLoop(cue Cue)
	// Stop stops playback of the cue. Idempotent.
	Stop(cue Cue)
	// PlayOnce plays the cue a single time.
	PlayOnce(cue Cue)
}

// Telemetry records usage events for finished and ongoing calls.
type Telemetry interface {
	// TrackEvent records a named event with optional attributes.
	TrackEvent(name string, snap Snapshot, attrs map[string]string)
	// TrackDuration records the duration of a finished call.
	TrackDuration(snap Snapshot)
	// SetRemoteToolVersion records the remote client's advertised version.
	SetRemoteToolVersion(version string)
}

// MediaFlow is the media transport belonging to one participant. A flow is
// owned exclusively by its participant and released exactly once, at removal.
type MediaFlow interface {
	// Negotiate (re)starts media negotiation against the remote description.
	Negotiate(ctx context.Context, remoteSDP string) error
	// Active reports whether the flow currently carries media.
	Active() bool
	// Close releases the flow's resources.
	Close()
}

// MediaConnector produces MediaFlow instances on demand. Optional: a Call
// without a connector tracks participants but never opens media.
type MediaConnector interface {
	// CreateFlow builds the media transport for one remote client.
	CreateFlow(userID, clientID string) (MediaFlow, error)
}
