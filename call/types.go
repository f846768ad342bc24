package call

// MediaType classifies the media currently received from the roster.
type MediaType string

const (
	// MediaTypeNone indicates an empty roster.
	MediaTypeNone MediaType = "none"
	// MediaTypeAudio indicates audio-only remote media.
	MediaTypeAudio MediaType = "audio"
	// MediaTypeVideo indicates at least one participant sends camera video.
	MediaTypeVideo MediaType = "video"
	// MediaTypeScreen indicates at least one participant shares a screen.
	// Screen takes precedence over video regardless of roster order.
	MediaTypeScreen MediaType = "screen"
)

// TerminationReason records why call teardown was initiated. It is distinct
// from the deactivation Outcome, which classifies how the finished call is
// counted.
type TerminationReason string

const (
	// TerminationSelfUser indicates the local user ended the call.
	TerminationSelfUser TerminationReason = "self_user"
	// TerminationOtherUser indicates the remote party ended the call.
	TerminationOtherUser TerminationReason = "other_user"
	// TerminationConnectionDrop indicates the media connection was lost.
	TerminationConnectionDrop TerminationReason = "connection_drop"
	// TerminationMemberLeave indicates a group member left.
	TerminationMemberLeave TerminationReason = "member_leave"
	// TerminationTimeout indicates the ring timeout elapsed unanswered.
	TerminationTimeout TerminationReason = "timeout"
)

// Outcome classifies a finished call for the deactivation event.
type Outcome string

const (
	// OutcomeMissed marks a call that never left a ringing state.
	OutcomeMissed Outcome = "missed"
	// OutcomeCompleted marks a call that progressed past ringing.
	OutcomeCompleted Outcome = "completed"
)

// Cue identifies an audio cue played through the AudioNotifier.
type Cue string

const (
	// CueRingIncoming is the looping ring tone for incoming calls.
	CueRingIncoming Cue = "ring_incoming"
	// CueRingOutgoing is the looping ring-back tone for outgoing calls.
	CueRingOutgoing Cue = "ring_outgoing"
	// CueTalkLater is played once when the remote user hangs up.
	CueTalkLater Cue = "talk_later"
	// CueCallDrop is played once when a participant drops or leaves.
	CueCallDrop Cue = "call_drop"
	// CueNetworkInterruption loops while any participant is interrupted.
	CueNetworkInterruption Cue = "network_interruption"
)

// Telemetry event names emitted by the Call.
const (
	// EventJoinedCall is tracked when the call enters the connecting state.
	EventJoinedCall = "joined_call"
	// EventEstablished is tracked when the call becomes connected.
	EventEstablished = "established"
)

// Snapshot is an immutable view of call state handed to Telemetry. Handing a
// value instead of the Call itself keeps collaborators from re-entering the
// call lock.
type Snapshot struct {
	ID                string
	SessionID         string
	State             State
	Group             bool
	Participants      int
	MaxParticipants   int
	DurationSeconds   int
	TerminationReason TerminationReason
}
