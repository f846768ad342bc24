package signal

// Type identifies a call-control message kind.
type Type string

const (
	// TypeSetup offers or answers media negotiation for one participant.
	TypeSetup Type = "SETUP"
	// TypeHangup signals a connected participant leaving.
	TypeHangup Type = "HANGUP"
	// TypeCancel withdraws a ringing call attempt.
	TypeCancel Type = "CANCEL"
	// TypeReject declines a ringing call.
	TypeReject Type = "REJECT"
	// TypeGroupStart starts or joins a group call.
	TypeGroupStart Type = "GROUP_START"
	// TypeGroupLeave signals a member leaving a group call.
	TypeGroupLeave Type = "GROUP_LEAVE"
	// TypePropSync synchronizes a participant's media send properties.
	TypePropSync Type = "PROP_SYNC"
)

// Props are the media send flags a participant advertises.
type Props struct {
	AudioSend  bool
	VideoSend  bool
	ScreenSend bool
}

// Header carries the fields common to every message kind.
//
// ClientID is optional on the wire: senders may identify themselves by user id
// only, in which case the receiver learns the client id lazily from the first
// message that carries one.
type Header struct {
	UserID    string
	ClientID  string
	SessionID string
}

// Hdr returns the common header. It exists so every variant embedding Header
// satisfies the Message interface.
func (h *Header) Hdr() *Header { return h }

// Message is the tagged union over all call-control message kinds.
//
// Consumers dispatch with a type switch on the concrete variant; the Kind and
// Hdr accessors cover the generic routing and verification paths.
type Message interface {
	Kind() Type
	Hdr() *Header
}

// Setup offers or answers media negotiation for one participant.
// Version carries the sender's client version when advertised; it feeds
// telemetry only and has no protocol meaning.
type Setup struct {
	Header
	SDP      string
	Props    Props
	Version  string
	Response bool
}

// Kind returns TypeSetup.
func (*Setup) Kind() Type { return TypeSetup }

// Hangup signals a connected participant leaving the call.
type Hangup struct {
	Header
	Response bool
}

// Kind returns TypeHangup.
func (*Hangup) Kind() Type { return TypeHangup }

// Cancel withdraws a ringing call attempt before it connects.
type Cancel struct {
	Header
}

// Kind returns TypeCancel.
func (*Cancel) Kind() Type { return TypeCancel }

// Reject declines a ringing call. A reject sent by the local user from a
// different client ends ringing on this client too.
type Reject struct {
	Header
}

// Kind returns TypeReject.
func (*Reject) Kind() Type { return TypeReject }

// GroupStart starts a group call or announces joining one.
type GroupStart struct {
	Header
}

// Kind returns TypeGroupStart.
func (*GroupStart) Kind() Type { return TypeGroupStart }

// GroupLeave signals a member leaving a group call.
type GroupLeave struct {
	Header
}

// Kind returns TypeGroupLeave.
func (*GroupLeave) Kind() Type { return TypeGroupLeave }

// PropSync synchronizes a participant's media send properties mid-call.
type PropSync struct {
	Header
	SDP      string
	Props    Props
	Response bool
}

// Kind returns TypePropSync.
func (*PropSync) Kind() Type { return TypePropSync }

// Confirm builds the confirmation message for an inbound message.
//
// Only HANGUP and PROP_SYNC have confirmation semantics: the confirmation is a
// response-flagged message of the same kind, addressed with the local
// identity. PROP_SYNC confirmations carry the local props so the peer learns
// our send state in the same round trip. Any other kind returns
// ErrUnknownConfirmType.
func Confirm(msg Message, self Header, props Props) (Message, error) {
	switch msg.(type) {
	case *Hangup:
		return &Hangup{Header: self, Response: true}, nil
	case *PropSync:
		return &PropSync{Header: self, Props: props, Response: true}, nil
	default:
		return nil, ErrUnknownConfirmType
	}
}
