package call

import (
	"github.com/looplab/fsm"
)

// State is one step in the call lifecycle.
type State string

const (
	// StateUnknown is the initial state before direction is known.
	StateUnknown State = "unknown"
	// StateIncoming rings for a call initiated by a remote party.
	StateIncoming State = "incoming"
	// StateOutgoing rings for a call initiated locally.
	StateOutgoing State = "outgoing"
	// StateConnecting negotiates media after the call was answered.
	StateConnecting State = "connecting"
	// StateOngoing carries live media.
	StateOngoing State = "ongoing"
	// StateDisconnecting sequences a graceful teardown.
	StateDisconnecting State = "disconnecting"
	// StateEnded is terminal for a call that ran its course.
	StateEnded State = "ended"
	// StateRejected is terminal for a declined call.
	StateRejected State = "rejected"
)

// IsRinging reports whether the state belongs to the ringing group.
func (s State) IsRinging() bool {
	return s == StateIncoming || s == StateOutgoing
}

// WasMissed reports whether ending a call in this state counts as missed.
// A call that never left ringing was never picked up by anyone.
func (s State) WasMissed() bool {
	return s.IsRinging()
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateRejected
}

// FSM event names. Each event has exactly one destination state, so a target
// state maps back to the event driving it.
const (
	eventRingIncoming = "ring_incoming"
	eventRingOutgoing = "ring_outgoing"
	eventJoin         = "join"
	eventEstablish    = "establish"
	eventDisconnect   = "disconnect"
	eventReject       = "reject"
	eventEnd          = "end"
)

// eventFor maps a target state to the FSM event reaching it.
var eventFor = map[State]string{
	StateIncoming:      eventRingIncoming,
	StateOutgoing:      eventRingOutgoing,
	StateConnecting:    eventJoin,
	StateOngoing:       eventEstablish,
	StateDisconnecting: eventDisconnect,
	StateRejected:      eventReject,
	StateEnded:         eventEnd,
}

// newStateMachine builds the lifecycle FSM. The event table doubles as the
// transition validator: anything not listed is an illegal transition.
func newStateMachine(onEnter fsm.Callback) *fsm.FSM {
	return fsm.NewFSM(
		string(StateUnknown),
		fsm.Events{
			{Name: eventRingIncoming, Src: []string{string(StateUnknown)}, Dst: string(StateIncoming)},
			{Name: eventRingOutgoing, Src: []string{string(StateUnknown)}, Dst: string(StateOutgoing)},
			{Name: eventJoin, Src: []string{string(StateIncoming), string(StateOutgoing)}, Dst: string(StateConnecting)},
			{Name: eventEstablish, Src: []string{string(StateConnecting)}, Dst: string(StateOngoing)},
			{Name: eventDisconnect, Src: []string{string(StateOngoing)}, Dst: string(StateDisconnecting)},
			{Name: eventReject, Src: []string{string(StateIncoming), string(StateOutgoing)}, Dst: string(StateRejected)},
			{Name: eventEnd, Src: []string{
				string(StateIncoming), string(StateOutgoing), string(StateConnecting),
				string(StateOngoing), string(StateDisconnecting),
			}, Dst: string(StateEnded)},
		},
		fsm.Callbacks{
			"enter_state": onEnter,
		},
	)
}
