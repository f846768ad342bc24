package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/observable"
	"github.com/opd-ai/callsession/signal"
)

// Config carries everything a Call needs at construction. Gateway, Registry,
// Notifier and Telemetry are required; the rest has working defaults.
type Config struct {
	// ID is the conversation identifier the call belongs to.
	ID string
	// SessionID identifies this call attempt. May be set later by the registry.
	SessionID string
	// SelfUserID and SelfClientID identify the local party on outgoing messages.
	SelfUserID   string
	SelfClientID string
	// Group marks a group call. Fixed for the lifetime of the call.
	Group bool

	Gateway   SignalingGateway
	Registry  CallRegistry
	Notifier  AudioNotifier
	Telemetry Telemetry
	// Connector is optional; without it the call never opens media flows.
	Connector MediaConnector

	// Clock defaults to the system clock.
	Clock TimeProvider
	// RingTimeout defaults to DefaultRingTimeout.
	RingTimeout time.Duration
	// TickInterval defaults to DefaultTickInterval.
	TickInterval time.Duration
}

// Call is the top-level aggregate coordinating one call session.
//
// All state is guarded by one mutex; handlers and timer callbacks serialize
// on it. See the package documentation for the concurrency contract.
type Call struct {
	mu sync.Mutex

	id           string
	sessionID    string
	selfUserID   string
	selfClientID string
	group        bool

	machine       *fsm.FSM
	state         State
	previousState State

	participants []*Participant
	interrupted  map[string]*Participant

	selfClientJoined bool
	selfUserJoined   bool
	connected        bool
	durationTracked  bool

	remoteMediaType     MediaType
	terminationReason   TerminationReason
	maxParticipantsSeen int

	localProps signal.Props

	gateway   SignalingGateway
	registry  CallRegistry
	notifier  AudioNotifier
	telemetry Telemetry
	connector MediaConnector

	ring  *RingController
	timer *CallTimer

	stateObs        *observable.Value[State]
	connectedObs    *observable.Value[bool]
	countObs        *observable.Value[int]
	durationObs     *observable.Value[int]
	interruptionObs *observable.Value[bool]
	mediaTypeObs    *observable.Value[MediaType]
}

// New creates a Call in the unknown state.
func New(cfg Config) (*Call, error) {
	logrus.WithFields(logrus.Fields{
		"function": "New",
		"call_id":  cfg.ID,
		"group":    cfg.Group,
	}).Info("Creating new call")

	if cfg.ID == "" {
		return nil, errors.New("call id cannot be empty")
	}
	if cfg.Gateway == nil {
		return nil, errors.New("signaling gateway cannot be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("call registry cannot be nil")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("audio notifier cannot be nil")
	}
	if cfg.Telemetry == nil {
		return nil, errors.New("telemetry cannot be nil")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealTimeProvider{}
	}

	c := &Call{
		id:              cfg.ID,
		sessionID:       cfg.SessionID,
		selfUserID:      cfg.SelfUserID,
		selfClientID:    cfg.SelfClientID,
		group:           cfg.Group,
		state:           StateUnknown,
		previousState:   StateUnknown,
		interrupted:     make(map[string]*Participant),
		remoteMediaType: MediaTypeNone,
		gateway:         cfg.Gateway,
		registry:        cfg.Registry,
		notifier:        cfg.Notifier,
		telemetry:       cfg.Telemetry,
		connector:       cfg.Connector,
		stateObs:        observable.New(StateUnknown),
		connectedObs:    observable.New(false),
		countObs:        observable.New(0),
		durationObs:     observable.New(0),
		interruptionObs: observable.New(false),
		mediaTypeObs:    observable.New(MediaTypeNone),
	}
	c.machine = newStateMachine(c.onEnterState)
	c.ring = newRingController(cfg.Notifier, clock, cfg.RingTimeout, c.onRingTimeout)
	c.timer = newCallTimer(clock, cfg.TickInterval, c.durationObs.Set)
	return c, nil
}

// ID returns the conversation identifier.
func (c *Call) ID() string { return c.id }

// IsGroup reports whether this is a group call.
func (c *Call) IsGroup() bool { return c.group }

// SessionID returns the current session identifier.
func (c *Call) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID records the session identifier for this call attempt.
func (c *Call) SetSessionID(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
}

// State returns the current lifecycle state.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PreviousState returns the state before the most recent transition.
func (c *Call) PreviousState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previousState
}

// IsDeclined reports whether the call was rejected.
func (c *Call) IsDeclined() bool {
	return c.State() == StateRejected
}

// Connected reports whether the call is currently connected.
func (c *Call) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// TerminationReason returns why teardown was initiated, or "" if it wasn't.
func (c *Call) TerminationReason() TerminationReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminationReason
}

// RemoteMediaType returns the media classification derived from the roster.
func (c *Call) RemoteMediaType() MediaType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteMediaType
}

// MaxParticipantsSeen returns the roster high-water mark.
func (c *Call) MaxParticipantsSeen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxParticipantsSeen
}

// SetLocalProps records the local media send flags used in confirmations.
func (c *Call) SetLocalProps(props signal.Props) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localProps = props
}

// Observable accessors for the UI layer. Read-only from the subscriber's
// perspective; only the Call writes them.

// StateValue exposes the lifecycle state as an observable.
func (c *Call) StateValue() *observable.Value[State] { return c.stateObs }

// ConnectedValue exposes the connected flag as an observable.
func (c *Call) ConnectedValue() *observable.Value[bool] { return c.connectedObs }

// ParticipantCountValue exposes the roster size as an observable.
func (c *Call) ParticipantCountValue() *observable.Value[int] { return c.countObs }

// DurationValue exposes the call duration in seconds as an observable.
func (c *Call) DurationValue() *observable.Value[int] { return c.durationObs }

// NetworkInterruptionValue exposes whether any participant is interrupted.
func (c *Call) NetworkInterruptionValue() *observable.Value[bool] { return c.interruptionObs }

// MediaTypeValue exposes the derived remote media type as an observable.
func (c *Call) MediaTypeValue() *observable.Value[MediaType] { return c.mediaTypeObs }

// MarkIncoming moves an unknown call into incoming ringing.
func (c *Call) MarkIncoming(ctx context.Context) error {
	return c.transition(ctx, StateIncoming)
}

// MarkOutgoing moves an unknown call into outgoing ringing.
func (c *Call) MarkOutgoing(ctx context.Context) error {
	return c.transition(ctx, StateOutgoing)
}

// Join moves a ringing call into connecting.
func (c *Call) Join(ctx context.Context) error {
	return c.transition(ctx, StateConnecting)
}

// Establish moves a connecting call into ongoing.
func (c *Call) Establish(ctx context.Context) error {
	return c.transition(ctx, StateOngoing)
}

// Decline rejects a ringing call.
func (c *Call) Decline(ctx context.Context) error {
	return c.transition(ctx, StateRejected)
}

// End terminates the call lifecycle.
func (c *Call) End(ctx context.Context) error {
	return c.transition(ctx, StateEnded)
}

func (c *Call) transition(ctx context.Context, target State) error {
	c.mu.Lock()
	err := c.transitionLocked(ctx, target)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	// Notify outside the lock so listeners may read the Call.
	c.stateObs.Set(target)
	return nil
}

func (c *Call) transitionLocked(ctx context.Context, target State) error {
	event, ok := eventFor[target]
	if !ok {
		return fmt.Errorf("%w: no event reaches %s", ErrInvalidTransition, target)
	}
	if err := c.machine.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: %s -> %s: %v", ErrInvalidTransition, c.state, target, err)
	}
	return nil
}

// onEnterState runs inside every successful transition, with the call lock
// held. It applies the ringing policy, emits the join telemetry event, and
// maintains previousState against the pre-transition value.
func (c *Call) onEnterState(_ context.Context, e *fsm.Event) {
	prev := State(e.Src)
	next := State(e.Dst)

	logrus.WithFields(logrus.Fields{
		"function": "onEnterState",
		"call_id":  c.id,
		"from":     prev,
		"to":       next,
	}).Debug("Call state transition")

	// The FSM has already moved; mirror it before dispatch so snapshots taken
	// below see the new state. Dispatch decisions use prev, the old value.
	c.state = next

	// Every state write clears a pending ring timeout before anything else.
	c.ring.ClearTimeout()

	if next.IsRinging() {
		c.ring.Start(next == StateIncoming)
	} else if prev.IsRinging() {
		c.ring.StopRing(prev == StateIncoming)
	}

	if next == StateConnecting {
		direction := "incoming"
		if prev == StateOutgoing {
			direction = "outgoing"
		}
		c.telemetry.TrackEvent(EventJoinedCall, c.snapshotLocked(), map[string]string{
			"direction": direction,
		})
	}

	if next == StateRejected {
		// Declining stops the incoming ring tone even when it is not playing.
		c.ring.StopIncomingRing()
	}

	c.previousState = prev
}

// onRingTimeout resolves a call nobody answered within the ring timeout.
//
// The timeout races transitions by design: the ring controller fires on its
// own goroutine, so cancellation is judged here against the Call's serialized
// state. A timeout that lost the race to an answer or a decline is stale and
// must have no consequence.
func (c *Call) onRingTimeout(incoming bool) {
	ctx := context.Background()

	expected := StateOutgoing
	if incoming {
		expected = StateIncoming
	}
	c.mu.Lock()
	current := c.state
	c.mu.Unlock()
	if current != expected {
		logrus.WithFields(logrus.Fields{
			"function": "onRingTimeout",
			"call_id":  c.id,
			"incoming": incoming,
			"state":    current,
		}).Debug("Ignoring stale ring timeout, call no longer ringing")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "onRingTimeout",
		"call_id":  c.id,
		"incoming": incoming,
		"group":    c.group,
	}).Info("Resolving unanswered call")

	switch {
	case incoming && c.group:
		if err := c.Decline(ctx); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "onRingTimeout",
				"call_id":  c.id,
				"error":    err.Error(),
			}).Warn("Failed to reject timed-out group call")
		}
	case incoming:
		c.registry.RequestDelete(c.id)
	default:
		if err := c.Leave(ctx, TerminationTimeout); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "onRingTimeout",
				"call_id":  c.id,
				"error":    err.Error(),
			}).Warn("Failed to leave timed-out outgoing call")
		}
	}
}

// SetConnected explicitly flips the connected flag.
//
// Becoming connected tracks the established event and starts the duration
// counter. Becoming disconnected stops the counter, resets the reported
// duration, and (if a termination reason is already recorded) tracks the
// call duration exactly once per connection.
func (c *Call) SetConnected(connected bool) {
	c.mu.Lock()
	if c.connected == connected {
		c.mu.Unlock()
		return
	}
	c.connected = connected

	if connected {
		c.durationTracked = false
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.telemetry.TrackEvent(EventEstablished, snap, nil)
		c.timer.Start()
		c.connectedObs.Set(true)
		return
	}

	trackDuration := c.terminationReason != "" && !c.durationTracked
	if trackDuration {
		c.durationTracked = true
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.timer.Stop()
	c.timer.Reset()
	c.durationObs.Set(0)
	c.connectedObs.Set(false)
	if trackDuration {
		c.telemetry.TrackDuration(snap)
	}
}

// SetSelfClientJoined tracks whether this client has joined the call.
// Leaving drives the connected flag false.
func (c *Call) SetSelfClientJoined(joined bool) {
	c.mu.Lock()
	c.selfClientJoined = joined
	c.mu.Unlock()

	if !joined {
		c.SetConnected(false)
	}
}

// SetSelfUserJoined tracks whether the user joined from any of their clients.
func (c *Call) SetSelfUserJoined(joined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selfUserJoined = joined
}

// SelfClientJoined reports whether this client has joined the call.
func (c *Call) SelfClientJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfClientJoined
}

// SelfUserJoined reports whether the user joined from any client.
func (c *Call) SelfUserJoined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfUserJoined
}

// Reset returns the call to a pristine pre-attempt state: join flags,
// connected flag, session id and termination reason are cleared, outstanding
// timers cancelled, and the interruption cue silenced. Idempotent.
func (c *Call) Reset() {
	c.mu.Lock()
	c.selfClientJoined = false
	c.selfUserJoined = false
	c.connected = false
	c.durationTracked = false
	c.sessionID = ""
	c.terminationReason = ""
	for id := range c.interrupted {
		delete(c.interrupted, id)
	}
	c.mu.Unlock()

	c.ring.ClearTimeout()
	c.timer.Reset()
	c.notifier.Stop(CueNetworkInterruption)
	c.connectedObs.Set(false)
	c.durationObs.Set(0)
	c.interruptionObs.Set(false)
}

// selfHeaderLocked builds the message header for locally originated messages.
func (c *Call) selfHeaderLocked() signal.Header {
	return signal.Header{
		UserID:    c.selfUserID,
		ClientID:  c.selfClientID,
		SessionID: c.sessionID,
	}
}

func (c *Call) snapshotLocked() Snapshot {
	return Snapshot{
		ID:                c.id,
		SessionID:         c.sessionID,
		State:             c.state,
		Group:             c.group,
		Participants:      len(c.participants),
		MaxParticipants:   c.maxParticipantsSeen,
		DurationSeconds:   c.timer.Seconds(),
		TerminationReason: c.terminationReason,
	}
}

// setTerminationReasonLocked records the reason unless one is already set.
// First writer wins until the next Reset.
func (c *Call) setTerminationReasonLocked(reason TerminationReason) {
	if c.terminationReason == "" && reason != "" {
		c.terminationReason = reason
	}
}
