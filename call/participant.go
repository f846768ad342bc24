package call

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/signal"
)

// ParticipantState holds the media send flags for one remote participant.
type ParticipantState struct {
	AudioSend  bool
	VideoSend  bool
	ScreenSend bool
}

// stateFromProps converts decoded message props into participant state.
func stateFromProps(p signal.Props) ParticipantState {
	return ParticipantState{
		AudioSend:  p.AudioSend,
		VideoSend:  p.VideoSend,
		ScreenSend: p.ScreenSend,
	}
}

// Participant is one remote party's lifecycle within a Call.
//
// The participant is owned by its Call: it is created when a SETUP or a local
// join references an unknown user id and destroyed when removed from the
// roster. The back reference to the call exists for log and event context
// only; a participant never mutates its call.
type Participant struct {
	mu sync.RWMutex

	userID    string
	clientID  string // learned lazily from the first message carrying one
	sessionID string

	state   ParticipantState
	panning float64

	flow         MediaFlow
	flowReleased bool

	call *Call
}

func newParticipant(c *Call, userID string) *Participant {
	return &Participant{
		userID: userID,
		call:   c,
	}
}

// UserID returns the participant's user identifier.
func (p *Participant) UserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.userID
}

// ClientID returns the participant's client identifier, or the empty string
// if no verified message has carried one yet.
func (p *Participant) ClientID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clientID
}

// SessionID returns the session identifier last seen for this participant.
func (p *Participant) SessionID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID
}

// State returns the participant's current media send flags.
func (p *Participant) State() ParticipantState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Panning returns the participant's stereo placement in [-1, 1].
func (p *Participant) Panning() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.panning
}

func (p *Participant) setPanning(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panning = v
}

// VerifyClient checks a message client id against the recorded one.
//
// An empty incoming id always passes. If no client id is recorded yet, the
// incoming one is learned. A disagreement returns ErrClientMismatch.
func (p *Participant) VerifyClient(clientID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifyClientLocked(clientID)
}

func (p *Participant) verifyClientLocked(clientID string) error {
	if clientID == "" {
		return nil
	}
	if p.clientID == "" {
		p.clientID = clientID
		return nil
	}
	if p.clientID != clientID {
		logrus.WithFields(logrus.Fields{
			"function":        "VerifyClient",
			"user_id":         p.userID,
			"known_client_id": p.clientID,
			"message_client":  clientID,
		}).Warn("Client id mismatch on incoming message")
		return ErrClientMismatch
	}
	return nil
}

// matchesSession reports whether the participant has seen this session id.
func (p *Participant) matchesSession(sessionID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessionID != "" && p.sessionID == sessionID
}

// apply folds a verified message into the participant: the client id is
// learned or checked, the session id updated, and media flags taken from
// props-bearing kinds.
func (p *Participant) apply(msg signal.Message) error {
	hdr := msg.Hdr()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.verifyClientLocked(hdr.ClientID); err != nil {
		return err
	}
	if hdr.SessionID != "" {
		p.sessionID = hdr.SessionID
	}

	switch m := msg.(type) {
	case *signal.Setup:
		p.state = stateFromProps(m.Props)
	case *signal.PropSync:
		p.state = stateFromProps(m.Props)
	}
	return nil
}

// negotiate kicks off media negotiation in the background. The result is
// observed for logging only; call state never depends on it.
func (p *Participant) negotiate(ctx context.Context, remoteSDP string) {
	p.mu.RLock()
	flow := p.flow
	userID := p.userID
	p.mu.RUnlock()

	if flow == nil || remoteSDP == "" {
		return
	}

	go func() {
		if err := flow.Negotiate(ctx, remoteSDP); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "negotiate",
				"user_id":  userID,
				"error":    err.Error(),
			}).Warn("Media negotiation failed")
		}
	}()
}

// hasActiveFlow reports whether the participant currently owns a live flow.
func (p *Participant) hasActiveFlow() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flow != nil && p.flow.Active()
}

// releaseFlow closes the participant's media flow exactly once.
func (p *Participant) releaseFlow() {
	p.mu.Lock()
	flow := p.flow
	released := p.flowReleased
	p.flowReleased = true
	p.flow = nil
	p.mu.Unlock()

	if flow == nil || released {
		return
	}
	flow.Close()
}
