package call

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/panning"
	"github.com/opd-ai/callsession/signal"
)

// Participants returns a snapshot of the roster in join order.
func (c *Call) Participants() []*Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Participant, len(c.participants))
	copy(out, c.participants)
	return out
}

// ParticipantCount returns the current roster size.
func (c *Call) ParticipantCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.participants)
}

// GetParticipant looks up a participant by user id.
func (c *Call) GetParticipant(userID string) (*Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.lookupLocked(userID)
	return p, err == nil
}

// lookupLocked resolves a roster entry by user id. The not-found error is
// the control-flow signal distinguishing create from update.
func (c *Call) lookupLocked(userID string) (*Participant, error) {
	for _, p := range c.participants {
		if p.userID == userID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, userID)
}

// AddParticipant adds the user to the roster, or updates the existing entry
// when the user is already present. Adding is idempotent with respect to
// roster membership: near-simultaneous duplicate SETUPs yield one entry.
//
// When negotiate is set and a MediaConnector is configured, a media flow is
// created for new participants and negotiation starts against the message's
// SDP payload in the background.
func (c *Call) AddParticipant(ctx context.Context, msg signal.Message, userID string, negotiate bool) (*Participant, error) {
	if userID == "" && msg != nil {
		userID = msg.Hdr().UserID
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrParticipantNotFound)
	}

	c.mu.Lock()
	if existing, err := c.lookupLocked(userID); err == nil {
		c.mu.Unlock()
		return existing, c.UpdateParticipant(ctx, msg, negotiate, userID)
	} else if !errors.Is(err, ErrParticipantNotFound) {
		c.mu.Unlock()
		return nil, err
	}

	p := newParticipant(c, userID)
	if msg != nil {
		// A fresh participant has no recorded client id, so apply cannot
		// produce a mismatch here.
		if err := p.apply(msg); err != nil {
			c.mu.Unlock()
			return nil, err
		}
	}
	c.participants = append(c.participants, p)
	if len(c.participants) > c.maxParticipantsSeen {
		c.maxParticipantsSeen = len(c.participants)
	}

	if negotiate && c.connector != nil {
		flow, err := c.connector.CreateFlow(userID, p.clientID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "AddParticipant",
				"call_id":  c.id,
				"user_id":  userID,
				"error":    err.Error(),
			}).Warn("Failed to create media flow")
		} else {
			p.flow = flow
		}
	}

	mediaType := c.recomputeMediaTypeLocked()
	c.recomputePanningLocked()
	count := len(c.participants)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "AddParticipant",
		"call_id":      c.id,
		"user_id":      userID,
		"participants": count,
		"negotiate":    negotiate,
	}).Info("Participant added to roster")

	c.countObs.Set(count)
	c.mediaTypeObs.Set(mediaType)
	if negotiate {
		p.negotiate(ctx, remoteSDP(msg))
	}
	return p, nil
}

// UpdateParticipant applies a message to an existing roster entry.
//
// The target resolves by the message's user id or the explicit argument. A
// missing participant is not an error at the call level: update races
// against concurrent removal are expected and swallowed. A client id
// disagreement aborts with ErrClientMismatch.
func (c *Call) UpdateParticipant(ctx context.Context, msg signal.Message, negotiate bool, userID string) error {
	if userID == "" && msg != nil {
		userID = msg.Hdr().UserID
	}

	c.mu.Lock()
	p, err := c.lookupLocked(userID)
	if err != nil {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "UpdateParticipant",
			"call_id":  c.id,
			"user_id":  userID,
		}).Debug("Update for unknown participant ignored")
		return nil
	}

	if msg != nil {
		if err := p.apply(msg); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	mediaType := c.recomputeMediaTypeLocked()
	c.mu.Unlock()

	c.mediaTypeObs.Set(mediaType)
	if negotiate {
		p.negotiate(ctx, remoteSDP(msg))
	}
	return nil
}

// RemoveParticipant takes the user off the roster.
//
// An unknown user id leaves the roster unchanged and reports no error. When
// the message carried a client id it must agree with the recorded one. The
// participant's flow is released exactly once, and the termination reason
// picks the audio cue: a deliberate remote hangup gets the "talk later" cue,
// a drop or member leave gets the "call dropped" cue, anything else none.
func (c *Call) RemoveParticipant(userID, clientID string, reason TerminationReason) error {
	c.mu.Lock()
	idx := -1
	for i, p := range c.participants {
		if p.userID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "RemoveParticipant",
			"call_id":  c.id,
			"user_id":  userID,
		}).Debug("Removal of unknown participant ignored")
		return nil
	}
	p := c.participants[idx]
	if err := p.VerifyClient(clientID); err != nil {
		c.mu.Unlock()
		return err
	}

	c.participants = append(c.participants[:idx], c.participants[idx+1:]...)
	delete(c.interrupted, userID)
	interruptionCleared := len(c.interrupted) == 0 && c.interruptionObs.Get()
	mediaType := c.recomputeMediaTypeLocked()
	c.recomputePanningLocked()
	count := len(c.participants)
	c.mu.Unlock()

	p.releaseFlow()

	logrus.WithFields(logrus.Fields{
		"function":     "RemoveParticipant",
		"call_id":      c.id,
		"user_id":      userID,
		"reason":       reason,
		"participants": count,
	}).Info("Participant removed from roster")

	c.countObs.Set(count)
	c.mediaTypeObs.Set(mediaType)
	if interruptionCleared {
		c.interruptionObs.Set(false)
		c.notifier.Stop(CueNetworkInterruption)
	}

	switch reason {
	case TerminationOtherUser:
		c.notifier.PlayOnce(CueTalkLater)
	case TerminationConnectionDrop, TerminationMemberLeave:
		c.notifier.PlayOnce(CueCallDrop)
	}
	return nil
}

// SetParticipantInterrupted marks or clears a network interruption for one
// participant. The interruption cue loops while any participant is
// interrupted. Unknown participants are ignored.
func (c *Call) SetParticipantInterrupted(userID string, interrupted bool) {
	c.mu.Lock()
	p, err := c.lookupLocked(userID)
	if err != nil {
		c.mu.Unlock()
		return
	}
	before := len(c.interrupted) > 0
	if interrupted {
		c.interrupted[userID] = p
	} else {
		delete(c.interrupted, userID)
	}
	after := len(c.interrupted) > 0
	c.mu.Unlock()

	if before == after {
		return
	}
	c.interruptionObs.Set(after)
	if after {
		c.notifier.PlayLoop(CueNetworkInterruption)
	} else {
		c.notifier.Stop(CueNetworkInterruption)
	}
}

// InterruptedCount returns how many participants are currently interrupted.
func (c *Call) InterruptedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.interrupted)
}

// recomputeMediaTypeLocked derives the remote media classification: screen
// share wins over camera video regardless of roster order, video wins over
// audio, and an empty roster carries no media. The new value is returned so
// the caller can notify observers after releasing the call lock.
func (c *Call) recomputeMediaTypeLocked() MediaType {
	mediaType := MediaTypeNone
	if len(c.participants) > 0 {
		mediaType = MediaTypeAudio
		for _, p := range c.participants {
			state := p.State()
			if state.ScreenSend {
				mediaType = MediaTypeScreen
				break
			}
			if state.VideoSend {
				mediaType = MediaTypeVideo
			}
		}
	}
	c.remoteMediaType = mediaType
	return mediaType
}

// recomputePanningLocked reassigns stereo placement after a roster size
// change. Placement depends only on roster membership, never on join order.
func (c *Call) recomputePanningLocked() {
	ids := make([]string, len(c.participants))
	for i, p := range c.participants {
		ids[i] = p.userID
	}
	positions := panning.Allocate(ids)
	for _, p := range c.participants {
		p.setPanning(positions[p.userID])
	}
}

// remoteSDP extracts the SDP payload from SDP-bearing message kinds.
func remoteSDP(msg signal.Message) string {
	switch m := msg.(type) {
	case *signal.Setup:
		return m.SDP
	case *signal.PropSync:
		return m.SDP
	default:
		return ""
	}
}
