package call

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/signal"
)

// Leave sequences a graceful local exit from the call.
//
// The sequence is strictly ordered: a one-to-one ongoing call moves to
// disconnecting first; then every flow-bearing participant is told we are
// leaving (HANGUP when connected, CANCEL otherwise), with all sends settled,
// success or failure, before any roster removal; then every participant is
// removed; a group call sends one GROUP_LEAVE after all removals; finally the
// local join state drops, the termination reason is recorded if none was, and
// the call deactivates.
//
// Send failures are logged and otherwise ignored: teardown proceeds on the
// roster regardless of delivery.
func (c *Call) Leave(ctx context.Context, reason TerminationReason) error {
	logrus.WithFields(logrus.Fields{
		"function": "Leave",
		"call_id":  c.id,
		"reason":   reason,
	}).Info("Leaving call")

	c.mu.Lock()
	disconnecting := false
	if !c.group && c.state == StateOngoing {
		if err := c.transitionLocked(ctx, StateDisconnecting); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Leave",
				"call_id":  c.id,
				"error":    err.Error(),
			}).Warn("Failed to enter disconnecting state")
		} else {
			disconnecting = true
		}
	}
	connected := c.connected
	selfHdr := c.selfHeaderLocked()
	roster := make([]*Participant, len(c.participants))
	copy(roster, c.participants)
	c.mu.Unlock()

	if disconnecting {
		c.stateObs.Set(StateDisconnecting)
	}

	// Per-participant leave messages go out concurrently; the barrier below
	// guarantees every send settled before removal starts.
	var sends sync.WaitGroup
	for _, p := range roster {
		if !p.hasActiveFlow() {
			continue
		}
		sends.Add(1)
		go func(userID string) {
			defer sends.Done()
			var msg signal.Message
			if connected {
				msg = &signal.Hangup{Header: selfHdr}
			} else {
				msg = &signal.Cancel{Header: selfHdr}
			}
			if err := c.gateway.SendCallEvent(ctx, c.id, msg); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Leave",
					"call_id":  c.id,
					"user_id":  userID,
					"error":    err.Error(),
				}).Warn("Leave message send failed")
			}
		}(p.UserID())
	}
	sends.Wait()

	var removals sync.WaitGroup
	for _, p := range roster {
		removals.Add(1)
		go func(userID string) {
			defer removals.Done()
			// Removing our own way out plays no cue.
			_ = c.RemoveParticipant(userID, "", "")
		}(p.UserID())
	}
	removals.Wait()

	if c.group {
		if err := c.gateway.SendCallEvent(ctx, c.id, &signal.GroupLeave{Header: selfHdr}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Leave",
				"call_id":  c.id,
				"error":    err.Error(),
			}).Warn("Group leave send failed")
		}
	}

	c.mu.Lock()
	c.setTerminationReasonLocked(reason)
	c.mu.Unlock()

	c.SetSelfClientJoined(false)
	c.SetSelfUserJoined(false)

	return c.Deactivate(ctx, nil, reason)
}

// Deactivate finishes the call lifecycle once the roster is empty.
//
// A non-empty roster makes this a no-op: a racing remote participant still
// holds the call open. The deactivation outcome (missed versus completed)
// is read off the state at this moment and is independent of the
// caller-supplied termination reason, which only explains why teardown began.
func (c *Call) Deactivate(ctx context.Context, msg signal.Message, reason TerminationReason) error {
	if reason == "" {
		reason = TerminationSelfUser
	}

	c.mu.Lock()
	if len(c.participants) > 0 {
		remaining := len(c.participants)
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":     "Deactivate",
			"call_id":      c.id,
			"participants": remaining,
		}).Debug("Deactivation skipped, roster not empty")
		return nil
	}
	c.setTerminationReasonLocked(reason)
	outcome := OutcomeCompleted
	if c.state.WasMissed() {
		outcome = OutcomeMissed
	}
	creator := c.selfUserID
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Deactivate",
		"call_id":  c.id,
		"outcome":  outcome,
		"reason":   reason,
	}).Info("Deactivating call")

	c.registry.InjectDeactivateEvent(msg, creator, outcome)
	c.registry.RequestDelete(c.id)
	return nil
}

// CheckGroupActivity leaves the call when the roster has emptied out.
// Used after participant-removal events to detect a deserted group call;
// a call that still has participants is untouched.
func (c *Call) CheckGroupActivity(ctx context.Context, reason TerminationReason) error {
	c.mu.Lock()
	empty := len(c.participants) == 0
	c.mu.Unlock()

	if !empty {
		return nil
	}
	return c.Leave(ctx, reason)
}
