package call

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/signal"
)

// HandleMessage routes one verified inbound signaling message.
//
// Session verification runs first: a message whose session id matches neither
// the call's session nor the target participant's returns ErrSessionMismatch
// and must be discarded by the caller. Response-flagged messages are
// confirmations of our own sends and carry no further action.
func (c *Call) HandleMessage(ctx context.Context, msg signal.Message) error {
	if err := c.verifySession(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "HandleMessage",
			"call_id":    c.id,
			"type":       msg.Kind(),
			"user_id":    msg.Hdr().UserID,
			"session_id": msg.Hdr().SessionID,
		}).Warn("Discarding message with mismatched session")
		return err
	}

	switch m := msg.(type) {
	case *signal.Setup:
		return c.handleSetup(ctx, m)
	case *signal.Hangup:
		if m.Response {
			return nil
		}
		if err := c.RemoveParticipant(m.Hdr().UserID, m.Hdr().ClientID, TerminationOtherUser); err != nil {
			return err
		}
		c.Confirm(ctx, m)
		return c.CheckGroupActivity(ctx, TerminationOtherUser)
	case *signal.Cancel:
		if err := c.RemoveParticipant(m.Hdr().UserID, m.Hdr().ClientID, TerminationOtherUser); err != nil {
			return err
		}
		return c.CheckGroupActivity(ctx, TerminationOtherUser)
	case *signal.Reject:
		return c.handleReject(ctx, m)
	case *signal.GroupStart:
		return c.handleGroupStart(ctx, m)
	case *signal.GroupLeave:
		if err := c.RemoveParticipant(m.Hdr().UserID, m.Hdr().ClientID, TerminationMemberLeave); err != nil {
			return err
		}
		return c.CheckGroupActivity(ctx, TerminationMemberLeave)
	case *signal.PropSync:
		if m.Response {
			return nil
		}
		if err := c.UpdateParticipant(ctx, m, false, ""); err != nil {
			return err
		}
		c.Confirm(ctx, m)
		return nil
	default:
		logrus.WithFields(logrus.Fields{
			"function": "HandleMessage",
			"call_id":  c.id,
			"type":     msg.Kind(),
		}).Warn("Unhandled message kind")
		return nil
	}
}

func (c *Call) handleSetup(ctx context.Context, m *signal.Setup) error {
	if m.Version != "" {
		c.telemetry.SetRemoteToolVersion(m.Version)
	}
	_, err := c.AddParticipant(ctx, m, m.Hdr().UserID, true)
	return err
}

// handleReject ends ringing when the local user declined on another client.
// A remote party's reject simply means they never join; nothing to do here.
func (c *Call) handleReject(ctx context.Context, m *signal.Reject) error {
	c.mu.Lock()
	selfUser := c.selfUserID
	ringing := c.state.IsRinging()
	c.mu.Unlock()

	if m.Hdr().UserID != selfUser || !ringing {
		return nil
	}
	return c.Decline(ctx)
}

func (c *Call) handleGroupStart(ctx context.Context, m *signal.GroupStart) error {
	if m.Hdr().UserID == c.selfUserID {
		// Another of the user's clients joined the group call.
		c.SetSelfUserJoined(true)
		return nil
	}
	_, err := c.AddParticipant(ctx, m, m.Hdr().UserID, false)
	return err
}

// Confirm sends the confirmation for an inbound message when its kind has
// confirmation semantics. Kinds without them are logged and skipped; no
// message goes out, and the condition is not fatal.
func (c *Call) Confirm(ctx context.Context, msg signal.Message) {
	c.mu.Lock()
	selfHdr := c.selfHeaderLocked()
	props := c.localProps
	c.mu.Unlock()

	confirm, err := signal.Confirm(msg, selfHdr, props)
	if err != nil {
		if errors.Is(err, signal.ErrUnknownConfirmType) {
			logrus.WithFields(logrus.Fields{
				"function": "Confirm",
				"call_id":  c.id,
				"type":     msg.Kind(),
			}).Warn("No confirmation semantics for message kind")
			return
		}
		logrus.WithFields(logrus.Fields{
			"function": "Confirm",
			"call_id":  c.id,
			"type":     msg.Kind(),
			"error":    err.Error(),
		}).Warn("Failed to build confirmation")
		return
	}

	if err := c.gateway.SendCallEvent(ctx, c.id, confirm); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Confirm",
			"call_id":  c.id,
			"type":     confirm.Kind(),
			"error":    err.Error(),
		}).Warn("Confirmation send failed")
	}
}

// verifySession checks an inbound message against the call's session.
//
// A message passes when it carries the call's current session id, or when the
// target participant has already been seen under the message's session id.
// Everything else is stale or cross-session traffic.
func (c *Call) verifySession(msg signal.Message) error {
	hdr := msg.Hdr()

	c.mu.Lock()
	defer c.mu.Unlock()

	if hdr.SessionID == "" || hdr.SessionID == c.sessionID {
		return nil
	}
	if p, err := c.lookupLocked(hdr.UserID); err == nil && p.matchesSession(hdr.SessionID) {
		return nil
	}
	return fmt.Errorf("%w: message session %q, call session %q",
		ErrSessionMismatch, hdr.SessionID, c.sessionID)
}
