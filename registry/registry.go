package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/call"
	"github.com/opd-ai/callsession/signal"
)

// deactivateBuffer bounds the unread deactivation events kept for the
// application layer before new ones are dropped.
const deactivateBuffer = 16

// Config carries the collaborators handed to every call the manager creates.
type Config struct {
	SelfUserID   string
	SelfClientID string

	Gateway   call.SignalingGateway
	Notifier  call.AudioNotifier
	Telemetry call.Telemetry
	// Connector is optional; without it calls never open media flows.
	Connector call.MediaConnector

	// Clock, RingTimeout and TickInterval pass through to call.Config.
	Clock        call.TimeProvider
	RingTimeout  time.Duration
	TickInterval time.Duration
}

// DeactivateEvent is emitted when a call finishes its lifecycle.
type DeactivateEvent struct {
	// Msg is the inbound message that triggered deactivation, if any.
	Msg signal.Message
	// CreatorID is the user id the deactivation is attributed to.
	CreatorID string
	// Outcome classifies the finished call.
	Outcome call.Outcome
}

// Manager tracks live calls by conversation id and implements
// call.CallRegistry.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	calls map[string]*call.Call

	events chan DeactivateEvent
}

// New creates an empty Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("signaling gateway cannot be nil")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("audio notifier cannot be nil")
	}
	if cfg.Telemetry == nil {
		return nil, errors.New("telemetry cannot be nil")
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"user_id":  cfg.SelfUserID,
	}).Info("Creating call registry")

	return &Manager{
		cfg:    cfg,
		calls:  make(map[string]*call.Call),
		events: make(chan DeactivateEvent, deactivateBuffer),
	}, nil
}

// Get returns the live call for a conversation.
func (m *Manager) Get(conversationID string) (*call.Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[conversationID]
	return c, ok
}

// Count returns how many calls are currently live.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Events surfaces call deactivations for the application layer.
func (m *Manager) Events() <-chan DeactivateEvent {
	return m.events
}

// StartOutgoing creates a call for the conversation with a fresh session id
// and moves it into outgoing ringing.
func (m *Manager) StartOutgoing(ctx context.Context, conversationID string, group bool) (*call.Call, error) {
	m.mu.Lock()
	if _, ok := m.calls[conversationID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCallExists, conversationID)
	}

	c, err := m.newCallLocked(conversationID, uuid.NewString(), group)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.calls[conversationID] = c
	m.mu.Unlock()

	if err := c.MarkOutgoing(ctx); err != nil {
		m.RequestDelete(conversationID)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":        "StartOutgoing",
		"conversation_id": conversationID,
		"session_id":      c.SessionID(),
		"group":           group,
	}).Info("Outgoing call started")
	return c, nil
}

// HandleEnvelope routes one inbound signaling envelope.
//
// An envelope for an unknown conversation creates a new incoming call when its
// kind can open one (SETUP or GROUP_START); any other kind for an unknown
// conversation is stale traffic and returns ErrUnknownCall.
func (m *Manager) HandleEnvelope(ctx context.Context, conversationID string, data []byte) error {
	msg, err := signal.Decode(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	c, ok := m.calls[conversationID]
	if !ok {
		switch msg.Kind() {
		case signal.TypeSetup, signal.TypeGroupStart:
			c, err = m.newCallLocked(conversationID, msg.Hdr().SessionID, msg.Kind() == signal.TypeGroupStart)
			if err != nil {
				m.mu.Unlock()
				return err
			}
			m.calls[conversationID] = c
		default:
			m.mu.Unlock()
			logrus.WithFields(logrus.Fields{
				"function":        "HandleEnvelope",
				"conversation_id": conversationID,
				"type":            msg.Kind(),
			}).Warn("Dropping envelope for unknown conversation")
			return fmt.Errorf("%w: %s", ErrUnknownCall, conversationID)
		}
		m.mu.Unlock()

		if err := c.MarkIncoming(ctx); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"function":        "HandleEnvelope",
			"conversation_id": conversationID,
			"session_id":      msg.Hdr().SessionID,
			"type":            msg.Kind(),
		}).Info("Incoming call created")
	} else {
		m.mu.Unlock()
	}

	return c.HandleMessage(ctx, msg)
}

func (m *Manager) newCallLocked(conversationID, sessionID string, group bool) (*call.Call, error) {
	return call.New(call.Config{
		ID:           conversationID,
		SessionID:    sessionID,
		SelfUserID:   m.cfg.SelfUserID,
		SelfClientID: m.cfg.SelfClientID,
		Group:        group,
		Gateway:      m.cfg.Gateway,
		Registry:     m,
		Notifier:     m.cfg.Notifier,
		Telemetry:    m.cfg.Telemetry,
		Connector:    m.cfg.Connector,
		Clock:        m.cfg.Clock,
		RingTimeout:  m.cfg.RingTimeout,
		TickInterval: m.cfg.TickInterval,
	})
}

// RequestDelete retires the call for a conversation. Unknown ids are ignored;
// deletion races against message routing are expected.
func (m *Manager) RequestDelete(callID string) {
	m.mu.Lock()
	_, ok := m.calls[callID]
	delete(m.calls, callID)
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":        "RequestDelete",
		"conversation_id": callID,
		"existed":         ok,
	}).Info("Call deletion requested")
}

// InjectDeactivateEvent surfaces a finished call to the application layer.
// The channel is buffered; when nobody drains it, new events are dropped with
// a warning rather than blocking the call core.
func (m *Manager) InjectDeactivateEvent(msg signal.Message, creatorID string, outcome call.Outcome) {
	select {
	case m.events <- DeactivateEvent{Msg: msg, CreatorID: creatorID, Outcome: outcome}:
	default:
		logrus.WithFields(logrus.Fields{
			"function":   "InjectDeactivateEvent",
			"creator_id": creatorID,
			"outcome":    outcome,
		}).Warn("Deactivate event dropped, buffer full")
	}
}
