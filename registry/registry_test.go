package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callsession/call"
	"github.com/opd-ai/callsession/signal"
)

type stubGateway struct {
	mu   sync.Mutex
	sent []signal.Message
}

func (g *stubGateway) SendCallEvent(_ context.Context, _ string, msg signal.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, msg)
	return nil
}

type stubNotifier struct{}

func (stubNotifier) PlayLoop(call.Cue) {}
func (stubNotifier) Stop(call.Cue)     {}
func (stubNotifier) PlayOnce(call.Cue) {}

type stubTelemetry struct{}

func (stubTelemetry) TrackEvent(string, call.Snapshot, map[string]string) {}
func (stubTelemetry) TrackDuration(call.Snapshot)                        {}
func (stubTelemetry) SetRemoteToolVersion(string)                        {}

func newTestManager(t *testing.T) *Manager {
	m, err := New(Config{
		SelfUserID:   "self",
		SelfClientID: "self-client",
		Gateway:      &stubGateway{},
		Notifier:     stubNotifier{},
		Telemetry:    stubTelemetry{},
	})
	require.NoError(t, err)
	return m
}

func encode(t *testing.T, msg signal.Message) []byte {
	data, err := signal.Encode(msg)
	require.NoError(t, err)
	return data
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"nil gateway", Config{Notifier: stubNotifier{}, Telemetry: stubTelemetry{}}},
		{"nil notifier", Config{Gateway: &stubGateway{}, Telemetry: stubTelemetry{}}},
		{"nil telemetry", Config{Gateway: &stubGateway{}, Notifier: stubNotifier{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestStartOutgoing(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	c, err := m.StartOutgoing(ctx, "conv-1", false)
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, call.StateOutgoing, c.State())
	assert.NotEmpty(t, c.SessionID(), "Outgoing calls get a generated session id")
	assert.False(t, c.IsGroup())
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get("conv-1")
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestStartOutgoingDuplicate(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.StartOutgoing(ctx, "conv-1", false)
	require.NoError(t, err)

	_, err = m.StartOutgoing(ctx, "conv-1", true)
	assert.True(t, errors.Is(err, ErrCallExists))
	assert.Equal(t, 1, m.Count())
}

func TestHandleEnvelopeCreatesIncomingCall(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	setup := &signal.Setup{
		Header: signal.Header{UserID: "alice", ClientID: "client-a", SessionID: "sess-1"},
		Props:  signal.Props{AudioSend: true},
	}
	require.NoError(t, m.HandleEnvelope(ctx, "conv-1", encode(t, setup)))

	c, ok := m.Get("conv-1")
	require.True(t, ok)
	assert.Equal(t, call.StateIncoming, c.State())
	assert.Equal(t, "sess-1", c.SessionID())
	assert.False(t, c.IsGroup())
	assert.Equal(t, 1, c.ParticipantCount())
}

func TestHandleEnvelopeCreatesGroupCall(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	start := &signal.GroupStart{
		Header: signal.Header{UserID: "alice", SessionID: "sess-1"},
	}
	require.NoError(t, m.HandleEnvelope(ctx, "conv-1", encode(t, start)))

	c, ok := m.Get("conv-1")
	require.True(t, ok)
	assert.True(t, c.IsGroup())
	assert.Equal(t, 1, c.ParticipantCount())
}

func TestHandleEnvelopeRoutesToExistingCall(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	setup := &signal.Setup{
		Header: signal.Header{UserID: "alice", ClientID: "client-a", SessionID: "sess-1"},
	}
	require.NoError(t, m.HandleEnvelope(ctx, "conv-1", encode(t, setup)))

	sync := &signal.PropSync{
		Header: signal.Header{UserID: "alice", ClientID: "client-a", SessionID: "sess-1"},
		Props:  signal.Props{VideoSend: true},
	}
	require.NoError(t, m.HandleEnvelope(ctx, "conv-1", encode(t, sync)))

	c, _ := m.Get("conv-1")
	p, ok := c.GetParticipant("alice")
	require.True(t, ok)
	assert.True(t, p.State().VideoSend)
	assert.Equal(t, 1, m.Count(), "Routing never duplicates calls")
}

func TestHandleEnvelopeUnknownConversation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	hangup := &signal.Hangup{Header: signal.Header{UserID: "alice", SessionID: "sess-1"}}
	err := m.HandleEnvelope(ctx, "conv-ghost", encode(t, hangup))

	assert.True(t, errors.Is(err, ErrUnknownCall))
	assert.Equal(t, 0, m.Count())
}

func TestHandleEnvelopeBadPayload(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	err := m.HandleEnvelope(ctx, "conv-1", []byte("{not json"))
	assert.Error(t, err)
	assert.Equal(t, 0, m.Count())
}

func TestRequestDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.StartOutgoing(ctx, "conv-1", false)
	require.NoError(t, err)

	m.RequestDelete("conv-1")
	assert.Equal(t, 0, m.Count())

	// Unknown ids are ignored.
	m.RequestDelete("conv-ghost")
}

func TestCallTeardownRetiresItself(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	c, err := m.StartOutgoing(ctx, "conv-1", false)
	require.NoError(t, err)

	require.NoError(t, c.Leave(ctx, call.TerminationSelfUser))

	assert.Equal(t, 0, m.Count(), "A finished call removes itself from the registry")

	select {
	case ev := <-m.Events():
		assert.Equal(t, call.OutcomeMissed, ev.Outcome, "Ringing outgoing call counts as missed")
		assert.Equal(t, "self", ev.CreatorID)
	default:
		t.Fatal("Expected a deactivate event")
	}
}

func TestInjectDeactivateEventDropsWhenFull(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < deactivateBuffer+5; i++ {
		m.InjectDeactivateEvent(nil, "self", call.OutcomeCompleted)
	}
	assert.Len(t, m.events, deactivateBuffer)
}
