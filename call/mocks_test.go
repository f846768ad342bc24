package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opd-ai/callsession/signal"
)

// mockGateway records sent messages. An optional release channel blocks every
// send until closed, and failAll makes every send return an error.
type mockGateway struct {
	mu      sync.Mutex
	sent    []signal.Message
	release chan struct{}
	failAll bool
}

func newMockGateway() *mockGateway {
	return &mockGateway{}
}

func (g *mockGateway) SendCallEvent(_ context.Context, _ string, msg signal.Message) error {
	if g.release != nil {
		<-g.release
	}
	g.mu.Lock()
	g.sent = append(g.sent, msg)
	fail := g.failAll
	g.mu.Unlock()
	if fail {
		return errors.New("send failed")
	}
	return nil
}

func (g *mockGateway) messages() []signal.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]signal.Message, len(g.sent))
	copy(out, g.sent)
	return out
}

func (g *mockGateway) kinds() []signal.Type {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]signal.Type, 0, len(g.sent))
	for _, m := range g.sent {
		out = append(out, m.Kind())
	}
	return out
}

// mockRegistry records delete requests and injected deactivation events.
type mockRegistry struct {
	mu          sync.Mutex
	deletes     []string
	deactivates []Outcome
	creators    []string
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{}
}

func (r *mockRegistry) RequestDelete(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, callID)
}

func (r *mockRegistry) InjectDeactivateEvent(_ signal.Message, creatorID string, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivates = append(r.deactivates, outcome)
	r.creators = append(r.creators, creatorID)
}

func (r *mockRegistry) deleteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deletes)
}

func (r *mockRegistry) outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.deactivates))
	copy(out, r.deactivates)
	return out
}

// mockNotifier records cue playback.
type mockNotifier struct {
	mu    sync.Mutex
	loops []Cue
	stops []Cue
	once  []Cue
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{}
}

func (n *mockNotifier) PlayLoop(cue Cue) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loops = append(n.loops, cue)
}

func (n *mockNotifier) Stop(cue Cue) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops = append(n.stops, cue)
}

func (n *mockNotifier) PlayOnce(cue Cue) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.once = append(n.once, cue)
}

func (n *mockNotifier) loopCount(cue Cue) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return countCues(n.loops, cue)
}

func (n *mockNotifier) stopCount(cue Cue) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return countCues(n.stops, cue)
}

func (n *mockNotifier) onceCount(cue Cue) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return countCues(n.once, cue)
}

func countCues(cues []Cue, cue Cue) int {
	count := 0
	for _, c := range cues {
		if c == cue {
			count++
		}
	}
	return count
}

// mockTelemetry records tracked events and durations.
type mockTelemetry struct {
	mu        sync.Mutex
	events    []string
	attrs     []map[string]string
	durations []Snapshot
	versions  []string
}

func newMockTelemetry() *mockTelemetry {
	return &mockTelemetry{}
}

func (t *mockTelemetry) TrackEvent(name string, _ Snapshot, attrs map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, name)
	t.attrs = append(t.attrs, attrs)
}

func (t *mockTelemetry) TrackDuration(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.durations = append(t.durations, snap)
}

func (t *mockTelemetry) SetRemoteToolVersion(version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.versions = append(t.versions, version)
}

func (t *mockTelemetry) eventCount(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, e := range t.events {
		if e == name {
			count++
		}
	}
	return count
}

func (t *mockTelemetry) lastAttrs(name string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i] == name {
			return t.attrs[i]
		}
	}
	return nil
}

func (t *mockTelemetry) durationCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.durations)
}

// mockFlow counts negotiations and closes.
type mockFlow struct {
	mu         sync.Mutex
	active     bool
	negotiated int
	closed     int
}

func newMockFlow(active bool) *mockFlow {
	return &mockFlow{active: active}
}

func (f *mockFlow) Negotiate(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.negotiated++
	return nil
}

func (f *mockFlow) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *mockFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *mockFlow) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// mockConnector hands out mockFlows and remembers them by user id.
type mockConnector struct {
	mu    sync.Mutex
	flows map[string]*mockFlow
}

func newMockConnector() *mockConnector {
	return &mockConnector{flows: make(map[string]*mockFlow)}
}

func (c *mockConnector) CreateFlow(userID, _ string) (MediaFlow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	flow := newMockFlow(true)
	c.flows[userID] = flow
	return flow, nil
}

func (c *mockConnector) flowFor(userID string) *mockFlow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flows[userID]
}

// testFixture bundles a call with all of its mock collaborators.
type testFixture struct {
	call      *Call
	gateway   *mockGateway
	registry  *mockRegistry
	notifier  *mockNotifier
	telemetry *mockTelemetry
	connector *mockConnector
}

type fixtureOption func(*Config)

func withGroup() fixtureOption {
	return func(cfg *Config) { cfg.Group = true }
}

func withRingTimeout(d time.Duration) fixtureOption {
	return func(cfg *Config) { cfg.RingTimeout = d }
}

func newFixture(t interface{ Fatalf(string, ...interface{}) }, opts ...fixtureOption) *testFixture {
	f := &testFixture{
		gateway:   newMockGateway(),
		registry:  newMockRegistry(),
		notifier:  newMockNotifier(),
		telemetry: newMockTelemetry(),
		connector: newMockConnector(),
	}
	cfg := Config{
		ID:           "conv-1",
		SessionID:    "sess-1",
		SelfUserID:   "self",
		SelfClientID: "self-client",
		Gateway:      f.gateway,
		Registry:     f.registry,
		Notifier:     f.notifier,
		Telemetry:    f.telemetry,
		Connector:    f.connector,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create call: %v", err)
	}
	f.call = c
	return f
}
