package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/call"
)

// Reporter is a Prometheus-backed call.Telemetry implementation.
type Reporter struct {
	mu          sync.Mutex
	lastVersion string

	events    *prometheus.CounterVec
	durations prometheus.Histogram
	toolInfo  *prometheus.GaugeVec
}

// New creates a Reporter and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Reporter, error) {
	if reg == nil {
		return nil, errors.New("prometheus registerer cannot be nil")
	}

	r := &Reporter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callsession_events_total",
			Help: "Call lifecycle events by event name and call kind.",
		}, []string{"event", "group"}),
		durations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callsession_call_duration_seconds",
			Help:    "Duration of finished calls.",
			Buckets: []float64{10, 30, 60, 180, 600, 1800, 3600},
		}),
		toolInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callsession_remote_tool_info",
			Help: "Advertised version of the remote party's client, value is always 1.",
		}, []string{"version"}),
	}

	for _, c := range []prometheus.Collector{r.events, r.durations, r.toolInfo} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return r, nil
}

// TrackEvent counts one lifecycle event. Attrs enrich the log line only;
// metric labels stay fixed so cardinality cannot grow with call content.
func (r *Reporter) TrackEvent(name string, snap call.Snapshot, attrs map[string]string) {
	r.events.WithLabelValues(name, strconv.FormatBool(snap.Group)).Inc()

	fields := logrus.Fields{
		"function":     "TrackEvent",
		"event":        name,
		"call_id":      snap.ID,
		"state":        snap.State,
		"group":        snap.Group,
		"participants": snap.Participants,
	}
	for k, v := range attrs {
		fields[k] = v
	}
	logrus.WithFields(fields).Debug("Tracked call event")
}

// TrackDuration records the duration of a finished call.
func (r *Reporter) TrackDuration(snap call.Snapshot) {
	r.durations.Observe(float64(snap.DurationSeconds))

	logrus.WithFields(logrus.Fields{
		"function":         "TrackDuration",
		"call_id":          snap.ID,
		"duration_seconds": snap.DurationSeconds,
		"max_participants": snap.MaxParticipants,
		"reason":           snap.TerminationReason,
	}).Debug("Tracked call duration")
}

// SetRemoteToolVersion exposes the remote client version. Only the most
// recently seen version stays exported, so the gauge holds a single series.
func (r *Reporter) SetRemoteToolVersion(version string) {
	if version == "" {
		return
	}

	r.mu.Lock()
	previous := r.lastVersion
	r.lastVersion = version
	r.mu.Unlock()

	if previous == version {
		return
	}
	if previous != "" {
		r.toolInfo.DeleteLabelValues(previous)
	}
	r.toolInfo.WithLabelValues(version).Set(1)
}

// LastRemoteToolVersion returns the most recently reported remote version.
func (r *Reporter) LastRemoteToolVersion() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastVersion
}
