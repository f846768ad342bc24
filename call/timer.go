package call

import (
	"sync"
	"time"
)

// DefaultTickInterval is how often the duration counter reports.
const DefaultTickInterval = time.Second

// CallTimer counts wall-clock call duration once the call is connected.
//
// Ticks are computed against the connection start timestamp rather than the
// previous tick, so the reported seconds never drift. Only one counter runs
// at a time; starting again replaces the previous run.
type CallTimer struct {
	mu sync.Mutex

	clock    TimeProvider
	interval time.Duration
	onTick   func(seconds int)

	started time.Time
	stop    chan struct{}
}

func newCallTimer(clock TimeProvider, interval time.Duration, onTick func(seconds int)) *CallTimer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &CallTimer{
		clock:    clock,
		interval: interval,
		onTick:   onTick,
	}
}

// Start records the connection start timestamp and begins ticking.
func (t *CallTimer) Start() {
	t.mu.Lock()
	t.stopLocked()
	t.started = t.clock.Now()
	stop := make(chan struct{})
	t.stop = stop
	started := t.started
	t.mu.Unlock()

	go t.run(started, stop)
}

func (t *CallTimer) run(started time.Time, stop chan struct{}) {
	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if t.onTick != nil {
				t.onTick(int(t.clock.Now().Sub(started).Seconds()))
			}
		case <-stop:
			return
		}
	}
}

// Stop halts ticking but keeps the start timestamp so the final duration can
// still be read. Idempotent.
func (t *CallTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *CallTimer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// Reset stops the counter and clears the start timestamp.
func (t *CallTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.started = time.Time{}
}

// Seconds returns the elapsed call duration, or 0 before the first Start.
func (t *CallTimer) Seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started.IsZero() {
		return 0
	}
	return int(t.clock.Now().Sub(t.started).Seconds())
}

// Running reports whether the counter is currently ticking.
func (t *CallTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}
