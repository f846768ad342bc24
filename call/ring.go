package call

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRingTimeout is how long a call rings before it resolves itself.
const DefaultRingTimeout = 30 * time.Second

// RingController plays the ring cue for a ringing call and owns the single
// ring timeout allowed per call.
//
// Arming a new timeout invalidates any pending one (generation counter), so a
// stale timer can never fire twice or after cancellation. The timeout
// callback runs on the timer goroutine after the ring cue has been stopped.
type RingController struct {
	mu sync.Mutex

	notifier  AudioNotifier
	clock     TimeProvider
	timeout   time.Duration
	onTimeout func(incoming bool)

	gen  uint64
	stop chan struct{}
}

func newRingController(notifier AudioNotifier, clock TimeProvider, timeout time.Duration, onTimeout func(incoming bool)) *RingController {
	if timeout <= 0 {
		timeout = DefaultRingTimeout
	}
	return &RingController{
		notifier:  notifier,
		clock:     clock,
		timeout:   timeout,
		onTimeout: onTimeout,
	}
}

// Start begins ringing: the looping cue for the call direction plays and one
// ring timeout is armed.
func (r *RingController) Start(incoming bool) {
	r.notifier.PlayLoop(ringCue(incoming))

	r.mu.Lock()
	r.clearLocked()
	r.gen++
	gen := r.gen
	stop := make(chan struct{})
	r.stop = stop
	timer := r.clock.NewTimer(r.timeout)
	r.mu.Unlock()

	go r.await(timer, stop, gen, incoming)
}

func (r *RingController) await(timer *time.Timer, stop chan struct{}, gen uint64, incoming bool) {
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stop:
		return
	}

	r.mu.Lock()
	if gen != r.gen {
		// A newer arm or a clear superseded this timer.
		r.mu.Unlock()
		return
	}
	r.stop = nil
	cb := r.onTimeout
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "RingController.await",
		"incoming": incoming,
		"timeout":  r.timeout,
	}).Info("Ring timeout elapsed")

	// The ring tone stops before any timeout consequence runs.
	r.notifier.Stop(ringCue(incoming))
	if cb != nil {
		cb(incoming)
	}
}

// StopRing stops the looping ring cue for the given direction.
func (r *RingController) StopRing(incoming bool) {
	r.notifier.Stop(ringCue(incoming))
}

// StopIncomingRing stops the incoming ring cue. Safe to call when the cue is
// not playing.
func (r *RingController) StopIncomingRing() {
	r.notifier.Stop(CueRingIncoming)
}

// ClearTimeout cancels a pending ring timeout, if any.
func (r *RingController) ClearTimeout() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *RingController) clearLocked() {
	r.gen++
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

// Pending reports whether a ring timeout is currently armed.
func (r *RingController) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

func ringCue(incoming bool) Cue {
	if incoming {
		return CueRingIncoming
	}
	return CueRingOutgoing
}
