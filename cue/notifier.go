package cue

import (
	"fmt"
	"sync"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callsession/call"
)

// Sink receives decoded PCM for playback. Implementations are expected to be
// non-blocking; the notifier calls them while holding no locks.
type Sink interface {
	// Start begins playing the PCM buffer, looping until Stop when loop is set.
	Start(name string, pcm []byte, loop bool)
	// Stop halts playback of the named cue. Stopping a silent cue is a no-op.
	Stop(name string)
}

// Decoder decodes one Opus frame into the output buffer. Satisfied by
// *opus.Decoder; tests substitute a stub.
type Decoder interface {
	Decode(in []byte, out []byte) (opus.Bandwidth, bool, error)
}

// frameBufferSize holds one decoded frame: 1920 samples of int16 PCM,
// 40ms at 48kHz.
const frameBufferSize = 1920 * 2

// Notifier is the default call.AudioNotifier implementation.
type Notifier struct {
	mu      sync.Mutex
	assets  map[call.Cue][]byte
	looping map[call.Cue]bool

	sink    Sink
	decoder Decoder
}

// Option adjusts a Notifier at construction.
type Option func(*Notifier)

// WithDecoder substitutes the Opus decoder used at registration time.
func WithDecoder(d Decoder) Option {
	return func(n *Notifier) { n.decoder = d }
}

// New creates a Notifier delivering decoded cues to sink.
func New(sink Sink, opts ...Option) (*Notifier, error) {
	if sink == nil {
		return nil, fmt.Errorf("playback sink cannot be nil")
	}

	n := &Notifier{
		assets:  make(map[call.Cue][]byte),
		looping: make(map[call.Cue]bool),
		sink:    sink,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.decoder == nil {
		decoder := opus.NewDecoder()
		n.decoder = &decoder
	}

	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Info("Audio cue notifier created")
	return n, nil
}

// Register decodes the cue's Opus frames and stores the PCM for playback.
// Registering a cue again replaces its asset.
func (n *Notifier) Register(cue call.Cue, frames [][]byte) error {
	if len(frames) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyAsset, cue)
	}

	pcm := make([]byte, 0, len(frames)*frameBufferSize)
	out := make([]byte, frameBufferSize)
	for i, frame := range frames {
		if _, _, err := n.decoder.Decode(frame, out); err != nil {
			return fmt.Errorf("failed to decode cue %s frame %d: %w", cue, i, err)
		}
		pcm = append(pcm, out...)
	}

	n.mu.Lock()
	n.assets[cue] = pcm
	n.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Register",
		"cue":       cue,
		"frames":    len(frames),
		"pcm_bytes": len(pcm),
	}).Info("Cue asset registered")
	return nil
}

// PlayLoop starts looping playback of the cue. Already-looping cues are left
// alone so repeated state transitions never restart the tone.
func (n *Notifier) PlayLoop(cue call.Cue) {
	n.mu.Lock()
	pcm, ok := n.assets[cue]
	if !ok || n.looping[cue] {
		n.mu.Unlock()
		if !ok {
			n.logMissing("PlayLoop", cue)
		}
		return
	}
	n.looping[cue] = true
	n.mu.Unlock()

	n.sink.Start(string(cue), pcm, true)
}

// PlayOnce plays the cue a single time.
func (n *Notifier) PlayOnce(cue call.Cue) {
	n.mu.Lock()
	pcm, ok := n.assets[cue]
	n.mu.Unlock()

	if !ok {
		n.logMissing("PlayOnce", cue)
		return
	}
	n.sink.Start(string(cue), pcm, false)
}

// Stop halts a looping cue. Stopping a cue that is not playing is a no-op.
func (n *Notifier) Stop(cue call.Cue) {
	n.mu.Lock()
	playing := n.looping[cue]
	delete(n.looping, cue)
	n.mu.Unlock()

	if !playing {
		return
	}
	n.sink.Stop(string(cue))
}

// Looping reports whether the cue is currently in looping playback.
func (n *Notifier) Looping(cue call.Cue) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.looping[cue]
}

func (n *Notifier) logMissing(fn string, cue call.Cue) {
	logrus.WithFields(logrus.Fields{
		"function": fn,
		"cue":      cue,
		"error":    ErrNotRegistered.Error(),
	}).Warn("Playback requested for unregistered cue")
}
