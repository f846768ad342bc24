// Package cue plays the audio cues the call core requests: ring tones,
// hangup notices, and the network-interruption loop.
//
// Cue assets are registered as Opus frames and decoded to 16-bit PCM with
// pion/opus at registration time, so playback never decodes on the hot path.
// Decoded audio is handed to a pluggable Sink; the package tracks which cues
// are looping so that PlayLoop and Stop stay idempotent the way the
// call.AudioNotifier contract requires.
package cue
