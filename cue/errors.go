package cue

import "errors"

var (
	// ErrNotRegistered indicates playback of a cue with no registered asset.
	ErrNotRegistered = errors.New("cue not registered")
	// ErrEmptyAsset indicates registration with no Opus frames.
	ErrEmptyAsset = errors.New("cue asset has no frames")
)
