// Package panning computes deterministic stereo placement for group-call
// participants.
//
// Placement must be identical on every client without any coordination, so
// participants are ordered by a stable 32-bit hash of their user identifier
// (Jenkins one-at-a-time) rather than by join order. Positions are then spaced
// evenly across the stereo field with a margin that shrinks as the group
// grows, so small groups never sit at the extreme edges.
//
// The package is pure: no state, no clock, no I/O.
package panning
