// Package registry owns the set of live calls.
//
// Manager implements the call.CallRegistry interface. It creates a Call when
// the first SETUP or GROUP_START for an unknown conversation arrives, routes
// subsequent envelopes to the owning Call, generates session ids for outgoing
// attempts, and retires calls when they request deletion. Deactivation events
// are surfaced on a channel for the application layer to forward.
package registry
