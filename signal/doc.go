// Package signal defines the call-control message model consumed and produced
// by the call core.
//
// Messages arrive from the signaling transport as a JSON envelope and are
// decoded exactly once, at this boundary, into a typed variant per message
// kind. The core never inspects raw envelopes; it dispatches on the variant
// type and reads only the fields that kind carries.
//
// # Message Kinds
//
//   - SETUP: a remote party offers or answers media negotiation
//   - HANGUP: a connected party leaves the call
//   - CANCEL: a ringing call attempt is withdrawn
//   - REJECT: the call is declined (possibly by another of the user's clients)
//   - GROUP_START: a group call is started or joined
//   - GROUP_LEAVE: a member leaves a group call
//   - PROP_SYNC: a party synchronizes its media send properties
//
// # Media Properties
//
// SETUP and PROP_SYNC carry media send flags. When an envelope carries an SDP
// payload but no explicit properties, the flags are derived from the SDP media
// sections (screen share is signaled via the content attribute on a video
// section).
//
// # Confirmations
//
// HANGUP and PROP_SYNC have confirmation semantics: the receiver answers with
// a response-flagged copy. Requesting a confirmation for any other kind yields
// ErrUnknownConfirmType, which callers log and otherwise ignore.
package signal
