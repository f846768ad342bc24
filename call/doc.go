// Package call implements the core call-session state machine.
//
// A Call coordinates one real-time session between the local participant and
// one or more remote participants: lifecycle state, the remote-participant
// roster with per-participant negotiation state, ringing and ring-timeout
// policy, wall-clock duration tracking, ordered teardown, and deterministic
// stereo placement for group calls.
//
// # Architecture
//
// The package consists of several cooperating pieces, all owned by the Call:
//
//   - Call: the aggregate; state machine, roster, teardown sequencing
//   - Participant: one remote party's lifecycle within the call
//   - RingController: ring cue playback plus the single ring timeout
//   - CallTimer: drift-free duration counter once the call is connected
//
// External collaborators are injected at construction and consumed through
// narrow interfaces: SignalingGateway delivers call-control messages,
// CallRegistry owns call creation and deletion, AudioNotifier plays audio
// cues, Telemetry records usage, and MediaConnector produces MediaFlow
// transports for participants.
//
// # State Machine
//
// Calls progress through
//
//	unknown -> {incoming, outgoing} -> connecting -> ongoing
//	        -> disconnecting -> ended
//
// with a side branch to rejected from the ringing states. The transition
// table is enforced; an illegal transition returns ErrInvalidTransition and
// changes nothing. Every transition first cancels a pending ring timeout,
// then applies the ringing policy for the new state against the previous one.
//
// # Concurrency
//
// All Call state is guarded by a single mutex; message handlers and timer
// callbacks serialize on it, matching the one-logical-thread model of the
// surrounding application. Teardown sends run concurrently and are gathered
// behind a barrier before roster removal starts; the group-leave message is
// strictly ordered after all removals.
//
// Observable notifications are emitted after the Call lock is released, so a
// listener may read Call accessors from its callback. Telemetry collaborators
// receive an immutable Snapshot for the same reason. Listeners still must not
// mutate the Call synchronously; a mutation from inside a notification
// re-enters the notifying path.
//
// # Race Tolerance
//
// Signaling messages can arrive out of order, duplicated, or for stale
// sessions. Participant lookups that fail are swallowed wherever a concurrent
// removal is a legitimate explanation; only a client-identifier mismatch
// (ErrClientMismatch, a stale or spoofed sender) propagates, and
// session-mismatched messages are rejected with ErrSessionMismatch for the
// caller to discard.
package call
