package call

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callsession/signal"
)

func TestLeaveConnectedSendsHangup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.call.MarkOutgoing(ctx))
	require.NoError(t, f.call.Join(ctx))
	require.NoError(t, f.call.Establish(ctx))
	f.call.SetConnected(true)

	for _, id := range []string{"alice", "bob"} {
		_, err := f.call.AddParticipant(ctx, setupMsg(id, "", signal.Props{AudioSend: true}), id, true)
		require.NoError(t, err)
	}

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))

	kinds := f.gateway.kinds()
	require.Len(t, kinds, 2)
	for _, k := range kinds {
		assert.Equal(t, signal.TypeHangup, k)
	}
	assert.Equal(t, 0, f.call.ParticipantCount())
	assert.Equal(t, StateDisconnecting, f.call.State())
	assert.Equal(t, TerminationSelfUser, f.call.TerminationReason())
	assert.False(t, f.call.Connected())
	assert.Equal(t, 1, f.registry.deleteCount())
}

func TestLeaveBeforeConnectSendsCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.call.MarkOutgoing(ctx))
	_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{}), "alice", true)
	require.NoError(t, err)

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))

	kinds := f.gateway.kinds()
	require.Len(t, kinds, 1)
	assert.Equal(t, signal.TypeCancel, kinds[0])
}

func TestLeaveSkipsFlowlessParticipants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Added without negotiation, so no flow exists and no message goes out.
	_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{}), "alice", false)
	require.NoError(t, err)

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))

	assert.Empty(t, f.gateway.kinds())
	assert.Equal(t, 0, f.call.ParticipantCount())
}

func TestLeaveGroupSendsGroupLeaveLast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withGroup())

	_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{}), "alice", true)
	require.NoError(t, err)

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))

	kinds := f.gateway.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, signal.TypeGroupLeave, kinds[len(kinds)-1], "Group leave goes out after all removals")
}

func TestLeaveRemovalsPlayNoCue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{}), "alice", true)
	require.NoError(t, err)

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))

	assert.Equal(t, 0, f.notifier.onceCount(CueTalkLater))
	assert.Equal(t, 0, f.notifier.onceCount(CueCallDrop))
}

func TestLeaveWaitsForSendsBeforeRemoval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.release = make(chan struct{})

	_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{AudioSend: true}), "alice", true)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.call.Leave(ctx, TerminationSelfUser)
	}()

	// While the send is in flight the roster must be untouched.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.call.ParticipantCount())
	assert.Equal(t, 0, f.registry.deleteCount())

	close(f.gateway.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Leave never completed after sends settled")
	}
	assert.Equal(t, 0, f.call.ParticipantCount())
	assert.Equal(t, 1, f.registry.deleteCount())
}

func TestLeaveToleratesSendFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.failAll = true

	_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{}), "alice", true)
	require.NoError(t, err)

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))

	assert.Equal(t, 0, f.call.ParticipantCount())
	assert.Equal(t, 1, f.registry.deleteCount())
}

func TestDeactivateSkippedWhileRosterOccupied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{}), "alice", false)
	require.NoError(t, err)

	require.NoError(t, f.call.Deactivate(ctx, nil, TerminationSelfUser))

	assert.Equal(t, 0, f.registry.deleteCount())
	assert.Empty(t, f.registry.outcomes())
}

func TestDeactivateDefaultsReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.call.Deactivate(ctx, nil, ""))

	assert.Equal(t, TerminationSelfUser, f.call.TerminationReason())
	assert.Equal(t, 1, f.registry.deleteCount())
}

func TestDeactivateOutcomeFromState(t *testing.T) {
	ctx := context.Background()

	t.Run("ringing counts as missed", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.call.MarkIncoming(ctx))
		require.NoError(t, f.call.Leave(ctx, TerminationOtherUser))

		outcomes := f.registry.outcomes()
		require.Len(t, outcomes, 1)
		assert.Equal(t, OutcomeMissed, outcomes[0])
	})

	t.Run("answered counts as completed", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.call.MarkIncoming(ctx))
		require.NoError(t, f.call.Join(ctx))
		require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))

		outcomes := f.registry.outcomes()
		require.Len(t, outcomes, 1)
		assert.Equal(t, OutcomeCompleted, outcomes[0])
	})
}

func TestLeaveReasonFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.call.mu.Lock()
	f.call.setTerminationReasonLocked(TerminationConnectionDrop)
	f.call.mu.Unlock()

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))
	assert.Equal(t, TerminationConnectionDrop, f.call.TerminationReason())
}

func TestLeaveTracksDurationOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.call.MarkOutgoing(ctx))
	require.NoError(t, f.call.Join(ctx))
	require.NoError(t, f.call.Establish(ctx))
	f.call.SetConnected(true)

	require.NoError(t, f.call.Leave(ctx, TerminationSelfUser))
	assert.Equal(t, 1, f.telemetry.durationCount())

	// A second disconnect cycle without reconnecting adds nothing.
	f.call.SetConnected(false)
	assert.Equal(t, 1, f.telemetry.durationCount())
}

func TestCheckGroupActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("occupied roster is untouched", func(t *testing.T) {
		f := newFixture(t, withGroup())
		_, err := f.call.AddParticipant(ctx, setupMsg("alice", "", signal.Props{}), "alice", false)
		require.NoError(t, err)

		require.NoError(t, f.call.CheckGroupActivity(ctx, TerminationMemberLeave))
		assert.Equal(t, 1, f.call.ParticipantCount())
		assert.Equal(t, 0, f.registry.deleteCount())
	})

	t.Run("deserted call leaves", func(t *testing.T) {
		f := newFixture(t, withGroup())
		require.NoError(t, f.call.CheckGroupActivity(ctx, TerminationMemberLeave))
		assert.Equal(t, TerminationMemberLeave, f.call.TerminationReason())
		assert.Equal(t, 1, f.registry.deleteCount())
	})
}
