package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

func TestClawCreateAndGet(t *testing.T) {
	repo := New()
	ctx := context.Background()

	c := &core.Claw{ID: "a", DisplayName: "Alice", Status: core.ClawActive, CreatedAt: time.Now()}
	require.NoError(t, repo.Claws().Create(ctx, c))

	got, err := repo.Claws().Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	_, err = repo.Claws().Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestFriendshipGetByPairIsOrderIndependent(t *testing.T) {
	repo := New()
	ctx := context.Background()

	f := &core.Friendship{ID: "f1", Requester: "a", Accepter: "b", Status: core.FriendshipAccepted, CreatedAt: time.Now()}
	require.NoError(t, repo.Friendships().Create(ctx, f))

	got, err := repo.Friendships().GetByPair(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.ID)
}

func TestMessageFanOutAssignsIndependentSequencesPerRecipient(t *testing.T) {
	repo := New()
	ctx := context.Background()

	m1 := &core.Message{ID: "m1", Sender: "a", CreatedAt: time.Now()}
	entries, err := repo.Messages().FanOut(ctx, m1, []string{"b", "c"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, int64(1), e.Seq)
	}

	m2 := &core.Message{ID: "m2", Sender: "a", CreatedAt: time.Now()}
	entries2, err := repo.Messages().FanOut(ctx, m2, []string{"b"})
	require.NoError(t, err)
	require.Len(t, entries2, 1)
	assert.Equal(t, int64(2), entries2[0].Seq)

	inboxC, err := repo.Messages().ListInbox(ctx, "c", 0, 0)
	require.NoError(t, err)
	require.Len(t, inboxC, 1)
	assert.Equal(t, int64(1), inboxC[0].Seq)
}

func TestReflexExecutionAuditLogIsAppendOnly(t *testing.T) {
	repo := New()
	ctx := context.Background()

	exec := &core.ReflexExecution{ID: "e1", ReflexID: "r1", Owner: "a", Result: core.ResultExecuted, CreatedAt: time.Now()}
	require.NoError(t, repo.Reflexes().RecordExecution(ctx, exec))

	require.NoError(t, repo.Reflexes().UpdateExecutionResult(ctx, "e1", core.ResultL1Acknowledged))

	execs, err := repo.Reflexes().ListExecutions(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, core.ResultL1Acknowledged, execs[0].Result)
}
