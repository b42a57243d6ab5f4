package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestClawCreateGetAndNotFound(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	c := &core.Claw{ID: "a", DisplayName: "Alice", Tags: []string{"coding"}, Status: core.ClawActive, CreatedAt: time.Now()}
	require.NoError(t, repo.Claws().Create(ctx, c))

	got, err := repo.Claws().Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, []string{"coding"}, got.Tags)

	_, err = repo.Claws().Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestMessageFanOutWritesMessageAndInboxEntries(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	m := &core.Message{ID: "m1", Sender: "a", CreatedAt: time.Now()}
	entries, err := repo.Messages().FanOut(ctx, m, []string{"b", "c"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got, err := repo.Messages().Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Sender)

	inboxB, err := repo.Messages().ListInbox(ctx, "b", 0, 0)
	require.NoError(t, err)
	require.Len(t, inboxB, 1)
	assert.Equal(t, int64(1), inboxB[0].Seq)
}

func TestTrustScoreUpsertReplacesExistingRow(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	t1 := &core.TrustScore{From: "a", To: "b", Domain: core.OverallDomain, Q: 0.5, N: 0.5, UpdatedAt: time.Now()}
	require.NoError(t, repo.TrustScores().Upsert(ctx, t1))

	t1.Q = 0.9
	require.NoError(t, repo.TrustScores().Upsert(ctx, t1))

	got, err := repo.TrustScores().Get(ctx, "a", "b", core.OverallDomain)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Q)

	all, err := repo.TrustScores().ListFrom(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestReflexAuditExecutionsSurviveResultUpdate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	exec := &core.ReflexExecution{ID: "e1", ReflexID: "r1", Owner: "a", Result: core.ResultDispatchedL1, BatchID: "batch-1", CreatedAt: time.Now()}
	require.NoError(t, repo.Reflexes().RecordExecution(ctx, exec))
	require.NoError(t, repo.Reflexes().UpdateExecutionResult(ctx, "e1", core.ResultL1Acknowledged))

	byBatch, err := repo.Reflexes().ListExecutionsByBatch(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, byBatch, 1)
	assert.Equal(t, core.ResultL1Acknowledged, byBatch[0].Result)
}
