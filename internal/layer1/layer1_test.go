package layer1

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/notifier"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
)

type fakeNotifier struct {
	available     bool
	notifications []notifier.Notification
}

func (f *fakeNotifier) Deliver(n notifier.Notification) { f.notifications = append(f.notifications, n) }
func (f *fakeNotifier) Available() bool                 { return f.available }
func (f *fakeNotifier) Shutdown()                       {}

func execution(owner, id string) core.ReflexExecution {
	return core.ReflexExecution{ID: id, ReflexID: "r1", Owner: owner, EventType: "message.new", Result: core.ResultQueuedForL1}
}

func TestEnqueueFlushesOnSizeTrigger(t *testing.T) {
	fake := clock.NewFake(time.Now())
	repo := memory.New()
	fn := &fakeNotifier{available: true}
	p := New(repo.Reflexes(), fn, fake, 2, 60_000, nil)
	ctx := context.Background()

	require.NoError(t, p.Enqueue(ctx, execution("a", "e1"), nil))
	assert.Empty(t, fn.notifications)

	require.NoError(t, p.Enqueue(ctx, execution("a", "e2"), nil))
	require.Len(t, fn.notifications, 1)
}

func TestCheckAgeTriggerFlushesStaleQueue(t *testing.T) {
	fake := clock.NewFake(time.Now())
	repo := memory.New()
	fn := &fakeNotifier{available: true}
	p := New(repo.Reflexes(), fn, fake, 10, 1000, nil)
	ctx := context.Background()

	require.NoError(t, p.Enqueue(ctx, execution("a", "e1"), nil))
	require.NoError(t, p.CheckAgeTrigger(ctx))
	assert.Empty(t, fn.notifications)

	fake.Advance(2 * time.Second)
	require.NoError(t, p.CheckAgeTrigger(ctx))
	require.Len(t, fn.notifications, 1)
}

func TestFlushRecordsDispatchedAndAcknowledgeMarksAcknowledged(t *testing.T) {
	fake := clock.NewFake(time.Now())
	repo := memory.New()
	fn := &fakeNotifier{available: true}
	p := New(repo.Reflexes(), fn, fake, 1, 60_000, nil)
	ctx := context.Background()

	require.NoError(t, p.Enqueue(ctx, execution("a", "e1"), nil))
	require.Len(t, fn.notifications, 1)
	batchID := fn.notifications[0].ID

	execs, err := repo.Reflexes().ListExecutionsByBatch(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, core.ResultDispatchedL1, execs[0].Result)

	count, err := p.AcknowledgeBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	execs, err = repo.Reflexes().ListExecutionsByBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, core.ResultL1Acknowledged, execs[0].Result)
}

func TestIsActiveReflectsNotifierAvailability(t *testing.T) {
	fake := clock.NewFake(time.Now())
	repo := memory.New()
	p := New(repo.Reflexes(), notifier.Noop{}, fake, 10, 60_000, nil)
	assert.False(t, p.IsActive())

	p2 := New(repo.Reflexes(), &fakeNotifier{available: true}, fake, 10, 60_000, nil)
	assert.True(t, p2.IsActive())
}
