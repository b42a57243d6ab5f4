package thread

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
)

func newHarness() (*Service, *memory.Repository) {
	repo := memory.New()
	bus := events.New(nil)
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(repo.Threads(), bus, fake), repo
}

func TestCreateAddsCreatorAndInitialParticipants(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	th, err := svc.Create(ctx, "t1", "a", "planning", "launch", []byte("key-a"), map[string][]byte{"b": []byte("key-b")})
	require.NoError(t, err)
	assert.True(t, th.Participants["a"])
	assert.True(t, th.Participants["b"])
	assert.Len(t, th.Participants, 2)
}

func TestCreateRejectsEmptyParticipantSet(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()

	_, err := svc.Create(ctx, "t1", "a", "planning", "launch", []byte("key-a"), nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ValidationError))
}

func TestAddParticipantRequiresCreator(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()
	_, err := svc.Create(ctx, "t1", "a", "planning", "launch", []byte("key-a"), map[string][]byte{"b": []byte("key-b")})
	require.NoError(t, err)

	err = svc.AddParticipant(ctx, "b", "t1", "c", []byte("key-c"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))

	require.NoError(t, svc.AddParticipant(ctx, "a", "t1", "c", []byte("key-c")))
}

func TestCreatorCanNeverBeRemoved(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()
	_, err := svc.Create(ctx, "t1", "a", "planning", "launch", []byte("key-a"), map[string][]byte{"b": []byte("key-b")})
	require.NoError(t, err)

	err = svc.RemoveParticipant(ctx, "a", "t1", "a")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))

	err = svc.RemoveParticipant(ctx, "b", "t1", "a")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))

	require.NoError(t, svc.SetStatus(ctx, "a", "t1", core.ThreadArchived))
	err = svc.RemoveParticipant(ctx, "a", "t1", "a")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))
}

func TestSetStatusRequiresCreatorAndForwardOnly(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()
	_, err := svc.Create(ctx, "t1", "a", "planning", "launch", []byte("key-a"), map[string][]byte{"b": []byte("key-b")})
	require.NoError(t, err)

	err = svc.SetStatus(ctx, "b", "t1", core.ThreadCompleted)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))

	require.NoError(t, svc.SetStatus(ctx, "a", "t1", core.ThreadCompleted))

	err = svc.SetStatus(ctx, "a", "t1", core.ThreadActive)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ValidationError))

	require.NoError(t, svc.SetStatus(ctx, "a", "t1", core.ThreadArchived))
}

func TestContributeEmitsThreadEvent(t *testing.T) {
	repo := memory.New()
	bus := events.New(nil)
	fake := clock.NewFake(time.Now())
	svc := New(repo.Threads(), bus, fake)
	ctx := context.Background()

	_, err := svc.Create(ctx, "t1", "a", "planning", "launch", []byte("key-a"), map[string][]byte{"b": []byte("key-b")})
	require.NoError(t, err)

	var seen int
	bus.Subscribe("thread.contribution_added", func(ev events.Event) { seen++ })

	require.NoError(t, svc.Contribute(ctx, "a", "t1"))
	assert.Equal(t, 1, seen)

	err = svc.Contribute(ctx, "outsider", "t1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))
}

func TestContributeRejectsNonActiveThread(t *testing.T) {
	svc, _ := newHarness()
	ctx := context.Background()
	_, err := svc.Create(ctx, "t1", "a", "planning", "launch", []byte("key-a"), map[string][]byte{"b": []byte("key-b")})
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(ctx, "a", "t1", core.ThreadCompleted))

	err = svc.Contribute(ctx, "a", "t1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ValidationError))
}
