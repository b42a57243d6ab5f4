package message

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

func acceptFriendship(t *testing.T, repo *memory.Repository, a, b string) {
	t.Helper()
	ctx := context.Background()
	f := &core.Friendship{ID: a + "-" + b, Requester: a, Accepter: b, Status: core.FriendshipAccepted, CreatedAt: time.Now()}
	require.NoError(t, repo.Friendships().Create(ctx, f))
}

func newHarness(t *testing.T, resolver CircleResolver) (*Service, *memory.Repository) {
	t.Helper()
	repo := memory.New()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := events.New(nil)
	return New(repo.Messages(), repo.Friendships(), repo.Claws(), bus, fake, resolver), repo
}

func TestSendDirectRequiresAcceptedFriendship(t *testing.T) {
	svc, _ := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"b"}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidRecipient))
}

func TestSendDirectFansOutAndAssignsSequence(t *testing.T) {
	svc, repo := newHarness(t, nil)
	ctx := context.Background()
	acceptFriendship(t, repo, "a", "b")

	m, entries, err := svc.Send(ctx, SendRequest{
		Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"b"},
		Blocks: []core.Block{{Type: "text", Text: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Recipient)
	assert.Equal(t, int64(1), entries[0].Seq)

	m2, entries2, err := svc.Send(ctx, SendRequest{
		Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"b"},
		Blocks: []core.Block{{Type: "text", Text: "again"}},
	})
	require.NoError(t, err)
	require.Len(t, entries2, 1)
	assert.Equal(t, int64(2), entries2[0].Seq)
	assert.NotEqual(t, m.ID, m2.ID)
}

func TestSendRejectsSelfDirect(t *testing.T) {
	svc, _ := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"a"}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidRecipient))
}

func TestSendCirclesRequiresResolverAndNonEmptyCircles(t *testing.T) {
	svc, _ := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityCircles})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.MissingCircles))

	_, _, err = svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityCircles, Circles: []string{"close"}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.MissingCircles))
}

func TestSendPublicReachesAllAcceptedFriends(t *testing.T) {
	svc, repo := newHarness(t, nil)
	ctx := context.Background()
	acceptFriendship(t, repo, "a", "b")
	acceptFriendship(t, repo, "c", "a")

	_, entries, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityPublic})
	require.NoError(t, err)
	var recipients []string
	for _, e := range entries {
		recipients = append(recipients, e.Recipient)
	}
	assert.ElementsMatch(t, []string{"b", "c"}, recipients)
}

func TestThreadFlattensInCreationOrder(t *testing.T) {
	svc, repo := newHarness(t, nil)
	ctx := context.Background()
	acceptFriendship(t, repo, "a", "b")
	fake := svc.clock.(*clock.Fake)

	root, _, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"b"}})
	require.NoError(t, err)

	fake.Advance(time.Second)
	reply1, _, err := svc.Send(ctx, SendRequest{Sender: "b", Visibility: core.VisibilityDirect, DirectTo: []string{"a"}, ReplyToID: root.ID})
	require.NoError(t, err)

	fake.Advance(time.Second)
	reply2, _, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"b"}, ReplyToID: reply1.ID})
	require.NoError(t, err)

	thread, err := svc.Thread(ctx, "a", root.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, root.ID, thread[0].ID)
	assert.Equal(t, reply1.ID, thread[1].ID)
	assert.Equal(t, reply2.ID, thread[2].ID)
	assert.Equal(t, root.ID, reply2.ThreadID)
}

func TestEditOnlyBySender(t *testing.T) {
	svc, repo := newHarness(t, nil)
	ctx := context.Background()
	acceptFriendship(t, repo, "a", "b")

	m, _, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityDirect, DirectTo: []string{"b"}})
	require.NoError(t, err)

	_, err = svc.Edit(ctx, "b", m.ID, []core.Block{{Type: "text", Text: "hacked"}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Forbidden))

	edited, err := svc.Edit(ctx, "a", m.ID, []core.Block{{Type: "text", Text: "fixed"}})
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	require.NotNil(t, edited.EditedAt)
}

func TestEditAndDeleteEmitPerRecipientEvents(t *testing.T) {
	svc, repo := newHarness(t, nil)
	ctx := context.Background()
	acceptFriendship(t, repo, "a", "b")
	acceptFriendship(t, repo, "a", "c")

	m, entries, err := svc.Send(ctx, SendRequest{Sender: "a", Visibility: core.VisibilityPublic})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var edited, deleted []string
	svc.bus.Subscribe("message.edited", func(ev events.Event) { edited = append(edited, ev.Subject) })
	svc.bus.Subscribe("message.deleted", func(ev events.Event) { deleted = append(deleted, ev.Subject) })

	_, err = svc.Edit(ctx, "a", m.ID, []core.Block{{Type: "text", Text: "fixed"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, edited)

	require.NoError(t, svc.Delete(ctx, "a", m.ID))
	assert.ElementsMatch(t, []string{"b", "c"}, deleted)
}
