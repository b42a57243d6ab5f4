package supabase

import (
	"context"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type friendshipRow struct {
	ID         string `json:"id"`
	Requester  string `json:"requester"`
	Accepter   string `json:"accepter"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
	AcceptedAt *int64 `json:"accepted_at,omitempty"`
}

type friendshipTable struct{ client *supa.Client }

func rowToFriendship(r friendshipRow) *core.Friendship {
	f := &core.Friendship{ID: r.ID, Requester: r.Requester, Accepter: r.Accepter, Status: core.FriendshipStatus(r.Status), CreatedAt: time.UnixMilli(r.CreatedAt).UTC()}
	if r.AcceptedAt != nil {
		t := time.UnixMilli(*r.AcceptedAt).UTC()
		f.AcceptedAt = &t
	}
	return f
}

func (t *friendshipTable) Create(ctx context.Context, f *core.Friendship) error {
	row := friendshipRow{ID: f.ID, Requester: f.Requester, Accepter: f.Accepter, Status: string(f.Status), CreatedAt: f.CreatedAt.UnixMilli()}
	if f.AcceptedAt != nil {
		ms := f.AcceptedAt.UnixMilli()
		row.AcceptedAt = &ms
	}
	var result []friendshipRow
	_, err := t.client.From("friendships").Insert(row, false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Duplicate, "supabase: failed to insert friendship", err)
	}
	return nil
}

func (t *friendshipTable) Get(ctx context.Context, id string) (*core.Friendship, error) {
	var rows []friendshipRow
	_, err := t.client.From("friendships").Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query friendship", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "friendship not found")
	}
	return rowToFriendship(rows[0]), nil
}

func (t *friendshipTable) GetByPair(ctx context.Context, a, b string) (*core.Friendship, error) {
	var rows []friendshipRow
	_, err := t.client.From("friendships").Select("*", "", false).Eq("requester", a).Eq("accepter", b).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query friendship by pair", err)
	}
	if len(rows) == 0 {
		_, err := t.client.From("friendships").Select("*", "", false).Eq("requester", b).Eq("accepter", a).ExecuteTo(&rows)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, "supabase: failed to query friendship by pair", err)
		}
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "friendship not found")
	}
	return rowToFriendship(rows[0]), nil
}

func (t *friendshipTable) UpdateStatus(ctx context.Context, id string, status core.FriendshipStatus) error {
	update := map[string]interface{}{"status": string(status)}
	if status == core.FriendshipAccepted {
		update["accepted_at"] = time.Now().UTC().UnixMilli()
	}
	var result []friendshipRow
	_, err := t.client.From("friendships").Update(update, "", "").Eq("id", id).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to update friendship status", err)
	}
	return nil
}

func (t *friendshipTable) ListByClaw(ctx context.Context, clawID string, status core.FriendshipStatus) ([]*core.Friendship, error) {
	var rows []friendshipRow
	_, err := t.client.From("friendships").Select("*", "", false).Eq("status", string(status)).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list friendships", err)
	}
	out := make([]*core.Friendship, 0, len(rows))
	for _, r := range rows {
		if r.Requester == clawID || r.Accepter == clawID {
			out = append(out, rowToFriendship(r))
		}
	}
	return out, nil
}
