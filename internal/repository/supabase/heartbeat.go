package supabase

import (
	"context"
	"encoding/json"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type heartbeatRow struct {
	ID        string   `json:"id"`
	From      string   `json:"from_claw"`
	To        string   `json:"to_claw"`
	Interests []string `json:"interests"`
	Status    string   `json:"status,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

type friendModelRow struct {
	Owner           string  `json:"owner"`
	Friend          string  `json:"friend"`
	InterestWeights []byte  `json:"interest_weights"`
	LastHeartbeatAt int64   `json:"last_heartbeat_at"`
	HeartbeatCount  int64   `json:"heartbeat_count"`
}

type heartbeatTable struct{ client *supa.Client }

func (t *heartbeatTable) Record(ctx context.Context, h *core.Heartbeat) error {
	row := heartbeatRow{ID: h.ID, From: h.From, To: h.To, Interests: h.Interests, Status: h.Status, CreatedAt: h.CreatedAt.UnixMilli()}
	var result []heartbeatRow
	_, err := t.client.From("heartbeats").Insert(row, false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to record heartbeat", err)
	}
	return nil
}

func (t *heartbeatTable) GetFriendModel(ctx context.Context, owner, friend string) (*core.FriendModel, error) {
	var rows []friendModelRow
	_, err := t.client.From("friend_models").Select("*", "", false).Eq("owner", owner).Eq("friend", friend).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query friend model", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "friend model not found")
	}
	r := rows[0]
	m := &core.FriendModel{Owner: r.Owner, Friend: r.Friend, LastHeartbeatAt: time.UnixMilli(r.LastHeartbeatAt).UTC(), HeartbeatCount: r.HeartbeatCount}
	json.Unmarshal(r.InterestWeights, &m.InterestWeights)
	return m, nil
}

func (t *heartbeatTable) UpsertFriendModel(ctx context.Context, m *core.FriendModel) error {
	weights, _ := json.Marshal(m.InterestWeights)
	row := friendModelRow{Owner: m.Owner, Friend: m.Friend, InterestWeights: weights, LastHeartbeatAt: m.LastHeartbeatAt.UnixMilli(), HeartbeatCount: m.HeartbeatCount}
	var result []friendModelRow
	_, err := t.client.From("friend_models").Insert(row, true, "owner,friend", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to upsert friend model", err)
	}
	return nil
}
