package supabase

import (
	"context"
	"encoding/json"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type threadRow struct {
	ID              string `json:"id"`
	Creator         string `json:"creator"`
	Purpose         string `json:"purpose"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	Participants    []byte `json:"participants"`
	ParticipantKeys []byte `json:"participant_keys"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

type threadTable struct{ client *supa.Client }

func rowToThread(r threadRow) *core.Thread {
	t := &core.Thread{
		ID: r.ID, Creator: r.Creator, Purpose: r.Purpose, Title: r.Title, Status: core.ThreadStatus(r.Status),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(), UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
	var plist []string
	json.Unmarshal(r.Participants, &plist)
	t.Participants = make(map[string]bool, len(plist))
	for _, p := range plist {
		t.Participants[p] = true
	}
	var kmap map[string]string
	json.Unmarshal(r.ParticipantKeys, &kmap)
	t.ParticipantKeys = make(map[string][]byte, len(kmap))
	for k, v := range kmap {
		t.ParticipantKeys[k] = []byte(v)
	}
	return t
}

func threadToRow(t *core.Thread) threadRow {
	plist := make([]string, 0, len(t.Participants))
	for p := range t.Participants {
		plist = append(plist, p)
	}
	kmap := make(map[string]string, len(t.ParticipantKeys))
	for k, v := range t.ParticipantKeys {
		kmap[k] = string(v)
	}
	participants, _ := json.Marshal(plist)
	keys, _ := json.Marshal(kmap)
	return threadRow{
		ID: t.ID, Creator: t.Creator, Purpose: t.Purpose, Title: t.Title, Status: string(t.Status),
		Participants: participants, ParticipantKeys: keys, CreatedAt: t.CreatedAt.UnixMilli(), UpdatedAt: t.UpdatedAt.UnixMilli(),
	}
}

func (t *threadTable) Create(ctx context.Context, th *core.Thread) error {
	var result []threadRow
	_, err := t.client.From("threads").Insert(threadToRow(th), false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Duplicate, "supabase: failed to insert thread", err)
	}
	return nil
}

func (t *threadTable) Get(ctx context.Context, id string) (*core.Thread, error) {
	var rows []threadRow
	_, err := t.client.From("threads").Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query thread", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "thread not found")
	}
	return rowToThread(rows[0]), nil
}

func (t *threadTable) Update(ctx context.Context, th *core.Thread) error {
	var result []threadRow
	_, err := t.client.From("threads").Update(threadToRow(th), "", "").Eq("id", th.ID).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to update thread", err)
	}
	return nil
}

func (t *threadTable) ListByParticipant(ctx context.Context, clawID string) ([]*core.Thread, error) {
	var rows []threadRow
	_, err := t.client.From("threads").Select("*", "", false).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list threads", err)
	}
	var out []*core.Thread
	for _, r := range rows {
		th := rowToThread(r)
		if th.Participants[clawID] {
			out = append(out, th)
		}
	}
	return out, nil
}
