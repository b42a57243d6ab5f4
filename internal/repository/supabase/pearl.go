package supabase

import (
	"context"
	"encoding/json"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type pearlRow struct {
	ID              string   `json:"id"`
	Owner           string   `json:"owner"`
	Type            string   `json:"type"`
	Trigger         string   `json:"trigger_text"`
	DomainTags      []string `json:"domain_tags"`
	Body            []byte   `json:"body"`
	Luster          float64  `json:"luster"`
	Shareability    string   `json:"shareability"`
	ShareConditions *string  `json:"share_conditions,omitempty"`
	Origin          string   `json:"origin"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

type endorsementRow struct {
	PearlID   string  `json:"pearl_id"`
	Endorser  string  `json:"endorser"`
	Score     float64 `json:"score"`
	Comment   string  `json:"comment"`
	CreatedAt int64   `json:"created_at"`
}

type pearlShareRow struct {
	FromClaw string `json:"from_claw"`
	ToClaw   string `json:"to_claw"`
	PearlID  string `json:"pearl_id"`
	AtUnixMs int64  `json:"at_unix_ms"`
}

type pearlTable struct{ client *supa.Client }

func rowToPearl(r pearlRow) *core.Pearl {
	p := &core.Pearl{
		ID: r.ID, Owner: r.Owner, Type: r.Type, Trigger: r.Trigger, DomainTags: r.DomainTags, Body: r.Body,
		Luster: r.Luster, Shareability: core.Shareability(r.Shareability), Origin: core.PearlOrigin(r.Origin),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(), UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.ShareConditions != nil {
		var sc core.ShareConditions
		if json.Unmarshal([]byte(*r.ShareConditions), &sc) == nil {
			p.ShareConditions = &sc
		}
	}
	return p
}

func pearlToRow(p *core.Pearl) pearlRow {
	row := pearlRow{
		ID: p.ID, Owner: p.Owner, Type: p.Type, Trigger: p.Trigger, DomainTags: p.DomainTags, Body: p.Body,
		Luster: p.Luster, Shareability: string(p.Shareability), Origin: string(p.Origin),
		CreatedAt: p.CreatedAt.UnixMilli(), UpdatedAt: p.UpdatedAt.UnixMilli(),
	}
	if p.ShareConditions != nil {
		b, _ := json.Marshal(p.ShareConditions)
		s := string(b)
		row.ShareConditions = &s
	}
	return row
}

func (t *pearlTable) Create(ctx context.Context, p *core.Pearl) error {
	var result []pearlRow
	_, err := t.client.From("pearls").Insert(pearlToRow(p), false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Duplicate, "supabase: failed to insert pearl", err)
	}
	return nil
}

func (t *pearlTable) Get(ctx context.Context, id string) (*core.Pearl, error) {
	var rows []pearlRow
	_, err := t.client.From("pearls").Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query pearl", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "pearl not found")
	}
	return rowToPearl(rows[0]), nil
}

func (t *pearlTable) Update(ctx context.Context, p *core.Pearl) error {
	var result []pearlRow
	_, err := t.client.From("pearls").Update(pearlToRow(p), "", "").Eq("id", p.ID).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to update pearl", err)
	}
	return nil
}

func (t *pearlTable) ListByOwner(ctx context.Context, owner string) ([]*core.Pearl, error) {
	var rows []pearlRow
	_, err := t.client.From("pearls").Select("*", "", false).Eq("owner", owner).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list pearls by owner", err)
	}
	out := make([]*core.Pearl, len(rows))
	for i, r := range rows {
		out[i] = rowToPearl(r)
	}
	return out, nil
}

func (t *pearlTable) ListByDomainTag(ctx context.Context, tag string) ([]*core.Pearl, error) {
	var rows []pearlRow
	_, err := t.client.From("pearls").Select("*", "", false).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list pearls", err)
	}
	var out []*core.Pearl
	for _, r := range rows {
		for _, dt := range r.DomainTags {
			if dt == tag {
				out = append(out, rowToPearl(r))
				break
			}
		}
	}
	return out, nil
}

func (t *pearlTable) AddEndorsement(ctx context.Context, e *core.Endorsement) error {
	row := endorsementRow{PearlID: e.PearlID, Endorser: e.Endorser, Score: e.Score, Comment: e.Comment, CreatedAt: e.CreatedAt.UnixMilli()}
	var result []endorsementRow
	_, err := t.client.From("endorsements").Insert(row, false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Duplicate, "supabase: failed to insert endorsement", err)
	}
	return nil
}

func (t *pearlTable) GetEndorsement(ctx context.Context, pearlID, endorser string) (*core.Endorsement, error) {
	var rows []endorsementRow
	_, err := t.client.From("endorsements").Select("*", "", false).Eq("pearl_id", pearlID).Eq("endorser", endorser).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query endorsement", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "endorsement not found")
	}
	r := rows[0]
	return &core.Endorsement{PearlID: r.PearlID, Endorser: r.Endorser, Score: r.Score, Comment: r.Comment, CreatedAt: time.UnixMilli(r.CreatedAt).UTC()}, nil
}

func (t *pearlTable) ListEndorsements(ctx context.Context, pearlID string) ([]*core.Endorsement, error) {
	var rows []endorsementRow
	_, err := t.client.From("endorsements").Select("*", "", false).Eq("pearl_id", pearlID).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list endorsements", err)
	}
	out := make([]*core.Endorsement, len(rows))
	for i, r := range rows {
		out[i] = &core.Endorsement{PearlID: r.PearlID, Endorser: r.Endorser, Score: r.Score, Comment: r.Comment, CreatedAt: time.UnixMilli(r.CreatedAt).UTC()}
	}
	return out, nil
}

func (t *pearlTable) CountSharedSince(ctx context.Context, from, to string, sinceUnixMs int64) (int, error) {
	var rows []pearlShareRow
	_, err := t.client.From("pearl_shares").Select("*", "", false).Eq("from_claw", from).Eq("to_claw", to).ExecuteTo(&rows)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "supabase: failed to count shared pearls", err)
	}
	count := 0
	for _, r := range rows {
		if r.AtUnixMs >= sinceUnixMs {
			count++
		}
	}
	return count, nil
}

func (t *pearlTable) RecordShare(ctx context.Context, from, to, pearlID string, atUnixMs int64) error {
	row := pearlShareRow{FromClaw: from, ToClaw: to, PearlID: pearlID, AtUnixMs: atUnixMs}
	var result []pearlShareRow
	_, err := t.client.From("pearl_shares").Insert(row, false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to record pearl share", err)
	}
	return nil
}

func (t *pearlTable) HasSharedWith(ctx context.Context, pearlID, friend string) (bool, error) {
	var rows []pearlShareRow
	_, err := t.client.From("pearl_shares").Select("pearl_id", "", false).Eq("pearl_id", pearlID).Eq("to_claw", friend).ExecuteTo(&rows)
	if err != nil {
		return false, errs.Wrap(errs.Internal, "supabase: failed to check prior pearl share", err)
	}
	return len(rows) > 0, nil
}
