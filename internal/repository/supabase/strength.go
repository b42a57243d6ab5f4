package supabase

import (
	"context"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type strengthRow struct {
	FromClaw     string  `json:"from_claw"`
	ToClaw       string  `json:"to_claw"`
	Strength     float64 `json:"strength"`
	LastBoostAt  int64   `json:"last_boost_at"`
	CurrentLayer string  `json:"current_layer"`
}

type strengthTable struct{ client *supa.Client }

func rowToStrength(r strengthRow) *core.RelationshipStrength {
	return &core.RelationshipStrength{
		FromClaw: r.FromClaw, ToClaw: r.ToClaw, Strength: r.Strength,
		LastBoostAt: time.UnixMilli(r.LastBoostAt).UTC(), CurrentLayer: core.DunbarLayer(r.CurrentLayer),
	}
}

func (t *strengthTable) Get(ctx context.Context, from, to string) (*core.RelationshipStrength, error) {
	var rows []strengthRow
	_, err := t.client.From("relationship_strengths").Select("*", "", false).Eq("from_claw", from).Eq("to_claw", to).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query relationship strength", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "relationship strength not found")
	}
	return rowToStrength(rows[0]), nil
}

func (t *strengthTable) Upsert(ctx context.Context, r *core.RelationshipStrength) error {
	row := strengthRow{FromClaw: r.FromClaw, ToClaw: r.ToClaw, Strength: r.Strength, LastBoostAt: r.LastBoostAt.UnixMilli(), CurrentLayer: string(r.CurrentLayer)}
	var result []strengthRow
	_, err := t.client.From("relationship_strengths").Insert(row, true, "from_claw,to_claw", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to upsert relationship strength", err)
	}
	return nil
}

func (t *strengthTable) ListFrom(ctx context.Context, from string) ([]*core.RelationshipStrength, error) {
	var rows []strengthRow
	_, err := t.client.From("relationship_strengths").Select("*", "", false).Eq("from_claw", from).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list relationship strengths", err)
	}
	out := make([]*core.RelationshipStrength, len(rows))
	for i, r := range rows {
		out[i] = rowToStrength(r)
	}
	return out, nil
}
