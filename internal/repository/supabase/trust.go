package supabase

import (
	"context"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type trustRow struct {
	From      string  `json:"from_claw"`
	To        string  `json:"to_claw"`
	Domain    string  `json:"domain"`
	Q         float64 `json:"q"`
	H         float64 `json:"h"`
	HSet      bool    `json:"h_set"`
	N         float64 `json:"n"`
	W         float64 `json:"w"`
	Composite float64 `json:"composite"`
	UpdatedAt int64   `json:"updated_at"`
}

type trustTable struct{ client *supa.Client }

func rowToTrust(r trustRow) *core.TrustScore {
	return &core.TrustScore{
		From: r.From, To: r.To, Domain: r.Domain, Q: r.Q, H: r.H, HSet: r.HSet, N: r.N, W: r.W,
		Composite: r.Composite, UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
}

func (t *trustTable) Get(ctx context.Context, from, to, domain string) (*core.TrustScore, error) {
	var rows []trustRow
	_, err := t.client.From("trust_scores").Select("*", "", false).Eq("from_claw", from).Eq("to_claw", to).Eq("domain", domain).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query trust score", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "trust score not found")
	}
	return rowToTrust(rows[0]), nil
}

func (t *trustTable) Upsert(ctx context.Context, ts *core.TrustScore) error {
	row := trustRow{From: ts.From, To: ts.To, Domain: ts.Domain, Q: ts.Q, H: ts.H, HSet: ts.HSet, N: ts.N, W: ts.W, Composite: ts.Composite, UpdatedAt: ts.UpdatedAt.UnixMilli()}
	var result []trustRow
	_, err := t.client.From("trust_scores").Insert(row, true, "from_claw,to_claw,domain", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to upsert trust score", err)
	}
	return nil
}

func (t *trustTable) ListFrom(ctx context.Context, from string) ([]*core.TrustScore, error) {
	return t.queryAll(ctx, "from_claw", from)
}

func (t *trustTable) ListTo(ctx context.Context, to string) ([]*core.TrustScore, error) {
	return t.queryAll(ctx, "to_claw", to)
}

func (t *trustTable) ListAll(ctx context.Context) ([]*core.TrustScore, error) {
	var rows []trustRow
	_, err := t.client.From("trust_scores").Select("*", "", false).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list all trust scores", err)
	}
	out := make([]*core.TrustScore, len(rows))
	for i, r := range rows {
		out[i] = rowToTrust(r)
	}
	return out, nil
}

func (t *trustTable) queryAll(ctx context.Context, column, value string) ([]*core.TrustScore, error) {
	var rows []trustRow
	_, err := t.client.From("trust_scores").Select("*", "", false).Eq(column, value).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query trust scores", err)
	}
	out := make([]*core.TrustScore, len(rows))
	for i, r := range rows {
		out[i] = rowToTrust(r)
	}
	return out, nil
}
