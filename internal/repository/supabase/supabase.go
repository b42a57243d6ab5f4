// Package supabase is the hosted-Postgres Repository backend, built on the
// supabase-go client in the shape of the teacher's internal/database's
// SupabaseClient: table-scoped structs manipulated through
// client.From(table).Select/Insert/Update/Eq/ExecuteTo. Unlike the native
// SQL transactions available to the sqlite backend, multi-row writes here
// are a plain sequence of per-table calls, and a failure partway through
// is not undone (Design
// Notes "Dual repository implementations": "the two backends share no code
// and diverge in transaction semantics").
package supabase

import (
	"context"
	"fmt"
	"os"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

// Repository is the Supabase-backed Repository implementation.
type Repository struct {
	client *supa.Client

	claws       *clawTable
	friendships *friendshipTable
	strengths   *strengthTable
	trust       *trustTable
	pearls      *pearlTable
	messages    *messageTable
	reflexes    *reflexTable
	heartbeats  *heartbeatTable
	threads     *threadTable
}

// New connects to Supabase using SUPABASE_URL and SUPABASE_SERVICE_KEY.
func New() (*Repository, error) {
	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_KEY")
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase: SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}
	client, err := supa.NewClient(url, key, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: failed to create client: %w", err)
	}
	r := &Repository{client: client}
	r.claws = &clawTable{client: client}
	r.friendships = &friendshipTable{client: client}
	r.strengths = &strengthTable{client: client}
	r.trust = &trustTable{client: client}
	r.pearls = &pearlTable{client: client}
	r.messages = &messageTable{client: client}
	r.reflexes = &reflexTable{client: client}
	r.heartbeats = &heartbeatTable{client: client}
	r.threads = &threadTable{client: client}
	return r, nil
}

func (r *Repository) Claws() repository.Claws                               { return r.claws }
func (r *Repository) Friendships() repository.Friendships                   { return r.friendships }
func (r *Repository) RelationshipStrengths() repository.RelationshipStrengths { return r.strengths }
func (r *Repository) TrustScores() repository.TrustScores                   { return r.trust }
func (r *Repository) Pearls() repository.Pearls                             { return r.pearls }
func (r *Repository) Messages() repository.Messages                         { return r.messages }
func (r *Repository) Reflexes() repository.Reflexes                         { return r.reflexes }
func (r *Repository) Heartbeats() repository.Heartbeats                     { return r.heartbeats }
func (r *Repository) Threads() repository.Threads                           { return r.threads }
func (r *Repository) Close() error                                          { return nil }

// clawRow is the wire shape of the claws table.
type clawRow struct {
	ID           string    `json:"id"`
	PublicKey    string    `json:"public_key"`
	DisplayName  string    `json:"display_name"`
	Bio          string    `json:"bio"`
	Tags         []string  `json:"tags"`
	Status       string    `json:"status"`
	Discoverable bool      `json:"discoverable"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type clawTable struct{ client *supa.Client }

func (t *clawTable) Create(ctx context.Context, c *core.Claw) error {
	row := clawRow{ID: c.ID, PublicKey: string(c.PublicKey), DisplayName: c.DisplayName, Bio: c.Bio, Tags: c.Tags, Status: string(c.Status), Discoverable: c.Discoverable, LastSeenAt: c.LastSeenAt, CreatedAt: c.CreatedAt}
	var result []clawRow
	_, err := t.client.From("claws").Insert(row, false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to insert claw", err)
	}
	return nil
}

func (t *clawTable) Get(ctx context.Context, id string) (*core.Claw, error) {
	var rows []clawRow
	_, err := t.client.From("claws").Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query claw", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "claw not found")
	}
	return rowToClaw(rows[0]), nil
}

func (t *clawTable) UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	var result []clawRow
	_, err := t.client.From("claws").Update(map[string]interface{}{"last_seen_at": seenAt}, "", "").Eq("id", id).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to update last_seen_at", err)
	}
	return nil
}

func (t *clawTable) List(ctx context.Context) ([]*core.Claw, error) {
	var rows []clawRow
	_, err := t.client.From("claws").Select("*", "", false).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list claws", err)
	}
	out := make([]*core.Claw, len(rows))
	for i, r := range rows {
		out[i] = rowToClaw(r)
	}
	return out, nil
}

func rowToClaw(r clawRow) *core.Claw {
	return &core.Claw{
		ID: r.ID, PublicKey: []byte(r.PublicKey), DisplayName: r.DisplayName, Bio: r.Bio, Tags: r.Tags,
		Status: core.ClawStatus(r.Status), Discoverable: r.Discoverable, LastSeenAt: r.LastSeenAt, CreatedAt: r.CreatedAt,
	}
}

// friendshipTable, strengthTable, trustTable, pearlTable, messageTable,
// reflexTable, heartbeatTable, threadTable follow the same
// From(table)/Select/Insert/Update/Eq/ExecuteTo pattern as clawTable above;
// each is implemented in its own file to keep per-entity wire shapes
// separate, matching the teacher's one-struct-per-table convention.
