package supabase

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type reflexRow struct {
	ID            string `json:"id"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	BehaviorTag   string `json:"behavior_tag"`
	TriggerLayer  int    `json:"trigger_layer"`
	TriggerConfig []byte `json:"trigger_config"`
	Enabled       bool   `json:"enabled"`
	Confidence    float64 `json:"confidence"`
	Source        string `json:"source"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
}

type executionRow struct {
	ID        string `json:"id"`
	ReflexID  string `json:"reflex_id"`
	Owner     string `json:"owner"`
	EventType string `json:"event_type"`
	Payload   []byte `json:"payload,omitempty"`
	Result    string `json:"result"`
	Details   []byte `json:"details,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type reflexTable struct{ client *supa.Client }

func rowToReflex(r reflexRow) *core.Reflex {
	return &core.Reflex{
		ID: r.ID, Owner: r.Owner, Name: r.Name, BehaviorTag: r.BehaviorTag, TriggerLayer: core.TriggerLayer(r.TriggerLayer),
		TriggerConfig: r.TriggerConfig, Enabled: r.Enabled, Confidence: r.Confidence, Source: core.ReflexSource(r.Source),
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(), UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
}

func reflexToRow(r *core.Reflex) reflexRow {
	return reflexRow{
		ID: r.ID, Owner: r.Owner, Name: r.Name, BehaviorTag: r.BehaviorTag, TriggerLayer: int(r.TriggerLayer),
		TriggerConfig: r.TriggerConfig, Enabled: r.Enabled, Confidence: r.Confidence, Source: string(r.Source),
		CreatedAt: r.CreatedAt.UnixMilli(), UpdatedAt: r.UpdatedAt.UnixMilli(),
	}
}

func (t *reflexTable) Create(ctx context.Context, r *core.Reflex) error {
	var result []reflexRow
	_, err := t.client.From("reflexes").Insert(reflexToRow(r), false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.DuplicateName, "supabase: failed to insert reflex", err)
	}
	return nil
}

func (t *reflexTable) Get(ctx context.Context, id string) (*core.Reflex, error) {
	var rows []reflexRow
	_, err := t.client.From("reflexes").Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query reflex", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "reflex not found")
	}
	return rowToReflex(rows[0]), nil
}

func (t *reflexTable) GetByOwnerAndName(ctx context.Context, owner, name string) (*core.Reflex, error) {
	var rows []reflexRow
	_, err := t.client.From("reflexes").Select("*", "", false).Eq("owner", owner).Eq("name", name).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query reflex by name", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "reflex not found")
	}
	return rowToReflex(rows[0]), nil
}

func (t *reflexTable) Update(ctx context.Context, r *core.Reflex) error {
	var result []reflexRow
	_, err := t.client.From("reflexes").Update(reflexToRow(r), "", "").Eq("id", r.ID).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to update reflex", err)
	}
	return nil
}

func (t *reflexTable) ListByOwner(ctx context.Context, owner string) ([]*core.Reflex, error) {
	var rows []reflexRow
	_, err := t.client.From("reflexes").Select("*", "", false).Eq("owner", owner).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list reflexes", err)
	}
	out := make([]*core.Reflex, len(rows))
	for i, r := range rows {
		out[i] = rowToReflex(r)
	}
	return out, nil
}

func (t *reflexTable) ListEnabledByLayer(ctx context.Context, layer core.TriggerLayer) ([]*core.Reflex, error) {
	var rows []reflexRow
	_, err := t.client.From("reflexes").Select("*", "", false).Eq("enabled", "true").Eq("trigger_layer", strconv.Itoa(int(layer))).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list enabled reflexes", err)
	}
	out := make([]*core.Reflex, len(rows))
	for i, r := range rows {
		out[i] = rowToReflex(r)
	}
	return out, nil
}

func rowToExecution(r executionRow) *core.ReflexExecution {
	e := &core.ReflexExecution{
		ID: r.ID, ReflexID: r.ReflexID, Owner: r.Owner, EventType: r.EventType, Result: core.ExecutionResult(r.Result),
		BatchID: r.BatchID, CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
	if len(r.Payload) > 0 {
		json.Unmarshal(r.Payload, &e.Payload)
	}
	if len(r.Details) > 0 {
		json.Unmarshal(r.Details, &e.Details)
	}
	return e
}

func (t *reflexTable) RecordExecution(ctx context.Context, e *core.ReflexExecution) error {
	row := executionRow{ID: e.ID, ReflexID: e.ReflexID, Owner: e.Owner, EventType: e.EventType, Result: string(e.Result), BatchID: e.BatchID, CreatedAt: e.CreatedAt.UnixMilli()}
	if e.Payload != nil {
		row.Payload, _ = json.Marshal(e.Payload)
	}
	if e.Details != nil {
		row.Details, _ = json.Marshal(e.Details)
	}
	var result []executionRow
	_, err := t.client.From("reflex_executions").Insert(row, false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to record reflex execution", err)
	}
	return nil
}

func (t *reflexTable) UpdateExecutionResult(ctx context.Context, executionID string, result core.ExecutionResult) error {
	var rows []executionRow
	_, err := t.client.From("reflex_executions").Update(map[string]interface{}{"result": string(result)}, "", "").Eq("id", executionID).ExecuteTo(&rows)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to update execution result", err)
	}
	return nil
}

func (t *reflexTable) ListExecutions(ctx context.Context, owner string, limit int) ([]*core.ReflexExecution, error) {
	query := t.client.From("reflex_executions").Select("*", "", false).Eq("owner", owner).Order("created_at", nil)
	if limit > 0 {
		query = query.Limit(limit, "")
	}
	var rows []executionRow
	if _, err := query.ExecuteTo(&rows); err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list reflex executions", err)
	}
	out := make([]*core.ReflexExecution, len(rows))
	for i, r := range rows {
		out[i] = rowToExecution(r)
	}
	return out, nil
}

func (t *reflexTable) ListExecutionsByBatch(ctx context.Context, batchID string) ([]*core.ReflexExecution, error) {
	var rows []executionRow
	_, err := t.client.From("reflex_executions").Select("*", "", false).Eq("batch_id", batchID).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list executions by batch", err)
	}
	out := make([]*core.ReflexExecution, len(rows))
	for i, r := range rows {
		out[i] = rowToExecution(r)
	}
	return out, nil
}

func (t *reflexTable) CountExecutionsSince(ctx context.Context, owner string, sinceUnixMs int64) (int, error) {
	var rows []executionRow
	_, err := t.client.From("reflex_executions").Select("*", "", false).Eq("owner", owner).Eq("result", "executed").Gte("created_at", strconv.FormatInt(sinceUnixMs, 10)).ExecuteTo(&rows)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "supabase: failed to count executions", err)
	}
	return len(rows), nil
}
