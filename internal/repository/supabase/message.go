package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
)

type messageRow struct {
	ID             string   `json:"id"`
	Sender         string   `json:"sender"`
	Blocks         []byte   `json:"blocks"`
	Visibility     string   `json:"visibility"`
	Circles        []string `json:"circles,omitempty"`
	ContentWarning string   `json:"content_warning,omitempty"`
	ReplyToID      string   `json:"reply_to_id,omitempty"`
	ThreadID       string   `json:"thread_id,omitempty"`
	Edited         bool     `json:"edited"`
	CreatedAt      int64    `json:"created_at"`
	EditedAt       *int64   `json:"edited_at,omitempty"`
}

type inboxEntryRow struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	MessageID string `json:"message_id"`
	Seq       int64  `json:"seq"`
	CreatedAt int64  `json:"created_at"`
	Read      bool   `json:"read"`
}

type messageTable struct{ client *supa.Client }

func rowToMessage(r messageRow) *core.Message {
	m := &core.Message{
		ID: r.ID, Sender: r.Sender, Visibility: core.Visibility(r.Visibility), Circles: r.Circles,
		ContentWarning: r.ContentWarning, ReplyToID: r.ReplyToID, ThreadID: r.ThreadID, Edited: r.Edited,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
	json.Unmarshal(r.Blocks, &m.Blocks)
	if r.EditedAt != nil {
		t := time.UnixMilli(*r.EditedAt).UTC()
		m.EditedAt = &t
	}
	return m
}

func messageToRow(m *core.Message) messageRow {
	blocks, _ := json.Marshal(m.Blocks)
	row := messageRow{
		ID: m.ID, Sender: m.Sender, Blocks: blocks, Visibility: string(m.Visibility), Circles: m.Circles,
		ContentWarning: m.ContentWarning, ReplyToID: m.ReplyToID, ThreadID: m.ThreadID, Edited: m.Edited,
		CreatedAt: m.CreatedAt.UnixMilli(),
	}
	if m.EditedAt != nil {
		ms := m.EditedAt.UnixMilli()
		row.EditedAt = &ms
	}
	return row
}

func (t *messageTable) Create(ctx context.Context, m *core.Message) error {
	var result []messageRow
	_, err := t.client.From("messages").Insert(messageToRow(m), false, "", "", "").ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Duplicate, "supabase: failed to insert message", err)
	}
	return nil
}

func (t *messageTable) Get(ctx context.Context, id string) (*core.Message, error) {
	var rows []messageRow
	_, err := t.client.From("messages").Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to query message", err)
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.NotFound, "message not found")
	}
	return rowToMessage(rows[0]), nil
}

func (t *messageTable) Update(ctx context.Context, m *core.Message) error {
	var result []messageRow
	_, err := t.client.From("messages").Update(messageToRow(m), "", "").Eq("id", m.ID).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to update message", err)
	}
	return nil
}

func (t *messageTable) Delete(ctx context.Context, id string) error {
	var result []messageRow
	_, err := t.client.From("messages").Delete("", "").Eq("id", id).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to delete message", err)
	}
	return nil
}

func (t *messageTable) ListByThread(ctx context.Context, threadID string) ([]*core.Message, error) {
	var rows []messageRow
	_, err := t.client.From("messages").Select("*", "", false).Eq("thread_id", threadID).Order("created_at", nil).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list thread messages", err)
	}
	out := make([]*core.Message, len(rows))
	for i, r := range rows {
		out[i] = rowToMessage(r)
	}
	return out, nil
}

// FanOut is not atomic across the two tables on this backend: Supabase's
// REST surface offers no cross-statement transaction, so the message row
// commits first and each inbox entry is inserted individually. A failure
// partway through leaves a message with partial delivery — the SQLite
// backend is the one to reach for where FanOut atomicity matters (Design
// Notes "Dual repository implementations").
func (t *messageTable) FanOut(ctx context.Context, m *core.Message, recipients []string) ([]*core.InboxEntry, error) {
	if err := t.Create(ctx, m); err != nil {
		return nil, err
	}
	entries := make([]*core.InboxEntry, 0, len(recipients))
	for _, recipient := range recipients {
		seq, err := t.nextSeq(ctx, recipient)
		if err != nil {
			return nil, err
		}
		entry := &core.InboxEntry{ID: fmt.Sprintf("%s-%s", m.ID, recipient), Recipient: recipient, MessageID: m.ID, Seq: seq, CreatedAt: m.CreatedAt}
		row := inboxEntryRow{ID: entry.ID, Recipient: entry.Recipient, MessageID: entry.MessageID, Seq: entry.Seq, CreatedAt: entry.CreatedAt.UnixMilli()}
		var result []inboxEntryRow
		if _, err := t.client.From("inbox_entries").Insert(row, false, "", "", "").ExecuteTo(&result); err != nil {
			return nil, errs.Wrap(errs.Internal, "supabase: failed to insert inbox entry", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (t *messageTable) nextSeq(ctx context.Context, recipient string) (int64, error) {
	var rows []inboxEntryRow
	_, err := t.client.From("inbox_entries").Select("seq", "", false).Eq("recipient", recipient).ExecuteTo(&rows)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "supabase: failed to read max inbox sequence", err)
	}
	var max int64
	for _, r := range rows {
		if r.Seq > max {
			max = r.Seq
		}
	}
	return max + 1, nil
}

func (t *messageTable) NextSeq(ctx context.Context, recipient string) (int64, error) {
	return t.nextSeq(ctx, recipient)
}

func (t *messageTable) ListInbox(ctx context.Context, recipient string, sinceSeq int64, limit int) ([]*core.InboxEntry, error) {
	query := t.client.From("inbox_entries").Select("*", "", false).Eq("recipient", recipient).Gt("seq", strconv.FormatInt(sinceSeq, 10)).Order("seq", nil)
	if limit > 0 {
		query = query.Limit(limit, "")
	}
	var rows []inboxEntryRow
	if _, err := query.ExecuteTo(&rows); err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list inbox", err)
	}
	out := make([]*core.InboxEntry, len(rows))
	for i, r := range rows {
		out[i] = &core.InboxEntry{ID: r.ID, Recipient: r.Recipient, MessageID: r.MessageID, Seq: r.Seq, CreatedAt: time.UnixMilli(r.CreatedAt).UTC(), Read: r.Read}
	}
	return out, nil
}

func (t *messageTable) MarkRead(ctx context.Context, inboxEntryID string) error {
	var result []inboxEntryRow
	_, err := t.client.From("inbox_entries").Update(map[string]interface{}{"read": true}, "", "").Eq("id", inboxEntryID).ExecuteTo(&result)
	if err != nil {
		return errs.Wrap(errs.Internal, "supabase: failed to mark inbox entry read", err)
	}
	return nil
}

func (t *messageTable) ListRecipients(ctx context.Context, messageID string) ([]string, error) {
	var rows []inboxEntryRow
	_, err := t.client.From("inbox_entries").Select("recipient", "", false).Eq("message_id", messageID).ExecuteTo(&rows)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "supabase: failed to list message recipients", err)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Recipient
	}
	return out, nil
}
