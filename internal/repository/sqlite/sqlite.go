// Package sqlite is the embedded-database Repository backend, grounded on
// the teacher's internal/reputation/wallet.go sql.Open("sqlite", dbPath)
// pattern. Message fan-out (the message row plus every inbox entry) and
// inbox sequence allocation run inside a database/sql transaction; every
// other write, including trust upserts and reflex creation, is a single
// statement, and no transaction spans several calls.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/errs"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS claws (
	id TEXT PRIMARY KEY,
	public_key BLOB NOT NULL,
	display_name TEXT NOT NULL,
	bio TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL,
	discoverable INTEGER NOT NULL,
	last_seen_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS friendships (
	id TEXT PRIMARY KEY,
	requester TEXT NOT NULL,
	accepter TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	accepted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_friendships_requester ON friendships(requester);
CREATE INDEX IF NOT EXISTS idx_friendships_accepter ON friendships(accepter);

CREATE TABLE IF NOT EXISTS relationship_strengths (
	from_claw TEXT NOT NULL,
	to_claw TEXT NOT NULL,
	strength REAL NOT NULL,
	last_boost_at INTEGER NOT NULL,
	current_layer TEXT NOT NULL,
	PRIMARY KEY (from_claw, to_claw)
);

CREATE TABLE IF NOT EXISTS trust_scores (
	from_claw TEXT NOT NULL,
	to_claw TEXT NOT NULL,
	domain TEXT NOT NULL,
	q REAL NOT NULL,
	h REAL NOT NULL,
	h_set INTEGER NOT NULL,
	n REAL NOT NULL,
	w REAL NOT NULL,
	composite REAL NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (from_claw, to_claw, domain)
);

CREATE TABLE IF NOT EXISTS pearls (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	type TEXT NOT NULL,
	trigger_text TEXT NOT NULL,
	domain_tags TEXT NOT NULL DEFAULT '[]',
	body BLOB,
	luster REAL NOT NULL,
	shareability TEXT NOT NULL,
	share_conditions TEXT,
	origin TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pearls_owner ON pearls(owner);

CREATE TABLE IF NOT EXISTS endorsements (
	pearl_id TEXT NOT NULL,
	endorser TEXT NOT NULL,
	score REAL NOT NULL,
	comment TEXT,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (pearl_id, endorser)
);

CREATE TABLE IF NOT EXISTS pearl_shares (
	from_claw TEXT NOT NULL,
	to_claw TEXT NOT NULL,
	pearl_id TEXT NOT NULL,
	at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pearl_shares_pair ON pearl_shares(from_claw, to_claw);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	sender TEXT NOT NULL,
	blocks TEXT NOT NULL,
	visibility TEXT NOT NULL,
	circles TEXT,
	content_warning TEXT,
	reply_to_id TEXT,
	thread_id TEXT,
	edited INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	edited_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);

CREATE TABLE IF NOT EXISTS inbox_entries (
	id TEXT PRIMARY KEY,
	recipient TEXT NOT NULL,
	message_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	read INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inbox_recipient_seq ON inbox_entries(recipient, seq);

CREATE TABLE IF NOT EXISTS inbox_seq (
	recipient TEXT PRIMARY KEY,
	next_seq INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reflexes (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	name TEXT NOT NULL,
	behavior_tag TEXT NOT NULL,
	trigger_layer INTEGER NOT NULL,
	trigger_config BLOB,
	enabled INTEGER NOT NULL,
	confidence REAL NOT NULL,
	source TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	UNIQUE(owner, name)
);

CREATE TABLE IF NOT EXISTS reflex_executions (
	id TEXT PRIMARY KEY,
	reflex_id TEXT NOT NULL,
	owner TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload TEXT,
	result TEXT NOT NULL,
	details TEXT,
	batch_id TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_owner ON reflex_executions(owner, created_at);
CREATE INDEX IF NOT EXISTS idx_executions_batch ON reflex_executions(batch_id);

CREATE TABLE IF NOT EXISTS heartbeats (
	id TEXT PRIMARY KEY,
	from_claw TEXT NOT NULL,
	to_claw TEXT NOT NULL,
	interests TEXT NOT NULL,
	status TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS friend_models (
	owner TEXT NOT NULL,
	friend TEXT NOT NULL,
	interest_weights TEXT NOT NULL,
	last_heartbeat_at INTEGER NOT NULL,
	heartbeat_count INTEGER NOT NULL,
	PRIMARY KEY (owner, friend)
);

CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	creator TEXT NOT NULL,
	purpose TEXT,
	title TEXT,
	status TEXT NOT NULL,
	participants TEXT NOT NULL,
	participant_keys TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Repository is the SQLite-backed repository.Repository implementation.
type Repository struct {
	db *sql.DB
}

// Open creates/migrates the SQLite database at path and returns a Repository.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // matches the teacher's single-writer sqlite convention
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to migrate schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) Claws() repository.Claws                                { return &clawStore{db: r.db} }
func (r *Repository) Friendships() repository.Friendships                    { return &friendshipStore{db: r.db} }
func (r *Repository) RelationshipStrengths() repository.RelationshipStrengths { return &strengthStore{db: r.db} }
func (r *Repository) TrustScores() repository.TrustScores                    { return &trustStore{db: r.db} }
func (r *Repository) Pearls() repository.Pearls                              { return &pearlStore{db: r.db} }
func (r *Repository) Messages() repository.Messages                         { return &messageStore{db: r.db} }
func (r *Repository) Reflexes() repository.Reflexes                         { return &reflexStore{db: r.db} }
func (r *Repository) Heartbeats() repository.Heartbeats                     { return &heartbeatStore{db: r.db} }
func (r *Repository) Threads() repository.Threads                           { return &threadStore{db: r.db} }

func toMs(t time.Time) int64   { return t.UnixMilli() }
func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func toMsPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func fromMsPtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMs(ms.Int64)
	return &t
}

func marshalJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// --- claws ---

type clawStore struct{ db *sql.DB }

func (s *clawStore) Create(ctx context.Context, c *core.Claw) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO claws (id, public_key, display_name, bio, tags, status, discoverable, last_seen_at, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.PublicKey, c.DisplayName, c.Bio, marshalJSON(c.Tags), string(c.Status), c.Discoverable, toMs(c.LastSeenAt), toMs(c.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.Duplicate, "sqlite: failed to insert claw", err)
	}
	return nil
}

func (s *clawStore) Get(ctx context.Context, id string) (*core.Claw, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, public_key, display_name, bio, tags, status, discoverable, last_seen_at, created_at FROM claws WHERE id = ?`, id)
	return scanClaw(row)
}

func scanClaw(row *sql.Row) (*core.Claw, error) {
	var c core.Claw
	var tags string
	var status string
	var lastSeen, created int64
	if err := row.Scan(&c.ID, &c.PublicKey, &c.DisplayName, &c.Bio, &tags, &status, &c.Discoverable, &lastSeen, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "claw not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan claw", err)
	}
	json.Unmarshal([]byte(tags), &c.Tags)
	c.Status = core.ClawStatus(status)
	c.LastSeenAt = fromMs(lastSeen)
	c.CreatedAt = fromMs(created)
	return &c, nil
}

func (s *clawStore) UpdateLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE claws SET last_seen_at = ? WHERE id = ?`, toMs(seenAt), id)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to update last_seen_at", err)
	}
	return nil
}

func (s *clawStore) List(ctx context.Context) ([]*core.Claw, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, public_key, display_name, bio, tags, status, discoverable, last_seen_at, created_at FROM claws`)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list claws", err)
	}
	defer rows.Close()
	var out []*core.Claw
	for rows.Next() {
		var c core.Claw
		var tags, status string
		var lastSeen, created int64
		if err := rows.Scan(&c.ID, &c.PublicKey, &c.DisplayName, &c.Bio, &tags, &status, &c.Discoverable, &lastSeen, &created); err != nil {
			return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan claw row", err)
		}
		json.Unmarshal([]byte(tags), &c.Tags)
		c.Status = core.ClawStatus(status)
		c.LastSeenAt = fromMs(lastSeen)
		c.CreatedAt = fromMs(created)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// --- friendships ---

type friendshipStore struct{ db *sql.DB }

func (s *friendshipStore) Create(ctx context.Context, f *core.Friendship) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO friendships (id, requester, accepter, status, created_at, accepted_at) VALUES (?,?,?,?,?,?)`,
		f.ID, f.Requester, f.Accepter, string(f.Status), toMs(f.CreatedAt), toMsPtr(f.AcceptedAt))
	if err != nil {
		return errs.Wrap(errs.Duplicate, "sqlite: failed to insert friendship", err)
	}
	return nil
}

func scanFriendship(scan func(dest ...interface{}) error) (*core.Friendship, error) {
	var f core.Friendship
	var status string
	var created int64
	var accepted sql.NullInt64
	if err := scan(&f.ID, &f.Requester, &f.Accepter, &status, &created, &accepted); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "friendship not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan friendship", err)
	}
	f.Status = core.FriendshipStatus(status)
	f.CreatedAt = fromMs(created)
	f.AcceptedAt = fromMsPtr(accepted)
	return &f, nil
}

func (s *friendshipStore) Get(ctx context.Context, id string) (*core.Friendship, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, requester, accepter, status, created_at, accepted_at FROM friendships WHERE id = ?`, id)
	return scanFriendship(row.Scan)
}

func (s *friendshipStore) GetByPair(ctx context.Context, a, b string) (*core.Friendship, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, requester, accepter, status, created_at, accepted_at FROM friendships
		WHERE status != 'rejected' AND ((requester = ? AND accepter = ?) OR (requester = ? AND accepter = ?)) LIMIT 1`, a, b, b, a)
	return scanFriendship(row.Scan)
}

func (s *friendshipStore) UpdateStatus(ctx context.Context, id string, status core.FriendshipStatus) error {
	var acceptedAt interface{}
	if status == core.FriendshipAccepted {
		acceptedAt = toMs(time.Now().UTC())
	}
	_, err := s.db.ExecContext(ctx, `UPDATE friendships SET status = ?, accepted_at = COALESCE(accepted_at, ?) WHERE id = ?`, string(status), acceptedAt, id)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to update friendship status", err)
	}
	return nil
}

func (s *friendshipStore) ListByClaw(ctx context.Context, clawID string, status core.FriendshipStatus) ([]*core.Friendship, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, requester, accepter, status, created_at, accepted_at FROM friendships
		WHERE (requester = ? OR accepter = ?) AND status = ?`, clawID, clawID, string(status))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list friendships", err)
	}
	defer rows.Close()
	var out []*core.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- relationship strengths ---

type strengthStore struct{ db *sql.DB }

func (s *strengthStore) Get(ctx context.Context, from, to string) (*core.RelationshipStrength, error) {
	row := s.db.QueryRowContext(ctx, `SELECT from_claw, to_claw, strength, last_boost_at, current_layer FROM relationship_strengths WHERE from_claw = ? AND to_claw = ?`, from, to)
	var r core.RelationshipStrength
	var lastBoost int64
	var layer string
	if err := row.Scan(&r.FromClaw, &r.ToClaw, &r.Strength, &lastBoost, &layer); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "relationship strength not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan relationship strength", err)
	}
	r.LastBoostAt = fromMs(lastBoost)
	r.CurrentLayer = core.DunbarLayer(layer)
	return &r, nil
}

func (s *strengthStore) Upsert(ctx context.Context, r *core.RelationshipStrength) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO relationship_strengths (from_claw, to_claw, strength, last_boost_at, current_layer) VALUES (?,?,?,?,?)
		ON CONFLICT(from_claw, to_claw) DO UPDATE SET strength = excluded.strength, last_boost_at = excluded.last_boost_at, current_layer = excluded.current_layer`,
		r.FromClaw, r.ToClaw, r.Strength, toMs(r.LastBoostAt), string(r.CurrentLayer))
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to upsert relationship strength", err)
	}
	return nil
}

func (s *strengthStore) ListFrom(ctx context.Context, from string) ([]*core.RelationshipStrength, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_claw, to_claw, strength, last_boost_at, current_layer FROM relationship_strengths WHERE from_claw = ?`, from)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list relationship strengths", err)
	}
	defer rows.Close()
	var out []*core.RelationshipStrength
	for rows.Next() {
		var r core.RelationshipStrength
		var lastBoost int64
		var layer string
		if err := rows.Scan(&r.FromClaw, &r.ToClaw, &r.Strength, &lastBoost, &layer); err != nil {
			return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan relationship strength row", err)
		}
		r.LastBoostAt = fromMs(lastBoost)
		r.CurrentLayer = core.DunbarLayer(layer)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- trust scores ---

type trustStore struct{ db *sql.DB }

func scanTrust(scan func(dest ...interface{}) error) (*core.TrustScore, error) {
	var t core.TrustScore
	var hSet int
	var updated int64
	if err := scan(&t.From, &t.To, &t.Domain, &t.Q, &t.H, &hSet, &t.N, &t.W, &t.Composite, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "trust score not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan trust score", err)
	}
	t.HSet = hSet != 0
	t.UpdatedAt = fromMs(updated)
	return &t, nil
}

func (s *trustStore) Get(ctx context.Context, from, to, domain string) (*core.TrustScore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT from_claw, to_claw, domain, q, h, h_set, n, w, composite, updated_at FROM trust_scores WHERE from_claw = ? AND to_claw = ? AND domain = ?`, from, to, domain)
	return scanTrust(row.Scan)
}

func (s *trustStore) Upsert(ctx context.Context, t *core.TrustScore) error {
	hSet := 0
	if t.HSet {
		hSet = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO trust_scores (from_claw, to_claw, domain, q, h, h_set, n, w, composite, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(from_claw, to_claw, domain) DO UPDATE SET q=excluded.q, h=excluded.h, h_set=excluded.h_set, n=excluded.n, w=excluded.w, composite=excluded.composite, updated_at=excluded.updated_at`,
		t.From, t.To, t.Domain, t.Q, t.H, hSet, t.N, t.W, t.Composite, toMs(t.UpdatedAt))
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to upsert trust score", err)
	}
	return nil
}

func (s *trustStore) ListFrom(ctx context.Context, from string) ([]*core.TrustScore, error) {
	return s.queryAll(ctx, `SELECT from_claw, to_claw, domain, q, h, h_set, n, w, composite, updated_at FROM trust_scores WHERE from_claw = ?`, from)
}

func (s *trustStore) ListTo(ctx context.Context, to string) ([]*core.TrustScore, error) {
	return s.queryAll(ctx, `SELECT from_claw, to_claw, domain, q, h, h_set, n, w, composite, updated_at FROM trust_scores WHERE to_claw = ?`, to)
}

func (s *trustStore) ListAll(ctx context.Context) ([]*core.TrustScore, error) {
	return s.queryAll(ctx, `SELECT from_claw, to_claw, domain, q, h, h_set, n, w, composite, updated_at FROM trust_scores`)
}

func (s *trustStore) queryAll(ctx context.Context, query string, args ...interface{}) ([]*core.TrustScore, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to query trust scores", err)
	}
	defer rows.Close()
	var out []*core.TrustScore
	for rows.Next() {
		t, err := scanTrust(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- pearls ---

type pearlStore struct{ db *sql.DB }

func (s *pearlStore) Create(ctx context.Context, p *core.Pearl) error {
	var shareCond interface{}
	if p.ShareConditions != nil {
		shareCond = marshalJSON(p.ShareConditions)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO pearls (id, owner, type, trigger_text, domain_tags, body, luster, shareability, share_conditions, origin, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Owner, p.Type, p.Trigger, marshalJSON(p.DomainTags), p.Body, p.Luster, string(p.Shareability), shareCond, string(p.Origin), toMs(p.CreatedAt), toMs(p.UpdatedAt))
	if err != nil {
		return errs.Wrap(errs.Duplicate, "sqlite: failed to insert pearl", err)
	}
	return nil
}

func scanPearl(scan func(dest ...interface{}) error) (*core.Pearl, error) {
	var p core.Pearl
	var tags, shareability, origin string
	var shareCond sql.NullString
	var created, updated int64
	if err := scan(&p.ID, &p.Owner, &p.Type, &p.Trigger, &tags, &p.Body, &p.Luster, &shareability, &shareCond, &origin, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "pearl not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan pearl", err)
	}
	json.Unmarshal([]byte(tags), &p.DomainTags)
	p.Shareability = core.Shareability(shareability)
	p.Origin = core.PearlOrigin(origin)
	if shareCond.Valid {
		var sc core.ShareConditions
		if json.Unmarshal([]byte(shareCond.String), &sc) == nil {
			p.ShareConditions = &sc
		}
	}
	p.CreatedAt = fromMs(created)
	p.UpdatedAt = fromMs(updated)
	return &p, nil
}

func (s *pearlStore) Get(ctx context.Context, id string) (*core.Pearl, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, owner, type, trigger_text, domain_tags, body, luster, shareability, share_conditions, origin, created_at, updated_at FROM pearls WHERE id = ?`, id)
	return scanPearl(row.Scan)
}

func (s *pearlStore) Update(ctx context.Context, p *core.Pearl) error {
	var shareCond interface{}
	if p.ShareConditions != nil {
		shareCond = marshalJSON(p.ShareConditions)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE pearls SET type=?, trigger_text=?, domain_tags=?, body=?, luster=?, shareability=?, share_conditions=?, origin=?, updated_at=? WHERE id=?`,
		p.Type, p.Trigger, marshalJSON(p.DomainTags), p.Body, p.Luster, string(p.Shareability), shareCond, string(p.Origin), toMs(p.UpdatedAt), p.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to update pearl", err)
	}
	return nil
}

func (s *pearlStore) ListByOwner(ctx context.Context, owner string) ([]*core.Pearl, error) {
	return s.queryAll(ctx, `SELECT id, owner, type, trigger_text, domain_tags, body, luster, shareability, share_conditions, origin, created_at, updated_at FROM pearls WHERE owner = ?`, owner)
}

func (s *pearlStore) ListByDomainTag(ctx context.Context, tag string) ([]*core.Pearl, error) {
	return s.queryAll(ctx, `SELECT id, owner, type, trigger_text, domain_tags, body, luster, shareability, share_conditions, origin, created_at, updated_at FROM pearls WHERE domain_tags LIKE ?`, "%\""+tag+"\"%")
}

func (s *pearlStore) queryAll(ctx context.Context, query string, args ...interface{}) ([]*core.Pearl, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to query pearls", err)
	}
	defer rows.Close()
	var out []*core.Pearl
	for rows.Next() {
		p, err := scanPearl(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pearlStore) AddEndorsement(ctx context.Context, e *core.Endorsement) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO endorsements (pearl_id, endorser, score, comment, created_at) VALUES (?,?,?,?,?)`,
		e.PearlID, e.Endorser, e.Score, e.Comment, toMs(e.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.Duplicate, "sqlite: failed to insert endorsement", err)
	}
	return nil
}

func (s *pearlStore) GetEndorsement(ctx context.Context, pearlID, endorser string) (*core.Endorsement, error) {
	row := s.db.QueryRowContext(ctx, `SELECT pearl_id, endorser, score, comment, created_at FROM endorsements WHERE pearl_id = ? AND endorser = ?`, pearlID, endorser)
	var e core.Endorsement
	var created int64
	if err := row.Scan(&e.PearlID, &e.Endorser, &e.Score, &e.Comment, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "endorsement not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan endorsement", err)
	}
	e.CreatedAt = fromMs(created)
	return &e, nil
}

func (s *pearlStore) ListEndorsements(ctx context.Context, pearlID string) ([]*core.Endorsement, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pearl_id, endorser, score, comment, created_at FROM endorsements WHERE pearl_id = ?`, pearlID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list endorsements", err)
	}
	defer rows.Close()
	var out []*core.Endorsement
	for rows.Next() {
		var e core.Endorsement
		var created int64
		if err := rows.Scan(&e.PearlID, &e.Endorser, &e.Score, &e.Comment, &created); err != nil {
			return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan endorsement row", err)
		}
		e.CreatedAt = fromMs(created)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *pearlStore) CountSharedSince(ctx context.Context, from, to string, sinceUnixMs int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pearl_shares WHERE from_claw = ? AND to_claw = ? AND at_unix_ms >= ?`, from, to, sinceUnixMs).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "sqlite: failed to count shared pearls", err)
	}
	return count, nil
}

func (s *pearlStore) RecordShare(ctx context.Context, from, to, pearlID string, atUnixMs int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO pearl_shares (from_claw, to_claw, pearl_id, at_unix_ms) VALUES (?,?,?,?)`, from, to, pearlID, atUnixMs)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to record pearl share", err)
	}
	return nil
}

func (s *pearlStore) HasSharedWith(ctx context.Context, pearlID, friend string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pearl_shares WHERE pearl_id = ? AND to_claw = ?`, pearlID, friend).Scan(&count)
	if err != nil {
		return false, errs.Wrap(errs.Internal, "sqlite: failed to check prior pearl share", err)
	}
	return count > 0, nil
}

// --- messages ---

type messageStore struct{ db *sql.DB }

func scanMessage(scan func(dest ...interface{}) error) (*core.Message, error) {
	var m core.Message
	var blocks string
	var visibility string
	var circles, contentWarning, replyTo, threadID sql.NullString
	var edited int
	var created int64
	var editedAt sql.NullInt64
	if err := scan(&m.ID, &m.Sender, &blocks, &visibility, &circles, &contentWarning, &replyTo, &threadID, &edited, &created, &editedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "message not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan message", err)
	}
	json.Unmarshal([]byte(blocks), &m.Blocks)
	m.Visibility = core.Visibility(visibility)
	if circles.Valid {
		json.Unmarshal([]byte(circles.String), &m.Circles)
	}
	m.ContentWarning = contentWarning.String
	m.ReplyToID = replyTo.String
	m.ThreadID = threadID.String
	m.Edited = edited != 0
	m.CreatedAt = fromMs(created)
	m.EditedAt = fromMsPtr(editedAt)
	return &m, nil
}

const messageCols = `id, sender, blocks, visibility, circles, content_warning, reply_to_id, thread_id, edited, created_at, edited_at`

func insertMessageStmt(tx *sql.Tx, ctx context.Context, m *core.Message) error {
	var circles interface{}
	if len(m.Circles) > 0 {
		circles = marshalJSON(m.Circles)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO messages (`+messageCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Sender, marshalJSON(m.Blocks), string(m.Visibility), circles, nullIfEmpty(m.ContentWarning), nullIfEmpty(m.ReplyToID), nullIfEmpty(m.ThreadID), boolInt(m.Edited), toMs(m.CreatedAt), toMsPtr(m.EditedAt))
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *messageStore) Create(ctx context.Context, m *core.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to begin transaction", err)
	}
	defer tx.Rollback()
	if err := insertMessageStmt(tx, ctx, m); err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to insert message", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to commit message insert", err)
	}
	return nil
}

func (s *messageStore) Get(ctx context.Context, id string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageCols+` FROM messages WHERE id = ?`, id)
	return scanMessage(row.Scan)
}

func (s *messageStore) Update(ctx context.Context, m *core.Message) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET blocks=?, edited=?, edited_at=? WHERE id=?`,
		marshalJSON(m.Blocks), boolInt(m.Edited), toMsPtr(m.EditedAt), m.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to update message", err)
	}
	return nil
}

func (s *messageStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to delete message", err)
	}
	return nil
}

func (s *messageStore) ListByThread(ctx context.Context, threadID string) ([]*core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+messageCols+` FROM messages WHERE thread_id = ? ORDER BY created_at ASC`, threadID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list thread messages", err)
	}
	defer rows.Close()
	var out []*core.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FanOut inserts the message and every per-recipient inbox entry inside one
// transaction, assigning sequence numbers from the inbox_seq counter table
// so concurrent fan-outs to the same recipient never collide (spec §4.5).
func (s *messageStore) FanOut(ctx context.Context, m *core.Message, recipients []string) ([]*core.InboxEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to begin fan-out transaction", err)
	}
	defer tx.Rollback()

	if err := insertMessageStmt(tx, ctx, m); err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to insert message during fan-out", err)
	}

	entries := make([]*core.InboxEntry, 0, len(recipients))
	for _, recipient := range recipients {
		seq, err := nextSeqTx(ctx, tx, recipient)
		if err != nil {
			return nil, err
		}
		entry := &core.InboxEntry{
			ID:        fmt.Sprintf("%s-%s", m.ID, recipient),
			Recipient: recipient,
			MessageID: m.ID,
			Seq:       seq,
			CreatedAt: m.CreatedAt,
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO inbox_entries (id, recipient, message_id, seq, created_at, read) VALUES (?,?,?,?,?,0)`,
			entry.ID, entry.Recipient, entry.MessageID, entry.Seq, toMs(entry.CreatedAt)); err != nil {
			return nil, errs.Wrap(errs.Internal, "sqlite: failed to insert inbox entry", err)
		}
		entries = append(entries, entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to commit fan-out", err)
	}
	return entries, nil
}

func nextSeqTx(ctx context.Context, tx *sql.Tx, recipient string) (int64, error) {
	var next int64
	row := tx.QueryRowContext(ctx, `SELECT next_seq FROM inbox_seq WHERE recipient = ?`, recipient)
	err := row.Scan(&next)
	switch {
	case err == sql.ErrNoRows:
		next = 1
		if _, err := tx.ExecContext(ctx, `INSERT INTO inbox_seq (recipient, next_seq) VALUES (?, ?)`, recipient, next+1); err != nil {
			return 0, errs.Wrap(errs.Internal, "sqlite: failed to initialize inbox sequence", err)
		}
	case err != nil:
		return 0, errs.Wrap(errs.Internal, "sqlite: failed to read inbox sequence", err)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE inbox_seq SET next_seq = ? WHERE recipient = ?`, next+1, recipient); err != nil {
			return 0, errs.Wrap(errs.Internal, "sqlite: failed to advance inbox sequence", err)
		}
	}
	return next, nil
}

func (s *messageStore) NextSeq(ctx context.Context, recipient string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "sqlite: failed to begin transaction", err)
	}
	defer tx.Rollback()
	seq, err := nextSeqTx(ctx, tx, recipient)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.Internal, "sqlite: failed to commit sequence advance", err)
	}
	return seq, nil
}

func (s *messageStore) ListInbox(ctx context.Context, recipient string, sinceSeq int64, limit int) ([]*core.InboxEntry, error) {
	query := `SELECT id, recipient, message_id, seq, created_at, read FROM inbox_entries WHERE recipient = ? AND seq > ? ORDER BY seq ASC`
	args := []interface{}{recipient, sinceSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list inbox", err)
	}
	defer rows.Close()
	var out []*core.InboxEntry
	for rows.Next() {
		var e core.InboxEntry
		var created int64
		var read int
		if err := rows.Scan(&e.ID, &e.Recipient, &e.MessageID, &e.Seq, &created, &read); err != nil {
			return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan inbox entry", err)
		}
		e.CreatedAt = fromMs(created)
		e.Read = read != 0
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *messageStore) MarkRead(ctx context.Context, inboxEntryID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE inbox_entries SET read = 1 WHERE id = ?`, inboxEntryID)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to mark inbox entry read", err)
	}
	return nil
}

func (s *messageStore) ListRecipients(ctx context.Context, messageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT recipient FROM inbox_entries WHERE message_id = ?`, messageID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list message recipients", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var recipient string
		if err := rows.Scan(&recipient); err != nil {
			return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan recipient row", err)
		}
		out = append(out, recipient)
	}
	return out, rows.Err()
}

// --- reflexes ---

type reflexStore struct{ db *sql.DB }

func scanReflex(scan func(dest ...interface{}) error) (*core.Reflex, error) {
	var r core.Reflex
	var behaviorTag, source string
	var layer int
	var enabled int
	var created, updated int64
	if err := scan(&r.ID, &r.Owner, &r.Name, &behaviorTag, &layer, &r.TriggerConfig, &enabled, &r.Confidence, &source, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "reflex not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan reflex", err)
	}
	r.BehaviorTag = behaviorTag
	r.TriggerLayer = core.TriggerLayer(layer)
	r.Enabled = enabled != 0
	r.Source = core.ReflexSource(source)
	r.CreatedAt = fromMs(created)
	r.UpdatedAt = fromMs(updated)
	return &r, nil
}

const reflexCols = `id, owner, name, behavior_tag, trigger_layer, trigger_config, enabled, confidence, source, created_at, updated_at`

func (s *reflexStore) Create(ctx context.Context, r *core.Reflex) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO reflexes (`+reflexCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Owner, r.Name, r.BehaviorTag, int(r.TriggerLayer), r.TriggerConfig, boolInt(r.Enabled), r.Confidence, string(r.Source), toMs(r.CreatedAt), toMs(r.UpdatedAt))
	if err != nil {
		return errs.Wrap(errs.DuplicateName, "sqlite: failed to insert reflex", err)
	}
	return nil
}

func (s *reflexStore) Get(ctx context.Context, id string) (*core.Reflex, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reflexCols+` FROM reflexes WHERE id = ?`, id)
	return scanReflex(row.Scan)
}

func (s *reflexStore) GetByOwnerAndName(ctx context.Context, owner, name string) (*core.Reflex, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reflexCols+` FROM reflexes WHERE owner = ? AND name = ?`, owner, name)
	return scanReflex(row.Scan)
}

func (s *reflexStore) Update(ctx context.Context, r *core.Reflex) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reflexes SET behavior_tag=?, trigger_layer=?, trigger_config=?, enabled=?, confidence=?, updated_at=? WHERE id=?`,
		r.BehaviorTag, int(r.TriggerLayer), r.TriggerConfig, boolInt(r.Enabled), r.Confidence, toMs(r.UpdatedAt), r.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to update reflex", err)
	}
	return nil
}

func (s *reflexStore) ListByOwner(ctx context.Context, owner string) ([]*core.Reflex, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reflexCols+` FROM reflexes WHERE owner = ?`, owner)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list reflexes", err)
	}
	defer rows.Close()
	var out []*core.Reflex
	for rows.Next() {
		r, err := scanReflex(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *reflexStore) ListEnabledByLayer(ctx context.Context, layer core.TriggerLayer) ([]*core.Reflex, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reflexCols+` FROM reflexes WHERE enabled = 1 AND trigger_layer = ?`, int(layer))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list enabled reflexes", err)
	}
	defer rows.Close()
	var out []*core.Reflex
	for rows.Next() {
		r, err := scanReflex(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanExecution(scan func(dest ...interface{}) error) (*core.ReflexExecution, error) {
	var e core.ReflexExecution
	var payload, details sql.NullString
	var result string
	var batchID sql.NullString
	var created int64
	if err := scan(&e.ID, &e.ReflexID, &e.Owner, &e.EventType, &payload, &result, &details, &batchID, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "reflex execution not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan reflex execution", err)
	}
	e.Result = core.ExecutionResult(result)
	e.BatchID = batchID.String
	e.CreatedAt = fromMs(created)
	if payload.Valid {
		json.Unmarshal([]byte(payload.String), &e.Payload)
	}
	if details.Valid {
		json.Unmarshal([]byte(details.String), &e.Details)
	}
	return &e, nil
}

const executionCols = `id, reflex_id, owner, event_type, payload, result, details, batch_id, created_at`

func (s *reflexStore) RecordExecution(ctx context.Context, e *core.ReflexExecution) error {
	var payload, details interface{}
	if e.Payload != nil {
		payload = marshalJSON(e.Payload)
	}
	if e.Details != nil {
		details = marshalJSON(e.Details)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO reflex_executions (`+executionCols+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ReflexID, e.Owner, e.EventType, payload, string(e.Result), details, nullIfEmpty(e.BatchID), toMs(e.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to record reflex execution", err)
	}
	return nil
}

func (s *reflexStore) UpdateExecutionResult(ctx context.Context, executionID string, result core.ExecutionResult) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reflex_executions SET result = ? WHERE id = ?`, string(result), executionID)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to update execution result", err)
	}
	return nil
}

func (s *reflexStore) ListExecutions(ctx context.Context, owner string, limit int) ([]*core.ReflexExecution, error) {
	query := `SELECT ` + executionCols + ` FROM reflex_executions WHERE owner = ? ORDER BY created_at DESC`
	args := []interface{}{owner}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryExecutions(ctx, query, args...)
}

func (s *reflexStore) ListExecutionsByBatch(ctx context.Context, batchID string) ([]*core.ReflexExecution, error) {
	return s.queryExecutions(ctx, `SELECT `+executionCols+` FROM reflex_executions WHERE batch_id = ?`, batchID)
}

func (s *reflexStore) queryExecutions(ctx context.Context, query string, args ...interface{}) ([]*core.ReflexExecution, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to query reflex executions", err)
	}
	defer rows.Close()
	var out []*core.ReflexExecution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *reflexStore) CountExecutionsSince(ctx context.Context, owner string, sinceUnixMs int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reflex_executions WHERE owner = ? AND created_at >= ? AND result = 'executed'`, owner, sinceUnixMs).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.Internal, "sqlite: failed to count executions", err)
	}
	return count, nil
}

// --- heartbeats ---

type heartbeatStore struct{ db *sql.DB }

func (s *heartbeatStore) Record(ctx context.Context, h *core.Heartbeat) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO heartbeats (id, from_claw, to_claw, interests, status, created_at) VALUES (?,?,?,?,?,?)`,
		h.ID, h.From, h.To, marshalJSON(h.Interests), h.Status, toMs(h.CreatedAt))
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to record heartbeat", err)
	}
	return nil
}

func (s *heartbeatStore) GetFriendModel(ctx context.Context, owner, friend string) (*core.FriendModel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT owner, friend, interest_weights, last_heartbeat_at, heartbeat_count FROM friend_models WHERE owner = ? AND friend = ?`, owner, friend)
	var m core.FriendModel
	var weights string
	var lastHeartbeat int64
	if err := row.Scan(&m.Owner, &m.Friend, &weights, &lastHeartbeat, &m.HeartbeatCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "friend model not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan friend model", err)
	}
	json.Unmarshal([]byte(weights), &m.InterestWeights)
	m.LastHeartbeatAt = fromMs(lastHeartbeat)
	return &m, nil
}

func (s *heartbeatStore) UpsertFriendModel(ctx context.Context, m *core.FriendModel) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO friend_models (owner, friend, interest_weights, last_heartbeat_at, heartbeat_count) VALUES (?,?,?,?,?)
		ON CONFLICT(owner, friend) DO UPDATE SET interest_weights=excluded.interest_weights, last_heartbeat_at=excluded.last_heartbeat_at, heartbeat_count=excluded.heartbeat_count`,
		m.Owner, m.Friend, marshalJSON(m.InterestWeights), toMs(m.LastHeartbeatAt), m.HeartbeatCount)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to upsert friend model", err)
	}
	return nil
}

// --- threads ---

type threadStore struct{ db *sql.DB }

func (s *threadStore) Create(ctx context.Context, t *core.Thread) error {
	participants := make([]string, 0, len(t.Participants))
	for p := range t.Participants {
		participants = append(participants, p)
	}
	keys := make(map[string]string, len(t.ParticipantKeys))
	for k, v := range t.ParticipantKeys {
		keys[k] = string(v)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO threads (id, creator, purpose, title, status, participants, participant_keys, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Creator, t.Purpose, t.Title, string(t.Status), marshalJSON(participants), marshalJSON(keys), toMs(t.CreatedAt), toMs(t.UpdatedAt))
	if err != nil {
		return errs.Wrap(errs.Duplicate, "sqlite: failed to insert thread", err)
	}
	return nil
}

func (s *threadStore) Get(ctx context.Context, id string) (*core.Thread, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, creator, purpose, title, status, participants, participant_keys, created_at, updated_at FROM threads WHERE id = ?`, id)
	return scanThread(row)
}

func scanThread(row *sql.Row) (*core.Thread, error) {
	var t core.Thread
	var status, participants, keys string
	var created, updated int64
	if err := row.Scan(&t.ID, &t.Creator, &t.Purpose, &t.Title, &status, &participants, &keys, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.NotFound, "thread not found")
		}
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan thread", err)
	}
	t.Status = core.ThreadStatus(status)
	var plist []string
	json.Unmarshal([]byte(participants), &plist)
	t.Participants = make(map[string]bool, len(plist))
	for _, p := range plist {
		t.Participants[p] = true
	}
	var kmap map[string]string
	json.Unmarshal([]byte(keys), &kmap)
	t.ParticipantKeys = make(map[string][]byte, len(kmap))
	for k, v := range kmap {
		t.ParticipantKeys[k] = []byte(v)
	}
	t.CreatedAt = fromMs(created)
	t.UpdatedAt = fromMs(updated)
	return &t, nil
}

func (s *threadStore) Update(ctx context.Context, t *core.Thread) error {
	participants := make([]string, 0, len(t.Participants))
	for p := range t.Participants {
		participants = append(participants, p)
	}
	keys := make(map[string]string, len(t.ParticipantKeys))
	for k, v := range t.ParticipantKeys {
		keys[k] = string(v)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE threads SET status=?, participants=?, participant_keys=?, updated_at=? WHERE id=?`,
		string(t.Status), marshalJSON(participants), marshalJSON(keys), toMs(t.UpdatedAt), t.ID)
	if err != nil {
		return errs.Wrap(errs.Internal, "sqlite: failed to update thread", err)
	}
	return nil
}

func (s *threadStore) ListByParticipant(ctx context.Context, clawID string) ([]*core.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, creator, purpose, title, status, participants, participant_keys, created_at, updated_at FROM threads WHERE participants LIKE ?`, "%\""+clawID+"\"%")
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to list threads", err)
	}
	defer rows.Close()
	var out []*core.Thread
	for rows.Next() {
		t, err := scanThreadRows(rows)
		if err != nil {
			return nil, err
		}
		if t.Participants[clawID] {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

func scanThreadRows(rows *sql.Rows) (*core.Thread, error) {
	var t core.Thread
	var status, participants, keys string
	var created, updated int64
	if err := rows.Scan(&t.ID, &t.Creator, &t.Purpose, &t.Title, &status, &participants, &keys, &created, &updated); err != nil {
		return nil, errs.Wrap(errs.Internal, "sqlite: failed to scan thread row", err)
	}
	t.Status = core.ThreadStatus(status)
	var plist []string
	json.Unmarshal([]byte(participants), &plist)
	t.Participants = make(map[string]bool, len(plist))
	for _, p := range plist {
		t.Participants[p] = true
	}
	var kmap map[string]string
	json.Unmarshal([]byte(keys), &kmap)
	t.ParticipantKeys = make(map[string][]byte, len(kmap))
	for k, v := range kmap {
		t.ParticipantKeys[k] = []byte(v)
	}
	t.CreatedAt = fromMs(created)
	t.UpdatedAt = fromMs(updated)
	return &t, nil
}
