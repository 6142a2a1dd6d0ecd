// Package sqlitelog is a durable session.Store, for anything that wants
// persistence beyond the in-memory session.MemStore. Grounded on crush's
// internal/summary/store.go, simplified from its db.Querier/sqlc-generated
// abstraction down to direct database/sql use, since this package owns a
// single small table rather than the teacher's whole schema.
package sqlitelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/session"
)

// Store is a session.Store backed by a SQLite database. Entries are stored
// one row per entry, with Kind/ParentID/Ts as real columns (for the linear
// Path walk) and the rest of the payload as a JSON blob.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a sqlitelog.Store at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitelog: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS session_entries (
	id        TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL DEFAULT '',
	kind      TEXT NOT NULL,
	ts        INTEGER NOT NULL,
	payload   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS session_entries_parent_id ON session_entries(parent_id);
`)
	if err != nil {
		return fmt.Errorf("sqlitelog: migrate: %w", err)
	}
	return nil
}

// payload is the JSON-serialized form of every Entry field not promoted to
// a column. llmtypes.AgentMessage marshals fine via its exported fields
// with encoding/json's default behavior; no custom (un)marshaling needed.
type payload struct {
	Message           *llmtypes.AgentMessage     `json:"message,omitempty"`
	CustomPayload      json.RawMessage            `json:"custom_payload,omitempty"`
	BranchSummaryText  string                     `json:"branch_summary_text,omitempty"`
	Compaction         *session.CompactionDetails `json:"compaction,omitempty"`
	ThinkingLevel      string                     `json:"thinking_level,omitempty"`
	ModelID            string                     `json:"model_id,omitempty"`
	Label              string                     `json:"label,omitempty"`
}

func (s *Store) Append(ctx context.Context, parentID string, e session.Entry) (session.Entry, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	e.ParentID = parentID
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}

	p := payload{
		BranchSummaryText: e.BranchSummaryText,
		Compaction:        e.Compaction,
		ThinkingLevel:     e.ThinkingLevel,
		ModelID:           e.ModelID,
		Label:             e.Label,
	}
	if e.Message != nil {
		p.Message = e.Message
	}
	if e.CustomPayload != nil {
		raw, err := json.Marshal(e.CustomPayload)
		if err != nil {
			return session.Entry{}, fmt.Errorf("sqlitelog: marshal custom payload: %w", err)
		}
		p.CustomPayload = raw
	}

	blob, err := json.Marshal(p)
	if err != nil {
		return session.Entry{}, fmt.Errorf("sqlitelog: marshal entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_entries (id, parent_id, kind, ts, payload) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ParentID, string(e.Kind), e.Ts.UnixNano(), string(blob),
	)
	if err != nil {
		return session.Entry{}, fmt.Errorf("sqlitelog: insert: %w", err)
	}
	return e, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, parent_id, kind, ts, payload FROM session_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return session.Entry{}, false, nil
	}
	if err != nil {
		return session.Entry{}, false, err
	}
	return e, true, nil
}

// Delete removes id's row outright, for the overflow trigger's "delete the
// failing entry" step (§4.H).
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlitelog: delete: %w", err)
	}
	return nil
}

func (s *Store) Path(ctx context.Context, leafID string) ([]session.Entry, error) {
	if leafID == "" {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, parent_id, kind, ts, payload FROM session_entries ORDER BY ts ASC`)
		if err != nil {
			return nil, fmt.Errorf("sqlitelog: list: %w", err)
		}
		defer rows.Close()
		return scanAll(rows)
	}

	var chain []session.Entry
	cur := leafID
	for cur != "" {
		e, ok, err := s.Get(ctx, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("sqlitelog: entry %q not found", cur)
		}
		chain = append(chain, e)
		cur = e.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (session.Entry, error) {
	var id, parentID, kind, blob string
	var tsNano int64
	if err := row.Scan(&id, &parentID, &kind, &tsNano, &blob); err != nil {
		return session.Entry{}, err
	}

	var p payload
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return session.Entry{}, fmt.Errorf("sqlitelog: unmarshal entry %q: %w", id, err)
	}

	e := session.Entry{
		ID:                id,
		ParentID:          parentID,
		Kind:              session.EntryKind(kind),
		Ts:                time.Unix(0, tsNano),
		BranchSummaryText: p.BranchSummaryText,
		Compaction:        p.Compaction,
		ThinkingLevel:     p.ThinkingLevel,
		ModelID:           p.ModelID,
		Label:             p.Label,
	}
	if p.Message != nil {
		e.Message = p.Message
	}
	if len(p.CustomPayload) > 0 {
		var v any
		if err := json.Unmarshal(p.CustomPayload, &v); err == nil {
			e.CustomPayload = v
		}
	}
	return e, nil
}

func scanAll(rows *sql.Rows) ([]session.Entry, error) {
	var out []session.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func newID() string {
	return fmt.Sprintf("entry_%d", time.Now().UnixNano())
}
