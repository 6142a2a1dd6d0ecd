package sqlitelog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentcore/runtime/internal/session"
)

// SearchSummaries does a case-insensitive substring search over every
// compaction entry's summary text, most recent first, capped at limit
// (defaults to 10). Grounded on crush's internal/summary/store.go textSearch
// fallback path — this core has no embedding client, so there's no
// semantic-search tier to fall back from; every search is the substring
// path. Satisfies session.SummarySearcher.
func (s *Store) SearchSummaries(ctx context.Context, query string, limit int) ([]session.SummaryMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, payload FROM session_entries WHERE kind = 'compaction' ORDER BY ts DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitelog: search summaries: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(query)
	var matches []session.SummaryMatch
	for rows.Next() {
		var id, blob string
		var tsNano int64
		if err := rows.Scan(&id, &tsNano, &blob); err != nil {
			return nil, fmt.Errorf("sqlitelog: search summaries: %w", err)
		}
		var p payload
		if err := json.Unmarshal([]byte(blob), &p); err != nil {
			return nil, fmt.Errorf("sqlitelog: search summaries: unmarshal entry %q: %w", id, err)
		}
		if p.Compaction == nil {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Compaction.Summary), needle) {
			continue
		}
		matches = append(matches, session.SummaryMatch{EntryID: id, Summary: p.Compaction.Summary, Ts: time.Unix(0, tsNano)})
		if len(matches) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitelog: search summaries: %w", err)
	}
	return matches, nil
}
