package session

import (
	"context"
	"time"
)

// SummaryMatch is one compaction entry whose summary text matched a
// SearchSummaries query.
type SummaryMatch struct {
	EntryID string
	Summary string
	Ts      time.Time
}

// SummarySearcher is implemented by a Store that can search the summary
// text of past compactions (internal/session/sqlitelog does; MemStore does
// not). Callers that want this capability type-assert their Store against
// it rather than it being part of the base Store interface, since
// substring search over a durable log isn't meaningful for an ephemeral
// in-memory one.
type SummarySearcher interface {
	SearchSummaries(ctx context.Context, query string, limit int) ([]SummaryMatch, error)
}
