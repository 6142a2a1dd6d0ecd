package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store is the abstract session-entry log the compaction orchestrator
// reads and writes. Implementations form a tree via Entry.ParentID but
// compaction itself only ever walks a linear path (§4.F's
// [boundaryStart, boundaryEnd) range), so Path returns that linear view.
type Store interface {
	Append(ctx context.Context, parentID string, e Entry) (Entry, error)
	Get(ctx context.Context, id string) (Entry, bool, error)
	// Path returns the linear ancestry from the root to leafID, inclusive,
	// in root-to-leaf order — the "linear path" §4.F's cut-point finder
	// operates over.
	Path(ctx context.Context, leafID string) ([]Entry, error)
	// Delete removes an entry outright, for the overflow trigger's "delete
	// the failing entry" step (§4.H) rather than leaving a dead leaf any
	// future Path walk would still have to skip over. Deleting an entry
	// with children is the caller's responsibility to avoid.
	Delete(ctx context.Context, id string) error
}

// MemStore is an in-memory reference Store, sufficient for tests and the
// demo CLI. It only ever grows a single linear chain (no branching), since
// nothing in this module's test surface exercises forking.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	order   []string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: map[string]Entry{}}
}

func (s *MemStore) Append(ctx context.Context, parentID string, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.ParentID = parentID
	s.entries[e.ID] = e
	s.order = append(s.order, e.ID)
	return e, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok, nil
}

// Delete removes id from entries and order. The caller is responsible for
// not deleting an entry something else's ParentID still points at.
func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("session: entry %q not found", id)
	}
	delete(s.entries, id)
	for i, got := range s.order {
		if got == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemStore) Path(ctx context.Context, leafID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if leafID == "" {
		out := make([]Entry, len(s.order))
		for i, id := range s.order {
			out[i] = s.entries[id]
		}
		return out, nil
	}

	var chain []Entry
	cur := leafID
	for cur != "" {
		e, ok := s.entries[cur]
		if !ok {
			return nil, fmt.Errorf("session: entry %q not found", cur)
		}
		chain = append(chain, e)
		cur = e.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Tail returns the last appended entry's ID, the natural "current leaf"
// for a store used as a single linear chain.
func (s *MemStore) Tail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return ""
	}
	return s.order[len(s.order)-1]
}
