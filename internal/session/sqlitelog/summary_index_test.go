package sqlitelog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/runtime/internal/session"
)

func TestStore_SearchSummariesMatchesSubstringCaseInsensitive(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Append(ctx, "", session.Entry{
		Kind:       session.EntryCompaction,
		Compaction: &session.CompactionDetails{Summary: "Refactored the Billing module"},
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, "", session.Entry{
		Kind:       session.EntryCompaction,
		Compaction: &session.CompactionDetails{Summary: "Fixed a flaky test in auth"},
	})
	require.NoError(t, err)

	matches, err := store.SearchSummaries(ctx, "billing", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Refactored the Billing module", matches[0].Summary)
}

func TestStore_SearchSummariesEmptyQueryReturnsAll(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Append(ctx, "", session.Entry{
		Kind:       session.EntryCompaction,
		Compaction: &session.CompactionDetails{Summary: "first"},
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, "", session.Entry{
		Kind:       session.EntryCompaction,
		Compaction: &session.CompactionDetails{Summary: "second"},
	})
	require.NoError(t, err)

	matches, err := store.SearchSummaries(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestStore_SearchSummariesRespectsLimit(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err = store.Append(ctx, "", session.Entry{
			Kind:       session.EntryCompaction,
			Compaction: &session.CompactionDetails{Summary: "repeated summary text"},
		})
		require.NoError(t, err)
	}

	matches, err := store.SearchSummaries(ctx, "repeated", 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestStore_SearchSummariesSkipsNonCompactionEntries(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Append(ctx, "", session.Entry{Kind: session.EntryLabel, Label: "checkpoint"})
	require.NoError(t, err)

	matches, err := store.SearchSummaries(ctx, "checkpoint", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
