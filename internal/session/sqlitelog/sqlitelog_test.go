package sqlitelog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/session"
)

func TestStore_AppendAndGet(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	m := llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage("hello"))
	entry, err := store.Append(context.Background(), "", session.Entry{Kind: session.EntryMessage, Message: &m})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	got, ok, err := store.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.EntryMessage, got.Kind)
	require.NotNil(t, got.Message)
	assert.Equal(t, "hello", got.Message.LLM.UserContent[0].Text)
}

func TestStore_PathWalksLinearChain(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	m1 := llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage("first"))
	e1, err := store.Append(ctx, "", session.Entry{Kind: session.EntryMessage, Message: &m1})
	require.NoError(t, err)

	m2 := llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage("second"))
	e2, err := store.Append(ctx, e1.ID, session.Entry{Kind: session.EntryMessage, Message: &m2})
	require.NoError(t, err)

	path, err := store.Path(ctx, e2.ID)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, e1.ID, path[0].ID)
	assert.Equal(t, e2.ID, path[1].ID)
}

func TestStore_PathEmptyLeafListsAll(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Append(ctx, "", session.Entry{Kind: session.EntryLabel, Label: "checkpoint"})
	require.NoError(t, err)

	path, err := store.Path(ctx, "")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, "checkpoint", path[0].Label)
}

func TestStore_GetMissingReturnsFalse(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CompactionEntryRoundTrips(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	entry, err := store.Append(context.Background(), "", session.Entry{
		Kind: session.EntryCompaction,
		Compaction: &session.CompactionDetails{
			Summary:       "done stuff",
			ReadFiles:     []string{"a.go"},
			ModifiedFiles: []string{"b.go"},
		},
	})
	require.NoError(t, err)

	got, ok, err := store.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.Compaction)
	assert.Equal(t, "done stuff", got.Compaction.Summary)
	assert.Equal(t, []string{"a.go"}, got.Compaction.ReadFiles)
}
