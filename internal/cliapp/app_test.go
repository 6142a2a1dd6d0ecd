package cliapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/runtime/internal/compact"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/metrics"
	"github.com/agentcore/runtime/internal/mockprovider"
	"github.com/agentcore/runtime/internal/session"
)

func TestApp_Ask_ToolCallThenText(t *testing.T) {
	m := metrics.NewWithOptions(metrics.Options{})
	app := New(Options{
		Config:  config.Default(),
		Metrics: m,
		Scripts: []mockprovider.Script{
			{ToolCall: &llmtypes.ToolCallBlock{ID: "call-1", Name: "echo", Arguments: map[string]any{"text": "hi"}}},
			{Text: "got it"},
		},
	})

	reply, err := app.Ask(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "got it", reply)

	metricFamilies, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, metricFamilies)
}

func TestApp_Ask_PlainText(t *testing.T) {
	app := New(Options{
		Config:  config.Default(),
		Scripts: []mockprovider.Script{{Text: "hello"}},
	})

	reply, err := app.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}

func TestApp_Ask_OverflowTriggerDeletesCompactsAndRetries(t *testing.T) {
	store := session.NewMemStore()
	app := New(Options{
		Config: config.Default(),
		Store:  store,
		Scripts: []mockprovider.Script{
			{Err: errors.New("provider: context length exceeded"), ErrIsContextOverflow: true},
			{Text: "summary of the failed turn"},
			{Text: "retried successfully"},
		},
	})

	reply, err := app.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "", reply, "the failing turn produced no text")

	require.Eventually(t, func() bool {
		return lastAssistantText(t, store, app.leaf) == "retried successfully"
	}, time.Second, 10*time.Millisecond, "expected the overflow trigger's auto-continue to succeed")

	path, err := store.Path(context.Background(), app.leaf)
	require.NoError(t, err)

	var sawCompaction bool
	for _, e := range path {
		if e.Kind == session.EntryCompaction {
			sawCompaction = true
			assert.Contains(t, e.Compaction.Summary, "summary of the failed turn")
		}
		if e.Message != nil && e.Message.LLM.StopReason == llmtypes.StopReasonError {
			t.Fatalf("failing entry %q should have been deleted, not retained in the post-retry path", e.ID)
		}
	}
	assert.True(t, sawCompaction, "expected a compaction entry in the post-retry path")
}

func TestApp_Ask_ThresholdTriggerCompactsWithoutRetry(t *testing.T) {
	store := session.NewMemStore()
	cfg := config.Default()
	cfg.ContextWindow = 1
	cfg.ReserveTokens = 0
	app := New(Options{
		Config: cfg,
		Store:  store,
		Scripts: []mockprovider.Script{
			{Text: "hello"},
			{Text: "threshold summary"},
		},
	})

	// "hi there" (2 tokens) plus "hello" (1 token) exceeds 1 - 0.
	reply, err := app.Ask(context.Background(), "hi there")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)

	time.Sleep(2 * compact.RetryDelay)
	path, err := store.Path(context.Background(), app.leaf)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, session.EntryCompaction, path[len(path)-1].Kind, "threshold trigger compacts but does not auto-continue")
}

func lastAssistantText(t *testing.T, store *session.MemStore, leaf string) string {
	t.Helper()
	path, err := store.Path(context.Background(), leaf)
	require.NoError(t, err)
	for i := len(path) - 1; i >= 0; i-- {
		m := path[i].Message
		if m == nil || m.Kind != llmtypes.AgentKindLLM || m.LLM.Role != llmtypes.RoleAssistant {
			continue
		}
		return assistantText(*m)
	}
	return ""
}

func TestApp_Ask_ProxyCodecRoundTrip(t *testing.T) {
	app := New(Options{
		Config:     config.Default(),
		ProxyCodec: true,
		Scripts:    []mockprovider.Script{{Text: "hello over the wire"}},
	})

	reply, err := app.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello over the wire", reply)
}
