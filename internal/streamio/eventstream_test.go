package streamio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStream_PushOrdering(t *testing.T) {
	t.Parallel()

	s := New(func(evt int) bool { return evt == -1 }, func(evt int) string { return "done" })
	s.Push(1)
	s.Push(2)
	s.Push(3)

	ctx := context.Background()
	for _, want := range []int{1, 2, 3} {
		evt, ok := s.Next(ctx)
		require.True(t, ok)
		assert.Equal(t, want, evt)
	}
}

func TestEventStream_TerminalResolvesResult(t *testing.T) {
	t.Parallel()

	s := New(func(evt int) bool { return evt < 0 }, func(evt int) string { return "terminal" })
	ctx := context.Background()

	go func() {
		s.Push(1)
		s.Push(2)
		s.Push(-1)
	}()

	r, ok := s.Result(ctx)
	require.True(t, ok)
	assert.Equal(t, "terminal", r)
	assert.True(t, s.Ended())

	// events pushed before the terminal one remain consumable.
	evt, ok := s.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, 1, evt)
}

func TestEventStream_PushAfterEndIsNoop(t *testing.T) {
	t.Parallel()

	s := New(func(evt int) bool { return false }, func(evt int) string { return "" })
	s.End("forced")
	s.Push(99)

	_, ok := s.Next(context.Background())
	assert.False(t, ok, "no events should be observable after End")
}

func TestEventStream_EndWithoutResult(t *testing.T) {
	t.Parallel()

	s := New(func(evt int) bool { return false }, func(evt int) string { return "" })
	s.End()

	_, ok := s.Result(context.Background())
	assert.False(t, ok)
}

func TestEventStream_NextCanceledContext(t *testing.T) {
	t.Parallel()

	s := New(func(evt int) bool { return false }, func(evt int) string { return "" })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := s.Next(ctx)
	assert.False(t, ok)
}

func TestEventStream_ResultBlocksUntilCancel(t *testing.T) {
	t.Parallel()

	s := New(func(evt int) bool { return false }, func(evt int) string { return "" })
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := s.Result(ctx)
	assert.False(t, ok)
}

func TestEventStream_Seq(t *testing.T) {
	t.Parallel()

	s := New(func(evt int) bool { return evt == 3 }, func(evt int) int { return evt })
	s.Push(1)
	s.Push(2)
	s.Push(3)

	var got []int
	for evt := range s.Seq(context.Background()) {
		got = append(got, evt)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

// The two concrete parameterizations spec §4.A calls out.
func TestEventStream_AssistantMessageParameterization(t *testing.T) {
	t.Parallel()

	type assistantEvent struct {
		kind    string
		message string
	}
	s := New(
		func(e assistantEvent) bool { return e.kind == "done" || e.kind == "error" },
		func(e assistantEvent) string { return e.message },
	)
	s.Push(assistantEvent{kind: "text_delta", message: "partial"})
	s.Push(assistantEvent{kind: "done", message: "final text"})

	r, ok := s.Result(context.Background())
	require.True(t, ok)
	assert.Equal(t, "final text", r)
}

func TestEventStream_AgentEventParameterization(t *testing.T) {
	t.Parallel()

	type agentEvent struct {
		kind     string
		messages []string
	}
	s := New(
		func(e agentEvent) bool { return e.kind == "agent_end" },
		func(e agentEvent) []string { return e.messages },
	)
	s.Push(agentEvent{kind: "turn_start"})
	s.Push(agentEvent{kind: "agent_end", messages: []string{"m1", "m2"}})

	r, ok := s.Result(context.Background())
	require.True(t, ok)
	assert.Equal(t, []string{"m1", "m2"}, r)
}
