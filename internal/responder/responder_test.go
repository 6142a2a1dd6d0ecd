package responder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/streamio"
)

func newMockStream(events []llmtypes.AssistantMessageEvent) *EventStream {
	s := streamio.New(
		func(e llmtypes.AssistantMessageEvent) bool { return e.Kind == llmtypes.EvtDone || e.Kind == llmtypes.EvtError },
		func(e llmtypes.AssistantMessageEvent) llmtypes.Message {
			if e.Final != nil {
				return *e.Final
			}
			return llmtypes.Message{}
		},
	)
	for _, e := range events {
		s.Push(e)
	}
	return s
}

func partialWithText(text string) *llmtypes.Message {
	return &llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		AssistantContent: []llmtypes.ContentBlock{llmtypes.NewTextBlock(text)},
	}
}

func TestRunTurn_SimpleEcho(t *testing.T) {
	t.Parallel()

	final := llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		StopReason:       llmtypes.StopReasonStop,
		AssistantContent: []llmtypes.ContentBlock{llmtypes.NewTextBlock("Hello!")},
	}
	events := []llmtypes.AssistantMessageEvent{
		{Kind: llmtypes.EvtStart, Partial: &llmtypes.Message{Role: llmtypes.RoleAssistant}},
		{Kind: llmtypes.EvtTextStart, ContentIndex: 0, Partial: partialWithText("")},
		{Kind: llmtypes.EvtTextDelta, ContentIndex: 0, Delta: "Hello!", Partial: partialWithText("Hello!")},
		{Kind: llmtypes.EvtTextEnd, ContentIndex: 0, Content: "Hello!", Partial: partialWithText("Hello!")},
		{Kind: llmtypes.EvtDone, DoneReason: llmtypes.StopReasonStop, Final: &final},
	}

	var emitted []llmtypes.AgentEventKind
	history := []llmtypes.AgentMessage{llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage("hi"))}

	out, result, err := RunTurn(context.Background(), history, Options{
		Stream: func(ctx context.Context, llmCtx llmtypes.Context, target llmtypes.ModelIdentity, apiKey string) (*EventStream, error) {
			return newMockStream(events), nil
		},
		Emit: func(e llmtypes.AgentEvent) { emitted = append(emitted, e.Kind) },
	})

	require.NoError(t, err)
	assert.Equal(t, llmtypes.StopReasonStop, result.StopReason)
	assert.Equal(t, "Hello!", result.Text())
	require.Len(t, out, 2)
	assert.Equal(t, "Hello!", out[1].LLM.Text())

	require.Len(t, emitted, 5)
	assert.Equal(t, llmtypes.AgentEvtMessageStart, emitted[0])
	assert.Equal(t, llmtypes.AgentEvtMessageUpdate, emitted[1])
	assert.Equal(t, llmtypes.AgentEvtMessageEnd, emitted[4])
}

func TestRunTurn_ToolCallArgumentReconstruction(t *testing.T) {
	t.Parallel()

	toolCallPartial := func() *llmtypes.Message {
		return &llmtypes.Message{
			Role: llmtypes.RoleAssistant,
			AssistantContent: []llmtypes.ContentBlock{
				llmtypes.NewToolCallBlock(llmtypes.ToolCallBlock{ID: "tc1", Name: "ls"}),
			},
		}
	}

	final := llmtypes.Message{
		Role:       llmtypes.RoleAssistant,
		StopReason: llmtypes.StopReasonToolUse,
		AssistantContent: []llmtypes.ContentBlock{
			llmtypes.NewToolCallBlock(llmtypes.ToolCallBlock{ID: "tc1", Name: "ls", Arguments: map[string]any{"path": "."}}),
		},
	}

	events := []llmtypes.AssistantMessageEvent{
		{Kind: llmtypes.EvtStart, Partial: &llmtypes.Message{Role: llmtypes.RoleAssistant}},
		{Kind: llmtypes.EvtToolCallStart, ContentIndex: 0, Partial: toolCallPartial()},
		{Kind: llmtypes.EvtToolCallDelta, ContentIndex: 0, Delta: `{"pa`, Partial: toolCallPartial()},
		{Kind: llmtypes.EvtToolCallDelta, ContentIndex: 0, Delta: `th":"."}`, Partial: toolCallPartial()},
		{Kind: llmtypes.EvtToolCallEnd, ContentIndex: 0, Partial: toolCallPartial()},
		{Kind: llmtypes.EvtDone, DoneReason: llmtypes.StopReasonToolUse, Final: &final},
	}

	var lastUpdatePartial *llmtypes.AgentMessage
	out, result, err := RunTurn(context.Background(), nil, Options{
		Stream: func(ctx context.Context, llmCtx llmtypes.Context, target llmtypes.ModelIdentity, apiKey string) (*EventStream, error) {
			return newMockStream(events), nil
		},
		Emit: func(e llmtypes.AgentEvent) {
			if e.Kind == llmtypes.AgentEvtMessageUpdate {
				lastUpdatePartial = e.Message
			}
		},
	})

	require.NoError(t, err)
	assert.Equal(t, llmtypes.StopReasonToolUse, result.StopReason)
	require.Len(t, out, 1)

	require.NotNil(t, lastUpdatePartial)
	calls := lastUpdatePartial.LLM.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, ".", calls[0].Arguments["path"])
}

func TestRunTurn_DowngradesXHighReasoningWhenModelDoesNotSupportIt(t *testing.T) {
	t.Parallel()

	final := llmtypes.Message{Role: llmtypes.RoleAssistant, StopReason: llmtypes.StopReasonStop}
	events := []llmtypes.AssistantMessageEvent{
		{Kind: llmtypes.EvtDone, DoneReason: llmtypes.StopReasonStop, Final: &final},
	}

	var gotReasoning llmtypes.ReasoningEffort
	_, _, err := RunTurn(context.Background(), nil, Options{
		ReasoningEffort: llmtypes.ReasoningXHigh,
		ModelInfo:       llmtypes.ModelInfo{SupportsXHigh: false},
		Stream: func(ctx context.Context, llmCtx llmtypes.Context, target llmtypes.ModelIdentity, apiKey string) (*EventStream, error) {
			gotReasoning = llmCtx.ReasoningEffort
			return newMockStream(events), nil
		},
		Emit: func(llmtypes.AgentEvent) {},
	})

	require.NoError(t, err)
	assert.Equal(t, llmtypes.ReasoningHigh, gotReasoning)
}

func TestRunTurn_KeepsXHighReasoningWhenModelSupportsIt(t *testing.T) {
	t.Parallel()

	final := llmtypes.Message{Role: llmtypes.RoleAssistant, StopReason: llmtypes.StopReasonStop}
	events := []llmtypes.AssistantMessageEvent{
		{Kind: llmtypes.EvtDone, DoneReason: llmtypes.StopReasonStop, Final: &final},
	}

	var gotReasoning llmtypes.ReasoningEffort
	_, _, err := RunTurn(context.Background(), nil, Options{
		ReasoningEffort: llmtypes.ReasoningXHigh,
		ModelInfo:       llmtypes.ModelInfo{SupportsXHigh: true},
		Stream: func(ctx context.Context, llmCtx llmtypes.Context, target llmtypes.ModelIdentity, apiKey string) (*EventStream, error) {
			gotReasoning = llmCtx.ReasoningEffort
			return newMockStream(events), nil
		},
		Emit: func(llmtypes.AgentEvent) {},
	})

	require.NoError(t, err)
	assert.Equal(t, llmtypes.ReasoningXHigh, gotReasoning)
}
