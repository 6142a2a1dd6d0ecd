package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/runtime/internal/llmtypes"
)

var (
	modelA = llmtypes.ModelIdentity{Provider: "anthropic", API: "messages", ModelID: "claude"}
	modelB = llmtypes.ModelIdentity{Provider: "openai", API: "responses", ModelID: "gpt"}
)

func assistantMsg(identity llmtypes.ModelIdentity, stop llmtypes.StopReason, content ...llmtypes.ContentBlock) llmtypes.Message {
	return llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		Identity:         identity,
		StopReason:       stop,
		AssistantContent: content,
	}
}

func toolCallBlock(id, name string, signature string) llmtypes.ContentBlock {
	c := llmtypes.NewToolCallBlock(llmtypes.ToolCallBlock{ID: id, Name: name, ThoughtSignature: signature})
	return c
}

func TestTransform_SameModelKeepsThinkingSignature(t *testing.T) {
	thinking := llmtypes.NewThinkingBlock("reasoning...", "sig-123")
	messages := []llmtypes.Message{
		assistantMsg(modelA, llmtypes.StopReasonStop, thinking),
	}

	out := Transform(messages, Options{Target: modelA})

	require.Len(t, out, 1)
	require.Len(t, out[0].AssistantContent, 1)
	assert.Equal(t, llmtypes.ContentThinking, out[0].AssistantContent[0].Kind)
	assert.Equal(t, "sig-123", out[0].AssistantContent[0].Thinking.Signature)
}

func TestTransform_CrossModelConvertsThinkingToText(t *testing.T) {
	thinking := llmtypes.NewThinkingBlock("reasoning...", "sig-123")
	messages := []llmtypes.Message{
		assistantMsg(modelA, llmtypes.StopReasonStop, thinking),
	}

	out := Transform(messages, Options{Target: modelB})

	require.Len(t, out, 1)
	require.Len(t, out[0].AssistantContent, 1)
	assert.Equal(t, llmtypes.ContentText, out[0].AssistantContent[0].Kind)
	assert.Equal(t, "reasoning...", out[0].AssistantContent[0].Text.Text)
}

func TestTransform_CrossModelDropsEmptyThinking(t *testing.T) {
	thinking := llmtypes.NewThinkingBlock("", "sig-123")
	messages := []llmtypes.Message{
		assistantMsg(modelA, llmtypes.StopReasonStop, thinking),
	}

	out := Transform(messages, Options{Target: modelB})

	require.Len(t, out, 1)
	assert.Empty(t, out[0].AssistantContent)
}

func TestTransform_CrossModelStripsToolCallSignatureAndRemapsID(t *testing.T) {
	call := toolCallBlock("call-a-1", "echo", "sig-xyz")
	messages := []llmtypes.Message{
		assistantMsg(modelA, llmtypes.StopReasonToolUse, call),
		{
			Role:       llmtypes.RoleToolResult,
			ToolCallID: "call-a-1",
			ToolName:   "echo",
		},
	}

	out := Transform(messages, Options{
		Target: modelB,
		NormalizeToolCallID: func(id string, target llmtypes.ModelIdentity, source llmtypes.Message) string {
			return "remapped-" + id
		},
	})

	require.Len(t, out, 2)
	tc := out[0].AssistantContent[0].ToolCall
	assert.Equal(t, "remapped-call-a-1", tc.ID)
	assert.Empty(t, tc.ThoughtSignature)
	assert.Equal(t, "remapped-call-a-1", out[1].ToolCallID)
}

func TestTransform_DropsErroredAssistantTurns(t *testing.T) {
	messages := []llmtypes.Message{
		assistantMsg(modelA, llmtypes.StopReasonError, llmtypes.NewTextBlock("partial")),
		llmtypes.NewUserMessage("try again"),
	}

	out := Transform(messages, Options{Target: modelA})

	require.Len(t, out, 1)
	assert.Equal(t, llmtypes.RoleUser, out[0].Role)
}

func TestTransform_SynthesizesResultForOrphanedToolCallBeforeUserMessage(t *testing.T) {
	call := toolCallBlock("call-1", "echo", "")
	messages := []llmtypes.Message{
		assistantMsg(modelA, llmtypes.StopReasonToolUse, call),
		llmtypes.NewUserMessage("never got a result"),
	}

	out := Transform(messages, Options{Target: modelA})

	require.Len(t, out, 3)
	assert.Equal(t, llmtypes.RoleToolResult, out[1].Role)
	assert.Equal(t, "call-1", out[1].ToolCallID)
	assert.True(t, out[1].IsError)
	assert.Equal(t, llmtypes.RoleUser, out[2].Role)
}

func TestTransform_ResolvedToolCallIsNotSynthesized(t *testing.T) {
	call := toolCallBlock("call-1", "echo", "")
	messages := []llmtypes.Message{
		assistantMsg(modelA, llmtypes.StopReasonToolUse, call),
		{Role: llmtypes.RoleToolResult, ToolCallID: "call-1", ToolName: "echo"},
		llmtypes.NewUserMessage("thanks"),
	}

	out := Transform(messages, Options{Target: modelA})

	require.Len(t, out, 3)
	for _, m := range out {
		assert.False(t, m.Role == llmtypes.RoleToolResult && m.IsError)
	}
}
