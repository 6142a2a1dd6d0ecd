package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcore/runtime/internal/llmtypes"
)

func TestApplyCacheMarkers_MarksSystemPromptAndRecentMessages(t *testing.T) {
	ctx := &llmtypes.Context{
		SystemPrompt: "be helpful",
		Messages: []llmtypes.Message{
			llmtypes.NewUserMessage("one"),
			llmtypes.NewUserMessage("two"),
			llmtypes.NewUserMessage("three"),
		},
	}

	ApplyCacheMarkers(ctx, false)

	assert.True(t, ctx.SystemPromptCacheable)
	assert.False(t, ctx.Messages[0].CacheControl)
	assert.True(t, ctx.Messages[1].CacheControl)
	assert.True(t, ctx.Messages[2].CacheControl)
}

func TestApplyCacheMarkers_SummaryShrinksRecentWindow(t *testing.T) {
	ctx := &llmtypes.Context{
		Messages: []llmtypes.Message{
			llmtypes.NewUserMessage("summary of prior turns"),
			llmtypes.NewUserMessage("one"),
			llmtypes.NewUserMessage("two"),
		},
	}

	ApplyCacheMarkers(ctx, true)

	assert.True(t, ctx.Messages[0].CacheControl, "summary message should be marked")
	assert.False(t, ctx.Messages[1].CacheControl)
	assert.True(t, ctx.Messages[2].CacheControl)
}

func TestApplyCacheMarkers_EmptyMessagesIsNoop(t *testing.T) {
	ctx := &llmtypes.Context{SystemPrompt: "be helpful"}
	ApplyCacheMarkers(ctx, false)
	assert.True(t, ctx.SystemPromptCacheable)
	assert.Empty(t, ctx.Messages)
}

func TestHasCompactionSummary(t *testing.T) {
	assert.False(t, hasCompactionSummary(nil))
	assert.False(t, hasCompactionSummary([]llmtypes.AgentMessage{llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage("hi"))}))
	assert.True(t, hasCompactionSummary([]llmtypes.AgentMessage{{Kind: llmtypes.AgentKindCompactionSummary}}))
}
