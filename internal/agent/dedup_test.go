package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcore/runtime/internal/llmtypes"
)

func toolResultMsg(text string) llmtypes.AgentMessage {
	return llmtypes.NewLLMAgentMessage(llmtypes.Message{
		Role:          llmtypes.RoleToolResult,
		ResultContent: []llmtypes.ResultContentBlock{{Kind: llmtypes.ResultContentText, Text: text}},
	})
}

func TestDedupeToolOutputs_CollapsesAllButLast(t *testing.T) {
	big := strings.Repeat("x", 300)
	history := []llmtypes.AgentMessage{
		toolResultMsg(big),
		llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage("look again")),
		toolResultMsg(big),
	}

	n := DedupeToolOutputs(history)
	assert.Equal(t, 1, n)
	assert.Equal(t, dedupeReference, history[0].LLM.ResultContent[0].Text)
	assert.Equal(t, big, history[2].LLM.ResultContent[0].Text)
}

func TestDedupeToolOutputs_IgnoresShortContent(t *testing.T) {
	history := []llmtypes.AgentMessage{
		toolResultMsg("short"),
		toolResultMsg("short"),
	}
	n := DedupeToolOutputs(history)
	assert.Equal(t, 0, n)
	assert.Equal(t, "short", history[0].LLM.ResultContent[0].Text)
}

func TestDedupeToolOutputs_NoDuplicatesNoChange(t *testing.T) {
	history := []llmtypes.AgentMessage{
		toolResultMsg(strings.Repeat("a", 300)),
		toolResultMsg(strings.Repeat("b", 300)),
	}
	n := DedupeToolOutputs(history)
	assert.Equal(t, 0, n)
}
