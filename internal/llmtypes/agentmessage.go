package llmtypes

// AgentMessageKind discriminates the AgentMessage union: the three LM
// message roles plus caller-defined custom variants (§3: "AgentMessage =
// Message ∪ custom variants").
type AgentMessageKind string

const (
	AgentKindLLM               AgentMessageKind = "llm"
	AgentKindBashExecution     AgentMessageKind = "bash_execution"
	AgentKindCustom            AgentMessageKind = "custom"
	AgentKindBranchSummary     AgentMessageKind = "branch_summary"
	AgentKindCompactionSummary AgentMessageKind = "compaction_summary"
)

// AgentMessage wraps a Message plus whatever custom variants a deployment
// registers. CustomPayload/CustomTag are only meaningful when Kind is not
// AgentKindLLM; they are opaque to the core and interpreted by the
// caller-supplied ConvertToLLM.
type AgentMessage struct {
	Kind          AgentMessageKind
	LLM           Message // valid when Kind == AgentKindLLM
	CustomTag     string  // e.g. "bashExecution", "custom", "branchSummary"
	CustomPayload any
}

// ConvertToLLMFunc maps a slice of AgentMessage to the LM Messages actually
// sent to a model. Variants the mapper returns no Message for are dropped
// from LM context (§3: "Variants the mapper returns empty for are dropped").
type ConvertToLLMFunc func(history []AgentMessage) []Message

// DefaultConvertToLLM implements the trivial mapping used when no custom
// variants are registered: pass LLM-kind and compaction-summary messages
// through (both carry a real Message a model needs to see), drop every
// caller-defined custom variant.
func DefaultConvertToLLM(history []AgentMessage) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Kind == AgentKindLLM || m.Kind == AgentKindCompactionSummary {
			out = append(out, m.LLM)
		}
	}
	return out
}

// NewLLMAgentMessage wraps a Message as an AgentMessage of kind
// AgentKindLLM, the common case for user/assistant/toolResult entries
// pushed onto a running context.
func NewLLMAgentMessage(m Message) AgentMessage {
	return AgentMessage{Kind: AgentKindLLM, LLM: m}
}

// NewCompactionSummaryAgentMessage wraps a compaction's summary text as the
// assistant-equivalent turn that stands in for everything compacted away.
// Kept distinct from AgentKindLLM so ApplyCacheMarkers' hasCompactionSummary
// check and the cut-point finder's boundary logic can tell it apart from an
// ordinary assistant reply, even though DefaultConvertToLLM sends both to
// the model the same way.
func NewCompactionSummaryAgentMessage(summary string) AgentMessage {
	m := Message{
		Role:             RoleAssistant,
		AssistantContent: []ContentBlock{NewTextBlock(summary)},
		StopReason:       StopReasonStop,
	}
	return AgentMessage{Kind: AgentKindCompactionSummary, LLM: m}
}
