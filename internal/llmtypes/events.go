package llmtypes

// AssistantEventKind enumerates the direct-transport provider event shapes
// from spec §6.
type AssistantEventKind string

const (
	EvtStart         AssistantEventKind = "start"
	EvtTextStart     AssistantEventKind = "text_start"
	EvtTextDelta     AssistantEventKind = "text_delta"
	EvtTextEnd       AssistantEventKind = "text_end"
	EvtThinkingStart AssistantEventKind = "thinking_start"
	EvtThinkingDelta AssistantEventKind = "thinking_delta"
	EvtThinkingEnd   AssistantEventKind = "thinking_end"
	EvtToolCallStart AssistantEventKind = "toolcall_start"
	EvtToolCallDelta AssistantEventKind = "toolcall_delta"
	EvtToolCallEnd   AssistantEventKind = "toolcall_end"
	EvtDone          AssistantEventKind = "done"
	EvtError         AssistantEventKind = "error"
)

// ErrorReason distinguishes a clean user abort from an infrastructural
// error, by reason rather than by exception type (§5).
type ErrorReason string

const (
	ReasonAborted ErrorReason = "aborted"
	ReasonError   ErrorReason = "error"
)

// AssistantMessageEvent is the direct-transport provider event (§6). Exactly
// the fields relevant to Kind are populated. Partial carries the full
// assistant-message snapshot so far, except under the proxy codec.
type AssistantMessageEvent struct {
	Kind AssistantEventKind

	ContentIndex int
	Delta        string // text_delta / thinking_delta payload
	Content      string // text_end's finished text
	Thinking     string // thinking_end's finished text
	ToolCall     *ToolCallBlock // toolcall_end's finished call

	DoneReason StopReason // done's reason ∈ {stop, length, toolUse}
	ErrReason  ErrorReason
	Err        error

	Partial *Message // nil under the proxy codec
	Final   *Message // done/error's fully finalized message, when known
}

// ProxyAssistantMessageEvent is the bandwidth-optimized transport (§6 /
// §4.I): identical shapes minus Partial. ToolCallStart additionally carries
// the tool id/name the client otherwise has no way to learn since it has no
// Partial to introspect.
type ProxyAssistantMessageEvent struct {
	Kind AssistantEventKind

	ContentIndex int
	Delta        string
	Content      string
	Thinking     string

	ToolCallID       string // toolcall_start only
	ToolCallName     string // toolcall_start only
	ContentSignature string // text_end / thinking_end only

	DoneReason StopReason
	ErrReason  ErrorReason
	ErrMessage string

	Usage *Usage
}

// AgentEventKind enumerates the UI-facing agent event shapes (§6).
type AgentEventKind string

const (
	AgentEvtAgentStart        AgentEventKind = "agent_start"
	AgentEvtAgentEnd          AgentEventKind = "agent_end"
	AgentEvtTurnStart         AgentEventKind = "turn_start"
	AgentEvtTurnEnd           AgentEventKind = "turn_end"
	AgentEvtMessageStart      AgentEventKind = "message_start"
	AgentEvtMessageUpdate     AgentEventKind = "message_update"
	AgentEvtMessageEnd        AgentEventKind = "message_end"
	AgentEvtToolExecStart     AgentEventKind = "tool_execution_start"
	AgentEvtToolExecUpdate    AgentEventKind = "tool_execution_update"
	AgentEvtToolExecEnd       AgentEventKind = "tool_execution_end"
)

// AgentEvent is the UI surface emitted by the Agent Loop (§4.E, §6).
type AgentEvent struct {
	Kind AgentEventKind

	// agent_end
	Messages []AgentMessage
	// agent_end. Set either for an escaped error (AuthError and similar,
	// per §7's propagation rule) or for a classified stream error
	// (agenterr.StreamError/ContextOverflowError) the responder returned
	// from a turn, which a caller errors.As over to drive the compaction
	// orchestrator's overflow trigger. A plain stopReason=error turn with
	// no classifiable Go error is still represented purely by
	// TurnMessage.LLM.StopReason, with Err left nil.
	Err error

	// turn_end
	TurnMessage     *AgentMessage
	TurnToolResults []AgentMessage

	// message_start / message_update / message_end
	Message           *AgentMessage
	AssistantRawEvent *AssistantMessageEvent

	// tool_execution_*
	ToolCallID    string
	ToolName      string
	ToolArgs      map[string]any
	ToolPartial   *ToolResult
	ToolResult    *ToolResult
	ToolIsError   bool
}
