// Package agent implements the Agent Loop of spec §4.E: the outer/inner
// scheduling loop over turns, steering/follow-up message injection, and
// tool-call dispatch.
//
// Grounded on fatflowers-gar's internal/agent/loop.go (runLoopHooks,
// runLoop's steering-before-follow-up scheduling, the per-tool-call
// steering poll that breaks the call list and synthesizes skipped results
// with the literal "Skipped due to queued user message." string) and on
// crush's internal/agent/agent.go (sessionAgent.Run's queueing/busy
// tracking and recursive continuation idiom, adapted here to the outer
// loop's follow-up poll instead of crush's context-overflow retry, which
// lives in internal/compact).
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentcore/runtime/internal/csync"
	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/responder"
	"github.com/agentcore/runtime/internal/streamio"
	"github.com/agentcore/runtime/internal/toolrunner"
)

// skippedToolCallMessage is the exact synthetic-result text spec §4.E
// mandates for tool calls skipped by a mid-list steering interruption; the
// literal string is preserved from fatflowers-gar's loop.go, which itself
// mirrors spec.md verbatim.
const skippedToolCallMessage = "Skipped due to queued user message."

// EventStream is the Agent Loop's own terminal-extracting stream: pushing
// an agent_end event auto-ends it with Messages as the resolved result,
// exactly the "agentEvent -> []newMessages" parameterization spec §4.A
// calls out by name.
type EventStream = streamio.EventStream[llmtypes.AgentEvent, []llmtypes.AgentMessage]

// GetSteeringMessagesFunc polls (non-blocking) for messages a caller wants
// injected mid-run, taking priority over follow-up messages (§4.E).
type GetSteeringMessagesFunc func() []llmtypes.AgentMessage

// GetFollowUpMessagesFunc is invoked only once the loop would otherwise
// stop, giving follow-up work lower priority than steering (§4.E).
type GetFollowUpMessagesFunc func(ctx context.Context) ([]llmtypes.AgentMessage, error)

// ErrContinuePrecondition is returned by Continue when the last history
// entry isn't a user/toolResult/custom-user-like message (§4.E).
var ErrContinuePrecondition = errors.New("agent: continue() requires the last message to be a user, toolResult, or user-equivalent custom message")

// Config wires the Agent Loop to its collaborators. Most fields mirror
// responder.Options directly since each turn delegates to responder.RunTurn.
type Config struct {
	SystemPrompt     string
	Tools            []llmtypes.Tool
	Registry         llmtypes.Registry
	Target           llmtypes.ModelIdentity
	ModelInfo        llmtypes.ModelInfo // optional; see responder.Options.ModelInfo
	ReasoningEffort  llmtypes.ReasoningEffort
	Stream           responder.StreamFunction
	TransformContext responder.TransformContextFunc
	ConvertToLLM     llmtypes.ConvertToLLMFunc
	GetAPIKey        responder.GetAPIKeyFunc
	DefaultAPIKey    string

	GetSteeringMessages GetSteeringMessagesFunc
	GetFollowUpMessages GetFollowUpMessagesFunc

	Validator *toolrunner.Validator

	// CacheMarkers, if true, has each turn mark its stable prefix (system
	// prompt, summary message, last few messages) for providers that
	// support prompt caching (supplemented feature #4).
	CacheMarkers bool

	// TitleStream/TitleTarget/OnTitle enable best-effort session title
	// generation from the first user prompt of a run (supplemented
	// feature #1). All three must be set for it to fire.
	TitleStream responder.StreamFunction
	TitleTarget llmtypes.ModelIdentity
	OnTitle     func(title string)

	// OnLoopDetected, if set, is called each time the same tool call is
	// observed repeating past the detection threshold (supplemented feature
	// #2); the detector is reset at the start of every run, not after a
	// detection. Typically wired to metrics.Service.IncLoopDetection.
	OnLoopDetected func()

	// LoopDetectionWindow/LoopDetectionThreshold size the detector's
	// sliding window; zero values fall back to NewLoopDetector's own
	// teacher-grounded defaults. Typically wired from
	// config.RuntimeConfig.LoopDetectionWindow/Threshold.
	LoopDetectionWindow    int
	LoopDetectionThreshold int
}

// Loop is the stateful per-session agent: one Loop owns one running
// history and at most one in-flight Run/Continue at a time, matching §5's
// cooperative single-threaded-per-run concurrency model. Its mutable state
// is held in csync containers rather than a single mutex-guarded struct,
// matching the teacher's own agent.go shape (csync.NewSliceFrom for
// history, csync.NewValue for the single-flight cancel/busy/detector
// fields it swaps as a unit per run).
type Loop struct {
	cfg Config

	history  *csync.Slice[llmtypes.AgentMessage]
	cancel   *csync.Value[context.CancelFunc]
	busy     *csync.Value[bool]
	detector *csync.Value[*LoopDetector]
}

// New constructs a Loop over an optionally non-empty starting history.
func New(cfg Config, history []llmtypes.AgentMessage) *Loop {
	if cfg.Validator == nil {
		cfg.Validator = toolrunner.NewValidator()
	}
	return &Loop{
		cfg:      cfg,
		history:  csync.NewSliceFrom(history),
		cancel:   csync.NewValue[context.CancelFunc](nil),
		busy:     csync.NewValue(false),
		detector: csync.NewValue[*LoopDetector](nil),
	}
}

// History returns a snapshot of the current context.
func (l *Loop) History() []llmtypes.AgentMessage {
	return l.history.Copy()
}

// SetHistory replaces the running context wholesale. Exported for the
// compaction orchestrator's caller: after Execute writes a compaction
// entry to the session log, the Loop's own in-memory history — what every
// subsequent responder.RunTurn actually sends to the model — needs the
// same replacement spliced in, or the compaction has no effect beyond the
// log. Must not be called while a run is in flight.
func (l *Loop) SetHistory(h []llmtypes.AgentMessage) {
	l.setHistory(h)
}

// IsBusy reports whether a run is currently in flight.
func (l *Loop) IsBusy() bool {
	return l.busy.Get()
}

// Run appends prompts as pending messages and enters the scheduling loop
// (§4.E). Returns immediately with an EventStream the caller drains.
func (l *Loop) Run(ctx context.Context, prompts []llmtypes.Message) *EventStream {
	if len(l.history.Copy()) == 0 {
		l.maybeGenerateTitle(ctx, prompts)
	}
	pending := make([]llmtypes.AgentMessage, len(prompts))
	for i, p := range prompts {
		pending[i] = llmtypes.NewLLMAgentMessage(p)
	}
	return l.start(ctx, pending)
}

// Continue re-enters the scheduling loop with no new prompt. Fails fast if
// the last message isn't a user/toolResult-equivalent entry.
func (l *Loop) Continue(ctx context.Context) (*EventStream, error) {
	last, ok := lastMessage(l.history.Copy())
	if ok && !isUserEquivalent(last) {
		return nil, ErrContinuePrecondition
	}
	return l.start(ctx, nil), nil
}

// Abort signals cancellation. The in-flight stream or tool observes it and
// the loop distinguishes clean user-abort from error termination via
// stopReason (§4.E, §5).
func (l *Loop) Abort() {
	if cancel := l.cancel.Get(); cancel != nil {
		cancel()
	}
}

func (l *Loop) start(ctx context.Context, pending []llmtypes.AgentMessage) *EventStream {
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel.Set(cancel)
	l.busy.Set(true)
	l.detector.Set(NewLoopDetector(l.cfg.LoopDetectionWindow, l.cfg.LoopDetectionThreshold))

	stream := streamio.New(
		func(e llmtypes.AgentEvent) bool { return e.Kind == llmtypes.AgentEvtAgentEnd },
		func(e llmtypes.AgentEvent) []llmtypes.AgentMessage { return e.Messages },
	)

	go func() {
		defer func() {
			l.busy.Set(false)
			l.cancel.Set(nil)
		}()
		l.run(runCtx, stream, pending)
	}()

	return stream
}

func lastMessage(history []llmtypes.AgentMessage) (llmtypes.AgentMessage, bool) {
	if len(history) == 0 {
		return llmtypes.AgentMessage{}, false
	}
	return history[len(history)-1], true
}

func isUserEquivalent(m llmtypes.AgentMessage) bool {
	if m.Kind != llmtypes.AgentKindLLM {
		// Custom variants are user-equivalent iff their convertToLlm yields
		// a message; the core can't know that in general, so callers using
		// custom variants as the run boundary must verify this themselves.
		// Treat unknown custom kinds as acceptable rather than blocking.
		return true
	}
	return m.LLM.Role == llmtypes.RoleUser || m.LLM.Role == llmtypes.RoleToolResult
}

// turnStatus distinguishes why the inner loop exited, so the outer loop
// knows whether polling for follow-up messages is appropriate.
type turnStatus int

const (
	statusNormalStop turnStatus = iota
	statusTerminal              // error/aborted: outer loop must not continue
)

func (l *Loop) run(ctx context.Context, stream *EventStream, pending []llmtypes.AgentMessage) {
	var newMessages []llmtypes.AgentMessage
	stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtAgentStart})
	stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtTurnStart})

	firstTurn := true
	for {
		status := l.innerLoop(ctx, stream, &pending, &newMessages, firstTurn)
		firstTurn = false
		if status == statusTerminal {
			break
		}

		followUp, err := l.getFollowUpMessages(ctx)
		if err != nil {
			stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtAgentEnd, Messages: newMessages, Err: err})
			return
		}
		if len(followUp) == 0 {
			break
		}
		pending = followUp
	}

	stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtAgentEnd, Messages: newMessages})
}

func (l *Loop) getFollowUpMessages(ctx context.Context) ([]llmtypes.AgentMessage, error) {
	if l.cfg.GetFollowUpMessages == nil {
		return nil, nil
	}
	return l.cfg.GetFollowUpMessages(ctx)
}

func (l *Loop) getSteeringMessages() []llmtypes.AgentMessage {
	if l.cfg.GetSteeringMessages == nil {
		return nil
	}
	return l.cfg.GetSteeringMessages()
}

// innerLoop runs turns until there are no more tool calls and no pending
// messages, per §4.E's inner-loop body.
func (l *Loop) innerLoop(ctx context.Context, stream *EventStream, pending *[]llmtypes.AgentMessage, newMessages *[]llmtypes.AgentMessage, skipFirstTurnStart bool) turnStatus {
	first := skipFirstTurnStart
	for {
		if !first {
			stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtTurnStart})
		}
		first = false

		l.flushPending(stream, pending, newMessages)

		assistantAgentMsg, status := l.runResponderTurn(ctx, stream, newMessages)
		if status != statusNormalStop {
			return status
		}

		calls := assistantAgentMsg.LLM.ToolCalls()
		if len(calls) == 0 {
			stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtTurnEnd, TurnMessage: &assistantAgentMsg})
			*pending = l.getSteeringMessages()
			if len(*pending) == 0 {
				return statusNormalStop
			}
			continue
		}

		turnToolResults, steeringBatch := l.runToolCalls(ctx, stream, calls, newMessages)
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtTurnEnd, TurnMessage: &assistantAgentMsg, TurnToolResults: turnToolResults})

		if steeringBatch != nil {
			*pending = steeringBatch
		} else {
			*pending = l.getSteeringMessages()
		}
	}
}

func (l *Loop) flushPending(stream *EventStream, pending *[]llmtypes.AgentMessage, newMessages *[]llmtypes.AgentMessage) {
	if len(*pending) == 0 {
		return
	}
	for _, m := range *pending {
		m := m
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtMessageStart, Message: &m})
		l.appendHistory(m)
		*newMessages = append(*newMessages, m)
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtMessageEnd, Message: &m})
	}
	*pending = nil
}

func (l *Loop) runResponderTurn(ctx context.Context, stream *EventStream, newMessages *[]llmtypes.AgentMessage) (llmtypes.AgentMessage, turnStatus) {
	history := l.History()
	DedupeToolOutputs(history)
	updated, assistant, err := responder.RunTurn(ctx, history, responder.Options{
		TransformContext: l.cfg.TransformContext,
		ConvertToLLM:     l.cfg.ConvertToLLM,
		GetAPIKey:        l.cfg.GetAPIKey,
		DefaultAPIKey:    l.cfg.DefaultAPIKey,
		SystemPrompt:     l.cfg.SystemPrompt,
		Tools:            l.cfg.Tools,
		Target:           l.cfg.Target,
		ModelInfo:        l.cfg.ModelInfo,
		ReasoningEffort:  l.cfg.ReasoningEffort,
		Stream:           l.cfg.Stream,
		CacheMarkers:     l.cfg.CacheMarkers,
		Emit:             func(e llmtypes.AgentEvent) { stream.Push(e) },
	})
	if err != nil && assistant.Role == "" {
		// Failed before producing any assistant message at all (an auth
		// failure, a context-transform error, or the stream never
		// starting) — nothing to add to history.
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtAgentEnd, Messages: *newMessages, Err: err})
		return llmtypes.AgentMessage{}, statusTerminal
	}

	l.setHistory(updated)
	assistantAgentMsg := llmtypes.NewLLMAgentMessage(assistant)
	*newMessages = append(*newMessages, assistantAgentMsg)

	if err != nil {
		// A classified stream error (agenterr.StreamError/
		// ContextOverflowError): the failing assistant message is kept in
		// history so a caller can persist it and, on the overflow trigger,
		// delete it before compacting.
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtTurnEnd, TurnMessage: &assistantAgentMsg})
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtAgentEnd, Messages: *newMessages, Err: err})
		return assistantAgentMsg, statusTerminal
	}

	if assistant.StopReason == llmtypes.StopReasonAborted {
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtTurnEnd, TurnMessage: &assistantAgentMsg})
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtAgentEnd, Messages: *newMessages})
		return assistantAgentMsg, statusTerminal
	}
	return assistantAgentMsg, statusNormalStop
}

// runToolCalls executes calls in order, breaking early (with synthetic
// skipped results for the remainder) the moment a steering message shows
// up, per §4.E step 5.
func (l *Loop) runToolCalls(ctx context.Context, stream *EventStream, calls []llmtypes.ToolCallBlock, newMessages *[]llmtypes.AgentMessage) (turnToolResults []llmtypes.AgentMessage, steeringBatch []llmtypes.AgentMessage) {
	for i, call := range calls {
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtToolExecStart, ToolCallID: call.ID, ToolName: call.Name, ToolArgs: call.Arguments})

		result := l.executeOne(ctx, stream, call)

		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolResult: &result, ToolIsError: result.IsError})

		resultMsg := toolResultMessage(call, result)
		agentMsg := llmtypes.NewLLMAgentMessage(resultMsg)
		l.appendHistory(agentMsg)
		*newMessages = append(*newMessages, agentMsg)
		turnToolResults = append(turnToolResults, agentMsg)
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtMessageStart, Message: &agentMsg})
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtMessageEnd, Message: &agentMsg})

		if steering := l.getSteeringMessages(); len(steering) > 0 {
			steeringBatch = steering
			l.skipRemaining(stream, calls[i+1:], newMessages, &turnToolResults)
			break
		}

		if l.detector.Get().Observe(call) {
			if l.cfg.OnLoopDetected != nil {
				l.cfg.OnLoopDetected()
			}
			steeringBatch = []llmtypes.AgentMessage{llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage(loopDetectedNudge))}
			l.skipRemaining(stream, calls[i+1:], newMessages, &turnToolResults)
			break
		}
	}
	return turnToolResults, steeringBatch
}

// loopDetectedNudge is injected as a synthetic user turn once the same tool
// call has repeated past the detection threshold, giving the model a chance
// to break out of the pattern instead of looping silently.
const loopDetectedNudge = "You have repeated the same tool call several times in a row. Stop and try a different approach, or explain why you're stuck."

func (l *Loop) executeOne(ctx context.Context, stream *EventStream, call llmtypes.ToolCallBlock) llmtypes.ToolResult {
	tool, ok := l.cfg.Registry.Lookup(call.Name)
	if !ok {
		return llmtypes.ErrorResult(fmt.Sprintf("unknown tool %q", call.Name))
	}

	args, err := l.cfg.Validator.Validate(call.Name, tool.ParameterSchema, call.Arguments)
	if err != nil {
		return llmtypes.ErrorResult(err.Error())
	}

	return toolrunner.Execute(ctx, tool, call.ID, args, func(partial llmtypes.ToolResult) {
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtToolExecUpdate, ToolCallID: call.ID, ToolName: call.Name, ToolPartial: &partial})
	})
}

func (l *Loop) skipRemaining(stream *EventStream, remaining []llmtypes.ToolCallBlock, newMessages *[]llmtypes.AgentMessage, turnToolResults *[]llmtypes.AgentMessage) {
	for _, call := range remaining {
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtToolExecStart, ToolCallID: call.ID, ToolName: call.Name, ToolArgs: call.Arguments})

		skipped := llmtypes.SyntheticErrorResult(call.ID, call.Name, skippedToolCallMessage)
		result := llmtypes.ToolResult{Content: skipped.ResultContent, IsError: true}
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolResult: &result, ToolIsError: true})

		agentMsg := llmtypes.NewLLMAgentMessage(skipped)
		l.appendHistory(agentMsg)
		*newMessages = append(*newMessages, agentMsg)
		*turnToolResults = append(*turnToolResults, agentMsg)
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtMessageStart, Message: &agentMsg})
		stream.Push(llmtypes.AgentEvent{Kind: llmtypes.AgentEvtMessageEnd, Message: &agentMsg})
	}
}

func toolResultMessage(call llmtypes.ToolCallBlock, result llmtypes.ToolResult) llmtypes.Message {
	return llmtypes.Message{
		Role:          llmtypes.RoleToolResult,
		ToolCallID:    call.ID,
		ToolName:      call.Name,
		ResultContent: result.Content,
		IsError:       result.IsError,
		Details:       result.Details,
		Timestamp:     time.Now(),
	}
}

func (l *Loop) appendHistory(m llmtypes.AgentMessage) {
	l.history.Append(m)
}

func (l *Loop) setHistory(h []llmtypes.AgentMessage) {
	l.history.SetSlice(h)
}
