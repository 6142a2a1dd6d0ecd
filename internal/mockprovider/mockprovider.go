// Package mockprovider implements a deterministic responder.StreamFunction
// for tests and the demo CLI: a scripted sequence of assistant-message
// events replayed without touching a network. Grounded on fatflowers-gar's
// mock provider (internal/llm/providers/mock/provider.go — a Provider
// struct holding a fixed []Event plus an optional artificial Delay,
// streamed with ctx-cancellation turned into an aborted terminal event).
package mockprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/agentcore/runtime/internal/agenterr"
	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/responder"
	"github.com/agentcore/runtime/internal/streamio"
)

// Script is one canned turn: a plain text reply, a single tool call, or a
// scripted provider failure. Exactly one of Text, ToolCall, or Err should
// be set.
type Script struct {
	Text     string
	ToolCall *llmtypes.ToolCallBlock

	// Err, when set, makes this turn emit a genuine error terminal event
	// (ErrReason: ReasonError) instead of a done event, for exercising the
	// core's provider-error/context-overflow handling without a real
	// network failure. ErrIsContextOverflow marks it the overflow sub-kind
	// §4.H's trigger policy reacts to.
	Err                  error
	ErrIsContextOverflow bool
}

// Provider replays a fixed sequence of Scripts, one per call to Stream,
// cycling back to the start once exhausted. Delay, if set, is applied
// before each event to simulate latency (and exercise ctx cancellation).
type Provider struct {
	Scripts []Script
	Delay   time.Duration

	calls int
}

// Stream implements responder.StreamFunction. It ignores llmCtx/target/
// apiKey beyond validating target.ModelID is non-empty, matching the
// teacher's mock provider's stance that only Events/Delay drive behavior.
func (p *Provider) Stream(ctx context.Context, _ llmtypes.Context, target llmtypes.ModelIdentity, _ string) (*responder.EventStream, error) {
	if target.ModelID == "" {
		return nil, fmt.Errorf("mockprovider: target.ModelID is required")
	}
	if len(p.Scripts) == 0 {
		return nil, fmt.Errorf("mockprovider: no scripts configured")
	}
	script := p.Scripts[p.calls%len(p.Scripts)]
	p.calls++

	s := streamio.New(
		func(e llmtypes.AssistantMessageEvent) bool { return e.Kind == llmtypes.EvtDone || e.Kind == llmtypes.EvtError },
		func(e llmtypes.AssistantMessageEvent) llmtypes.Message {
			if e.Final != nil {
				return *e.Final
			}
			return llmtypes.Message{}
		},
	)

	go p.emit(ctx, s, script, target.Provider)
	return s, nil
}

func (p *Provider) emit(ctx context.Context, s *responder.EventStream, script Script, provider string) {
	events := buildEvents(script, provider)
	for _, evt := range events {
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.Push(abortedEvent())
				return
			case <-timer.C:
			}
		}
		select {
		case <-ctx.Done():
			s.Push(abortedEvent())
			return
		default:
		}
		s.Push(evt)
	}
}

func abortedEvent() llmtypes.AssistantMessageEvent {
	final := &llmtypes.Message{Role: llmtypes.RoleAssistant, StopReason: llmtypes.StopReasonAborted}
	return llmtypes.AssistantMessageEvent{
		Kind:       llmtypes.EvtError,
		ErrReason:  llmtypes.ReasonAborted,
		DoneReason: llmtypes.StopReasonAborted,
		Partial:    final,
		Final:      final,
	}
}

// buildEvents expands one Script into the full start/delta/end/done (or
// start/error) event sequence a real provider adapter would emit.
func buildEvents(script Script, provider string) []llmtypes.AssistantMessageEvent {
	start := &llmtypes.Message{Role: llmtypes.RoleAssistant}

	if script.Err != nil {
		final := &llmtypes.Message{Role: llmtypes.RoleAssistant, StopReason: llmtypes.StopReasonError, ErrorMessage: script.Err.Error()}
		var err error = script.Err
		if script.ErrIsContextOverflow {
			err = agenterr.NewContextOverflowError(provider, script.Err)
		}
		return []llmtypes.AssistantMessageEvent{
			{Kind: llmtypes.EvtStart, Partial: start},
			{
				Kind:       llmtypes.EvtError,
				ErrReason:  llmtypes.ReasonError,
				DoneReason: llmtypes.StopReasonError,
				Err:        err,
				Partial:    final,
				Final:      final,
			},
		}
	}

	if script.ToolCall != nil {
		call := *script.ToolCall
		startBlock := llmtypes.NewToolCallBlock(llmtypes.ToolCallBlock{ID: call.ID, Name: call.Name})
		withCall := &llmtypes.Message{Role: llmtypes.RoleAssistant, AssistantContent: []llmtypes.ContentBlock{startBlock}}
		finalBlock := llmtypes.NewToolCallBlock(call)
		final := &llmtypes.Message{
			Role:             llmtypes.RoleAssistant,
			StopReason:       llmtypes.StopReasonToolUse,
			AssistantContent: []llmtypes.ContentBlock{finalBlock},
		}
		return []llmtypes.AssistantMessageEvent{
			{Kind: llmtypes.EvtStart, Partial: start},
			{Kind: llmtypes.EvtToolCallStart, ContentIndex: 0, Partial: withCall},
			{Kind: llmtypes.EvtToolCallEnd, ContentIndex: 0, ToolCall: &call, Partial: final},
			{Kind: llmtypes.EvtDone, DoneReason: llmtypes.StopReasonToolUse, Final: final},
		}
	}

	textBlock := llmtypes.NewTextBlock("")
	withText := &llmtypes.Message{Role: llmtypes.RoleAssistant, AssistantContent: []llmtypes.ContentBlock{textBlock}}
	fullBlock := llmtypes.NewTextBlock(script.Text)
	full := &llmtypes.Message{Role: llmtypes.RoleAssistant, AssistantContent: []llmtypes.ContentBlock{fullBlock}}
	final := &llmtypes.Message{
		Role:             llmtypes.RoleAssistant,
		StopReason:       llmtypes.StopReasonStop,
		AssistantContent: []llmtypes.ContentBlock{fullBlock},
		Usage:            llmtypes.Usage{InputTokens: int64(len(script.Text)) / 4, OutputTokens: int64(len(script.Text)) / 4},
	}
	return []llmtypes.AssistantMessageEvent{
		{Kind: llmtypes.EvtStart, Partial: start},
		{Kind: llmtypes.EvtTextStart, ContentIndex: 0, Partial: withText},
		{Kind: llmtypes.EvtTextDelta, ContentIndex: 0, Delta: script.Text, Partial: full},
		{Kind: llmtypes.EvtTextEnd, ContentIndex: 0, Content: script.Text, Partial: full},
		{Kind: llmtypes.EvtDone, DoneReason: llmtypes.StopReasonStop, Final: final},
	}
}
