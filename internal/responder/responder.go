// Package responder implements the Assistant Response Streamer of spec
// §4.D: the single-turn flow from a context-transform hook through a
// provider's streamed events to a finalized assistant message, emitting
// message_start/message_update/message_end as it goes.
//
// Grounded on crush's internal/agent/step_handler.go and stream_runner.go —
// the same callback-wiring idiom (a long-lived per-turn handler that
// mutates one in-flight "current assistant" message and persists it after
// every delta) adapted from crush's message.Service-backed persistence to
// this core's in-memory working-context slice.
package responder

import (
	"context"
	"errors"

	"github.com/agentcore/runtime/internal/agenterr"
	"github.com/agentcore/runtime/internal/jsonpartial"
	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/streamio"
	"github.com/agentcore/runtime/internal/transform"
)

// EventStream is the provider-normalized event stream spec §4.D requires a
// StreamFunction to yield.
type EventStream = streamio.EventStream[llmtypes.AssistantMessageEvent, llmtypes.Message]

// StreamFunction invokes a model and returns its streamed response as an
// EventStream. apiKey has already been resolved by GetAPIKey/the fallback
// configured key.
type StreamFunction func(ctx context.Context, llmCtx llmtypes.Context, target llmtypes.ModelIdentity, apiKey string) (*EventStream, error)

// TransformContextFunc is the caller-supplied AgentMessage -> AgentMessage
// hook applied before conversion to LM messages (§4.D step 1).
type TransformContextFunc func(ctx context.Context, history []llmtypes.AgentMessage) ([]llmtypes.AgentMessage, error)

// GetAPIKeyFunc resolves credentials for a provider. Per §7, any error it
// returns is an AuthError that escapes the core uncaught.
type GetAPIKeyFunc func(provider string) (string, error)

// Options configures one call to RunTurn.
type Options struct {
	TransformContext    TransformContextFunc // optional
	ConvertToLLM        llmtypes.ConvertToLLMFunc
	GetAPIKey           GetAPIKeyFunc // optional
	DefaultAPIKey       string
	SystemPrompt        string
	Tools               []llmtypes.Tool
	Target              llmtypes.ModelIdentity
	ReasoningEffort     llmtypes.ReasoningEffort // optional
	// ModelInfo describes Target's capabilities; ModelInfo.NormalizeReasoning
	// is applied to ReasoningEffort right before it crosses into Stream, the
	// one place a reasoning level reaches a provider call (§6). The caller
	// is responsible for setting ModelInfo.SupportsXHigh to match Target —
	// a zero value means "doesn't advertise xhigh," so xhigh silently
	// downgrades to high unless the caller opts in.
	ModelInfo           llmtypes.ModelInfo
	MaxOutputTokens     int64                    // optional
	NormalizeToolCallID transform.NormalizeToolCallIDFunc // optional
	CacheMarkers        bool                               // optional; see ApplyCacheMarkers
	Stream              StreamFunction
	Emit                func(llmtypes.AgentEvent) // required; receives message_start/update/end
}

// RunTurn executes one assistant turn per §4.D's seven-step flow, appending
// the streaming assistant message to history and returning the updated
// history alongside the finalized message.
func RunTurn(ctx context.Context, history []llmtypes.AgentMessage, opts Options) ([]llmtypes.AgentMessage, llmtypes.Message, error) {
	convert := opts.ConvertToLLM
	if convert == nil {
		convert = llmtypes.DefaultConvertToLLM
	}

	transformed := history
	if opts.TransformContext != nil {
		var err error
		transformed, err = opts.TransformContext(ctx, history)
		if err != nil {
			return history, llmtypes.Message{}, err
		}
	}

	lmMessages := convert(transformed)
	lmMessages = transform.Transform(lmMessages, transform.Options{
		Target:              opts.Target,
		NormalizeToolCallID: opts.NormalizeToolCallID,
	})

	apiKey := opts.DefaultAPIKey
	if opts.GetAPIKey != nil {
		key, err := opts.GetAPIKey(opts.Target.Provider)
		if err != nil {
			return history, llmtypes.Message{}, &agenterr.AuthError{Provider: opts.Target.Provider, Err: err}
		}
		apiKey = key
	}

	llmCtx := llmtypes.Context{
		SystemPrompt:    opts.SystemPrompt,
		Tools:           opts.Tools,
		Messages:        lmMessages,
		ReasoningEffort: opts.ModelInfo.NormalizeReasoning(opts.ReasoningEffort),
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	if opts.CacheMarkers {
		ApplyCacheMarkers(&llmCtx, hasCompactionSummary(transformed))
	}

	stream, err := opts.Stream(ctx, llmCtx, opts.Target, apiKey)
	if err != nil {
		return history, llmtypes.Message{}, err
	}

	out := append([]llmtypes.AgentMessage(nil), history...)
	acc := newToolArgAccumulators()

	for {
		evt, ok := stream.Next(ctx)
		if !ok {
			break
		}

		partial := patchToolCallArgs(evt, acc)

		switch evt.Kind {
		case llmtypes.EvtStart:
			out = append(out, llmtypes.NewLLMAgentMessage(valueOrZero(partial)))
			opts.Emit(llmtypes.AgentEvent{
				Kind:              llmtypes.AgentEvtMessageStart,
				Message:           &out[len(out)-1],
				AssistantRawEvent: &evt,
			})

		case llmtypes.EvtTextStart, llmtypes.EvtTextDelta, llmtypes.EvtTextEnd,
			llmtypes.EvtThinkingStart, llmtypes.EvtThinkingDelta, llmtypes.EvtThinkingEnd,
			llmtypes.EvtToolCallStart, llmtypes.EvtToolCallDelta, llmtypes.EvtToolCallEnd:
			replaceLast(out, valueOrZero(partial))
			opts.Emit(llmtypes.AgentEvent{
				Kind:              llmtypes.AgentEvtMessageUpdate,
				Message:           &out[len(out)-1],
				AssistantRawEvent: &evt,
			})

		case llmtypes.EvtDone, llmtypes.EvtError:
			final, _ := stream.Result(ctx)
			final = withIdentity(final, opts.Target)
			if len(out) > len(history) {
				replaceLast(out, final)
			} else {
				out = append(out, llmtypes.NewLLMAgentMessage(final))
			}
			opts.Emit(llmtypes.AgentEvent{
				Kind:              llmtypes.AgentEvtMessageEnd,
				Message:           &out[len(out)-1],
				AssistantRawEvent: &evt,
			})
			if evt.Kind == llmtypes.EvtError && evt.ErrReason == llmtypes.ReasonError {
				return out, final, wrapStreamError(opts.Target.Provider, evt.Err)
			}
			return out, final, nil
		}
	}

	// Stream ended without a done/error event (context canceled mid-flight).
	final, ok := stream.Result(ctx)
	if !ok {
		final = llmtypes.Message{Role: llmtypes.RoleAssistant, StopReason: llmtypes.StopReasonAborted}
	}
	final = withIdentity(final, opts.Target)
	if len(out) > len(history) {
		replaceLast(out, final)
	} else {
		out = append(out, llmtypes.NewLLMAgentMessage(final))
	}
	return out, final, nil
}

// withIdentity stamps the turn's target model onto the finalized assistant
// message so later turns can tell same-model history from cross-model
// history via ModelIdentity.SameModel — providers only receive target as an
// argument and aren't required to echo it back onto the Message they return.
func withIdentity(m llmtypes.Message, target llmtypes.ModelIdentity) llmtypes.Message {
	if m.Role == llmtypes.RoleAssistant {
		m.Identity = target
	}
	return m
}

// wrapStreamError classifies a provider-reported error for §7's error
// hierarchy: an already-typed *agenterr.StreamError (or its
// ContextOverflowError sub-kind) from the adapter passes through
// unchanged, anything else becomes a plain StreamError so the caller can
// still errors.As for it generically.
func wrapStreamError(provider string, err error) error {
	if err == nil {
		err = errors.New("stream error")
	}
	var overflow *agenterr.ContextOverflowError
	if errors.As(err, &overflow) {
		return err
	}
	var streamErr *agenterr.StreamError
	if errors.As(err, &streamErr) {
		return err
	}
	return &agenterr.StreamError{Provider: provider, Err: err}
}

func replaceLast(out []llmtypes.AgentMessage, m llmtypes.Message) {
	if len(out) == 0 {
		return
	}
	out[len(out)-1] = llmtypes.NewLLMAgentMessage(m)
}

func valueOrZero(m *llmtypes.Message) llmtypes.Message {
	if m == nil {
		return llmtypes.Message{}
	}
	return *m
}

// toolArgAccumulators tracks one jsonpartial.Accumulator per content index
// so toolcall_delta fragments reconstruct progressively (§4.D).
type toolArgAccumulators struct {
	byIndex map[int]*jsonpartial.Accumulator
}

func newToolArgAccumulators() *toolArgAccumulators {
	return &toolArgAccumulators{byIndex: map[int]*jsonpartial.Accumulator{}}
}

// patchToolCallArgs clones evt.Partial (if present) and, for toolcall
// events, overwrites the addressed content block's Arguments with the
// accumulator's latest repaired-and-decoded snapshot, freezing on
// toolcall_end.
func patchToolCallArgs(evt llmtypes.AssistantMessageEvent, acc *toolArgAccumulators) *llmtypes.Message {
	if evt.Partial == nil {
		return nil
	}
	clone := evt.Partial.Clone()

	switch evt.Kind {
	case llmtypes.EvtToolCallStart:
		acc.byIndex[evt.ContentIndex] = jsonpartial.NewAccumulator()

	case llmtypes.EvtToolCallDelta:
		a := acc.byIndex[evt.ContentIndex]
		if a == nil {
			a = jsonpartial.NewAccumulator()
			acc.byIndex[evt.ContentIndex] = a
		}
		a.Append(evt.Delta)
		if args, err := a.Snapshot(); err == nil {
			setToolCallArgs(&clone, evt.ContentIndex, args)
		}

	case llmtypes.EvtToolCallEnd:
		a := acc.byIndex[evt.ContentIndex]
		if a != nil {
			if args, err := a.Freeze(); err == nil {
				setToolCallArgs(&clone, evt.ContentIndex, args)
			}
			delete(acc.byIndex, evt.ContentIndex)
		}
	}
	return &clone
}

func setToolCallArgs(m *llmtypes.Message, contentIndex int, args map[string]any) {
	if contentIndex < 0 || contentIndex >= len(m.AssistantContent) {
		return
	}
	block := &m.AssistantContent[contentIndex]
	if block.Kind != llmtypes.ContentToolCall || block.ToolCall == nil {
		return
	}
	block.ToolCall.Arguments = args
}
