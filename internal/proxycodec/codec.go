// Package proxycodec implements the optional bandwidth-optimized wire
// format of spec §4.I: the server strips the redundant full-message
// `partial` snapshot from every delta/end event, and the client
// reconstructs an equivalent running partial from the leaner event stream.
// Shares internal/jsonpartial's accumulator with §4.D's direct-transport
// tool-call reconstruction, since both solve exactly the same "assemble a
// JSON object from fragments" problem.
//
// Grounded on spec.md §4.I and §6's wire-format section; no corpus example
// ships a streaming wire-compaction codec of this shape, so the encode/
// decode state machine here is new surface built in the same
// event-driven-mutation style internal/responder already uses for the
// direct-transport path.
package proxycodec

import (
	"github.com/agentcore/runtime/internal/jsonpartial"
	"github.com/agentcore/runtime/internal/llmtypes"
)

// Encode strips Partial from evt, producing the leaner wire event. partial
// is the server's own up-to-date snapshot (the same one direct transport
// would have sent) — used only to look up the fields the client has no
// other way to learn: a tool call's id/name at toolcall_start, a text or
// thinking block's provider signature at its *_end.
func Encode(evt llmtypes.AssistantMessageEvent, partial *llmtypes.Message) llmtypes.ProxyAssistantMessageEvent {
	out := llmtypes.ProxyAssistantMessageEvent{
		Kind:         evt.Kind,
		ContentIndex: evt.ContentIndex,
		Delta:        evt.Delta,
		Content:      evt.Content,
		Thinking:     evt.Thinking,
		DoneReason:   evt.DoneReason,
		ErrReason:    evt.ErrReason,
	}
	if evt.Err != nil {
		out.ErrMessage = evt.Err.Error()
	}

	switch evt.Kind {
	case llmtypes.EvtToolCallStart:
		if block := contentBlockAt(partial, evt.ContentIndex); block != nil && block.ToolCall != nil {
			out.ToolCallID = block.ToolCall.ID
			out.ToolCallName = block.ToolCall.Name
		}
	case llmtypes.EvtTextEnd:
		if block := contentBlockAt(partial, evt.ContentIndex); block != nil && block.Text != nil {
			out.ContentSignature = block.Text.Signature
		}
	case llmtypes.EvtThinkingEnd:
		if block := contentBlockAt(partial, evt.ContentIndex); block != nil && block.Thinking != nil {
			out.ContentSignature = block.Thinking.Signature
		}
	case llmtypes.EvtDone:
		if evt.Final != nil {
			u := evt.Final.Usage
			out.Usage = &u
		}
	}
	return out
}

func contentBlockAt(m *llmtypes.Message, idx int) *llmtypes.ContentBlock {
	if m == nil || idx < 0 || idx >= len(m.AssistantContent) {
		return nil
	}
	return &m.AssistantContent[idx]
}

// Decoder is the client-side half: it consumes a stream of
// ProxyAssistantMessageEvent and reconstructs a running partial message,
// byte-identical (by construction, not just by intent) to what a
// direct-transport stream would have produced, satisfying §4.I's
// determinism requirement.
type Decoder struct {
	partial  llmtypes.Message
	toolArgs map[int]*jsonpartial.Accumulator
}

// NewDecoder starts a fresh decode session for one assistant turn.
func NewDecoder() *Decoder {
	return &Decoder{
		partial:  llmtypes.Message{Role: llmtypes.RoleAssistant},
		toolArgs: map[int]*jsonpartial.Accumulator{},
	}
}

// Decode applies one proxy event to the running partial and returns the
// reconstructed direct-transport-shaped event, with Partial populated (and
// Final populated on done/error, per §4.I: "the client substitutes its
// locally assembled partial as the final message").
func (d *Decoder) Decode(evt llmtypes.ProxyAssistantMessageEvent) llmtypes.AssistantMessageEvent {
	switch evt.Kind {
	case llmtypes.EvtStart:
		d.partial = llmtypes.Message{Role: llmtypes.RoleAssistant}

	case llmtypes.EvtTextStart:
		d.ensureBlock(evt.ContentIndex, llmtypes.ContentText)

	case llmtypes.EvtTextDelta:
		block := d.ensureBlock(evt.ContentIndex, llmtypes.ContentText)
		block.Text.Text += evt.Delta

	case llmtypes.EvtTextEnd:
		block := d.ensureBlock(evt.ContentIndex, llmtypes.ContentText)
		block.Text.Text = evt.Content
		block.Text.Signature = evt.ContentSignature

	case llmtypes.EvtThinkingStart:
		d.ensureBlock(evt.ContentIndex, llmtypes.ContentThinking)

	case llmtypes.EvtThinkingDelta:
		block := d.ensureBlock(evt.ContentIndex, llmtypes.ContentThinking)
		block.Thinking.Text += evt.Delta

	case llmtypes.EvtThinkingEnd:
		block := d.ensureBlock(evt.ContentIndex, llmtypes.ContentThinking)
		block.Thinking.Text = evt.Thinking
		block.Thinking.Signature = evt.ContentSignature

	case llmtypes.EvtToolCallStart:
		block := d.ensureBlock(evt.ContentIndex, llmtypes.ContentToolCall)
		block.ToolCall.ID = evt.ToolCallID
		block.ToolCall.Name = evt.ToolCallName
		d.toolArgs[evt.ContentIndex] = jsonpartial.NewAccumulator()

	case llmtypes.EvtToolCallDelta:
		block := d.ensureBlock(evt.ContentIndex, llmtypes.ContentToolCall)
		acc := d.toolArgs[evt.ContentIndex]
		if acc == nil {
			acc = jsonpartial.NewAccumulator()
			d.toolArgs[evt.ContentIndex] = acc
		}
		acc.Append(evt.Delta)
		if args, err := acc.Snapshot(); err == nil {
			block.ToolCall.Arguments = args
		}

	case llmtypes.EvtToolCallEnd:
		block := d.ensureBlock(evt.ContentIndex, llmtypes.ContentToolCall)
		if acc := d.toolArgs[evt.ContentIndex]; acc != nil {
			if args, err := acc.Freeze(); err == nil {
				block.ToolCall.Arguments = args
			}
			delete(d.toolArgs, evt.ContentIndex)
		}
	}

	clone := d.partial.Clone()
	out := llmtypes.AssistantMessageEvent{
		Kind:         evt.Kind,
		ContentIndex: evt.ContentIndex,
		Delta:        evt.Delta,
		Content:      evt.Content,
		Thinking:     evt.Thinking,
		DoneReason:   evt.DoneReason,
		ErrReason:    evt.ErrReason,
		Partial:      &clone,
	}
	if evt.Kind == llmtypes.EvtToolCallEnd {
		if block := contentBlockAt(&clone, evt.ContentIndex); block != nil && block.ToolCall != nil {
			out.ToolCall = block.ToolCall
		}
	}

	if evt.Kind == llmtypes.EvtDone || evt.Kind == llmtypes.EvtError {
		final := clone
		final.StopReason = evt.DoneReason
		if evt.Usage != nil {
			final.Usage = *evt.Usage
		}
		if evt.ErrMessage != "" {
			final.ErrorMessage = evt.ErrMessage
			final.StopReason = llmtypes.StopReasonError
		}
		out.Final = &final
	}
	return out
}

// ensureBlock grows d.partial.AssistantContent to include idx, allocating a
// new block of the given kind if one doesn't already exist there.
func (d *Decoder) ensureBlock(idx int, kind llmtypes.ContentKind) *llmtypes.ContentBlock {
	for len(d.partial.AssistantContent) <= idx {
		d.partial.AssistantContent = append(d.partial.AssistantContent, llmtypes.ContentBlock{})
	}
	block := &d.partial.AssistantContent[idx]
	if block.Kind == kind {
		return block
	}
	block.Kind = kind
	switch kind {
	case llmtypes.ContentText:
		block.Text = &llmtypes.TextBlock{}
	case llmtypes.ContentThinking:
		block.Thinking = &llmtypes.ThinkingBlock{}
	case llmtypes.ContentToolCall:
		block.ToolCall = &llmtypes.ToolCallBlock{Arguments: map[string]any{}}
	}
	return block
}
