// Package transform implements the cross-model message transform described
// in spec §4.B: reshaping an ordered message list so it is acceptable to a
// target model, and repairing orphaned tool calls left behind by dropped or
// failed assistant turns.
//
// It is grounded on crush's internal/agent/step_handler.go
// (extractReasoningSignatures, workaroundProviderMediaLimitations — the
// same-model-vs-cross-model signature-stripping idiom) and on
// fatflowers-gar's internal/agent/loop.go skipToolCall/skippedToolCallMessage
// pattern for synthesizing placeholder tool results.
package transform

import (
	"github.com/agentcore/runtime/internal/llmtypes"
)

// NormalizeToolCallIDFunc remaps a tool-call id when crossing models, so a
// provider that requires its own id format doesn't choke on ids minted by a
// different provider (§4.B).
type NormalizeToolCallIDFunc func(id string, target llmtypes.ModelIdentity, source llmtypes.Message) string

// Options configures one transform run.
type Options struct {
	Target          llmtypes.ModelIdentity
	NormalizeToolCallID NormalizeToolCallIDFunc
}

// Transform reshapes messages for Target, running both passes spec §4.B
// requires: per-message same-model/cross-model handling, then orphan tool
// call repair.
func Transform(messages []llmtypes.Message, opts Options) []llmtypes.Message {
	pass1 := firstPass(messages, opts)
	return secondPass(pass1)
}

// firstPass applies the per-message same-model/cross-model rules and
// resolves any tool-call id remapping, rewriting downstream toolResult
// references to match.
func firstPass(messages []llmtypes.Message, opts Options) []llmtypes.Message {
	idRemap := map[string]string{}
	out := make([]llmtypes.Message, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case llmtypes.RoleUser:
			out = append(out, m.Clone())

		case llmtypes.RoleToolResult:
			rm := m.Clone()
			if newID, ok := idRemap[rm.ToolCallID]; ok {
				rm.ToolCallID = newID
			}
			out = append(out, rm)

		case llmtypes.RoleAssistant:
			out = append(out, transformAssistant(m, opts, idRemap))
		}
	}
	return out
}

func transformAssistant(m llmtypes.Message, opts Options, idRemap map[string]string) llmtypes.Message {
	sameModel := m.Identity.SameModel(opts.Target)

	out := m.Clone()
	out.Identity = opts.Target

	var content []llmtypes.ContentBlock
	for _, c := range m.AssistantContent {
		switch c.Kind {
		case llmtypes.ContentThinking:
			nc, keep := transformThinking(c, sameModel)
			if keep {
				content = append(content, nc)
			}

		case llmtypes.ContentText:
			content = append(content, transformText(c, sameModel))

		case llmtypes.ContentToolCall:
			content = append(content, transformToolCall(c, opts, sameModel, m, idRemap))
		}
	}
	out.AssistantContent = content
	return out
}

// transformThinking: same-model + signature present → keep; else if text is
// empty → drop; else if same-model → keep; else → convert to a text block.
func transformThinking(c llmtypes.ContentBlock, sameModel bool) (llmtypes.ContentBlock, bool) {
	th := c.Thinking
	switch {
	case sameModel && th.Signature != "":
		return c, true
	case th.Text == "":
		return llmtypes.ContentBlock{}, false
	case sameModel:
		return c, true
	default:
		return llmtypes.NewTextBlock(th.Text), true
	}
}

// transformText: same-model → keep; else → strip the opaque signature.
func transformText(c llmtypes.ContentBlock, sameModel bool) llmtypes.ContentBlock {
	if sameModel {
		return c
	}
	return llmtypes.NewTextBlock(c.Text.Text)
}

// transformToolCall: cross-model drops the thought signature outright, and
// (if a normalizer is supplied) remaps the tool-call id, recording the
// mapping so subsequent toolResult messages can be rewritten to match.
func transformToolCall(c llmtypes.ContentBlock, opts Options, sameModel bool, source llmtypes.Message, idRemap map[string]string) llmtypes.ContentBlock {
	tc := *c.ToolCall

	if !sameModel {
		tc.ThoughtSignature = ""
		if opts.NormalizeToolCallID != nil {
			newID := opts.NormalizeToolCallID(tc.ID, opts.Target, source)
			idRemap[tc.ID] = newID
			tc.ID = newID
		}
	}
	return llmtypes.NewToolCallBlock(tc)
}

// secondPass scans left-to-right repairing orphaned tool calls: assistant
// messages that errored/aborted are dropped entirely, and any tool-call ids
// left unresolved when a new assistant turn or user message arrives get a
// synthetic "No result provided" toolResult.
func secondPass(messages []llmtypes.Message) []llmtypes.Message {
	out := make([]llmtypes.Message, 0, len(messages))
	pending := map[string]string{} // toolCallID -> toolName, in discovery order
	pendingOrder := []string{}

	flush := func() {
		for _, id := range pendingOrder {
			name := pending[id]
			out = append(out, llmtypes.SyntheticErrorResult(id, name, "No result provided"))
		}
		pending = map[string]string{}
		pendingOrder = nil
	}

	for _, m := range messages {
		switch m.Role {
		case llmtypes.RoleAssistant:
			if m.StopReason == llmtypes.StopReasonError || m.StopReason == llmtypes.StopReasonAborted {
				continue
			}
			calls := m.ToolCalls()
			if len(pendingOrder) > 0 {
				flush()
			}
			out = append(out, m)
			if len(calls) > 0 {
				pending = make(map[string]string, len(calls))
				pendingOrder = make([]string, 0, len(calls))
				for _, tc := range calls {
					pending[tc.ID] = tc.Name
					pendingOrder = append(pendingOrder, tc.ID)
				}
			}

		case llmtypes.RoleToolResult:
			if _, ok := pending[m.ToolCallID]; ok {
				delete(pending, m.ToolCallID)
				pendingOrder = removeID(pendingOrder, m.ToolCallID)
			}
			out = append(out, m)

		case llmtypes.RoleUser:
			flush()
			out = append(out, m)
		}
	}
	flush()
	return out
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
