package session

import "github.com/agentcore/runtime/internal/llmtypes"

// imageTokenCost is the fixed per-image token weight spec §4.F assigns,
// since an image's true cost depends on the provider's own vision encoder
// and isn't worth modeling precisely for a conservative cut-point estimate.
const imageTokenCost = 1200

// charsPerToken is the conservative 1-token-per-4-characters heuristic
// spec §4.F specifies, chosen to over-estimate so compaction triggers
// early rather than late.
const charsPerToken = 4

// EstimateTokens implements spec §4.F's token-estimation heuristic. Only
// EntryMessage entries carry weight; every other kind (custom_message,
// branch_summary, compaction, and the pure-metadata kinds) is treated as
// weightless bookkeeping, matching the algorithm's literal "message
// entries only" instruction in step 2 rather than extending it to every
// textual entry kind (recorded as a deliberate literal reading in
// DESIGN.md, since the two surrounding paragraphs are ambiguous about
// whether branch_summary/custom_message should also count).
func EstimateTokens(e Entry) int64 {
	if e.Kind != EntryMessage || e.Message == nil {
		return 0
	}
	return EstimateMessageTokens(e.Message.LLM) + estimateCustomTokens(*e.Message)
}

// EstimateMessageTokens walks every textual field of an LM message and
// converts it via the 4-chars-per-token heuristic, adding the fixed image
// surcharge for each embedded image block.
func EstimateMessageTokens(m llmtypes.Message) int64 {
	var chars int64
	var images int64

	for _, c := range m.UserContent {
		switch c.Kind {
		case llmtypes.UserContentText:
			chars += int64(len(c.Text))
		case llmtypes.UserContentImage:
			images++
		}
	}
	for _, c := range m.AssistantContent {
		switch c.Kind {
		case llmtypes.ContentText:
			if c.Text != nil {
				chars += int64(len(c.Text.Text))
			}
		case llmtypes.ContentThinking:
			if c.Thinking != nil {
				chars += int64(len(c.Thinking.Text))
			}
		case llmtypes.ContentToolCall:
			if c.ToolCall != nil {
				chars += int64(len(c.ToolCall.Name))
				for k, v := range c.ToolCall.Arguments {
					chars += int64(len(k))
					if s, ok := v.(string); ok {
						chars += int64(len(s))
					} else {
						chars += 8 // rough constant for non-string scalars
					}
				}
			}
		}
	}
	for _, c := range m.ResultContent {
		switch c.Kind {
		case llmtypes.ResultContentText:
			chars += int64(len(c.Text))
		case llmtypes.ResultContentImage:
			images++
		}
	}
	chars += int64(len(m.ErrorMessage))

	return chars/charsPerToken + images*imageTokenCost
}

// estimateCustomTokens covers the bashExecution/custom/branchSummary/
// compactionSummary variants, which carry no llmtypes.Message payload of
// their own; CustomPayload is treated as opaque and not sized, since the
// core has no way to introspect a caller-defined type generically.
func estimateCustomTokens(m llmtypes.AgentMessage) int64 {
	if m.Kind == llmtypes.AgentKindLLM {
		return 0
	}
	if s, ok := m.CustomPayload.(string); ok {
		return int64(len(s)) / charsPerToken
	}
	return 0
}
