package responder

import "github.com/agentcore/runtime/internal/llmtypes"

// CacheMarkerCount is how many of the most recent messages ApplyCacheMarkers
// marks stable, mirroring crush's "last 2 messages" window (reduced to 1
// when a summary message is already pinned, to stay under the 4-block
// cache_control limit most providers enforce).
const CacheMarkerCount = 2

// ApplyCacheMarkers marks the stable prefix of a turn's context for
// providers that support prompt caching: the system prompt, the first user
// message when it's a compaction summary, and the last few messages.
// Grounded on crush's agent.go applyCacheMarkers, adapted from its
// message-list-only model (which carries the system prompt as a message
// with MessageRoleSystem) to this core's split Context{SystemPrompt,
// Messages} shape — the system prompt is marked via
// llmtypes.Context.SystemPromptCacheable instead of a message in the
// slice. Messages are modified in place, matching the teacher's mutation.
func ApplyCacheMarkers(ctx *llmtypes.Context, hasSummary bool) {
	if ctx.SystemPrompt != "" {
		ctx.SystemPromptCacheable = true
	}
	messages := ctx.Messages
	if len(messages) == 0 {
		return
	}

	if hasSummary {
		for i := range messages {
			if messages[i].Role == llmtypes.RoleUser {
				messages[i].CacheControl = true
				break
			}
		}
	}

	// Mark the last N messages (or last 1 if hasSummary, to stay under
	// Anthropic's 4-block cache_control limit).
	markCount := CacheMarkerCount
	if hasSummary {
		markCount = 1
	}
	for i := range messages {
		if i > len(messages)-markCount-1 {
			messages[i].CacheControl = true
		}
	}
}

// hasCompactionSummary reports whether history carries a compaction summary
// entry, the signal ApplyCacheMarkers uses to decide whether the "summary
// message" cache breakpoint applies and to shrink the recent-message window
// accordingly.
func hasCompactionSummary(history []llmtypes.AgentMessage) bool {
	for _, m := range history {
		if m.Kind == llmtypes.AgentKindCompactionSummary {
			return true
		}
	}
	return false
}
