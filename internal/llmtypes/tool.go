package llmtypes

import "context"

// ToolResult is what a Tool's Execute returns: content blocks plus an
// opaque Details payload a caller may inspect (e.g. structured diff info)
// without the core needing to understand its shape.
type ToolResult struct {
	Content []ResultContentBlock
	Details any
	IsError bool
}

// TextResult is a convenience constructor for a single-text-block result.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []ResultContentBlock{{Kind: ResultContentText, Text: text}}}
}

// ErrorResult is a convenience constructor for a single-text-block error
// result.
func ErrorResult(text string) ToolResult {
	return ToolResult{Content: []ResultContentBlock{{Kind: ResultContentText, Text: text}}, IsError: true}
}

// PartialResultFunc receives intermediate ToolResult snapshots during a
// long-running tool execution (§4.C's onPartial).
type PartialResultFunc func(ToolResult)

// Tool is the registry contract the Agent Loop and Tool Executor consume.
// ParameterSchema is a JSON-Schema document (as raw bytes); Validate may be
// nil, in which case arguments are trusted verbatim (§4.C, "restricted
// execution environment").
type Tool struct {
	Name            string
	Label           string
	ParameterSchema []byte
	Validate        func(raw map[string]any) (map[string]any, error)
	Execute         func(ctx context.Context, toolCallID string, args map[string]any, onPartial PartialResultFunc) (ToolResult, error)
}

// Registry resolves a tool by name. A nil Registry value resolves nothing.
type Registry interface {
	Lookup(name string) (Tool, bool)
}

// MapRegistry is the simplest Registry: a name-keyed map, safe to build
// once and share read-only across runs (tool wiring is immutable after
// construction in every example in the corpus).
type MapRegistry map[string]Tool

func (r MapRegistry) Lookup(name string) (Tool, bool) {
	t, ok := r[name]
	return t, ok
}

// Context is the per-turn payload sent to a model: the system prompt, the
// tool registry it may call, and the message history.
type Context struct {
	SystemPrompt string
	Tools        []Tool
	Messages     []Message

	// ReasoningEffort and MaxOutputTokens are zero-valued (ReasoningOff,
	// 0) for an ordinary turn; the Summarizer (§4.G) sets both explicitly
	// since its prompts need "high" reasoning and a bounded output
	// budget that an ordinary agent turn leaves to the provider default.
	ReasoningEffort ReasoningEffort
	MaxOutputTokens int64

	// SystemPromptCacheable marks the system prompt as part of the stable
	// cache prefix, set by internal/responder.ApplyCacheMarkers. A
	// StreamFunction that supports prompt caching may use it to attach a
	// cache breakpoint; one that doesn't is free to ignore it.
	SystemPromptCacheable bool
}
