// Package llmtypes is the LM-facing data model shared by every core
// subsystem: messages, content blocks, usage accounting, the per-turn
// context, and the tool contract. Nothing in this package talks to a
// network; it is pure data plus the small amount of behavior (cloning,
// content accumulation) every other package needs.
package llmtypes

import (
	"time"

	"github.com/google/uuid"
)

// Role discriminates the top-level Message union.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// StopReason is why an assistant turn stopped generating.
type StopReason string

const (
	StopReasonStop    StopReason = "stop"
	StopReasonLength  StopReason = "length"
	StopReasonToolUse StopReason = "tool_use"
	StopReasonAborted StopReason = "aborted"
	StopReasonError   StopReason = "error"
)

// ContentKind discriminates assistant content blocks.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentThinking ContentKind = "thinking"
	ContentToolCall ContentKind = "tool_call"
)

// TextBlock is raw assistant text. Signature is an opaque provider token
// that must only be replayed to the same model that produced it.
type TextBlock struct {
	Text      string
	Signature string
}

// ThinkingBlock is reasoning text. Like TextBlock's signature, Signature is
// provider-private and only meaningful when replayed to the same model.
type ThinkingBlock struct {
	Text      string
	Signature string
}

// ToolCallBlock is a model-emitted tool invocation. Arguments is an
// arbitrary JSON object (already decoded, not a raw string) once the
// streaming turn has finished; ThoughtSignature mirrors ThinkingBlock's
// rule and is stripped whenever the call is replayed to a different model.
type ToolCallBlock struct {
	ID               string
	Name             string
	Arguments        map[string]any
	ThoughtSignature string
}

// ContentBlock is a tagged union over the three assistant content kinds.
// Exactly one of the Text/Thinking/ToolCall fields is populated, selected
// by Kind.
type ContentBlock struct {
	Kind     ContentKind
	Text     *TextBlock
	Thinking *ThinkingBlock
	ToolCall *ToolCallBlock
}

func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Kind: ContentText, Text: &TextBlock{Text: text}}
}

func NewThinkingBlock(text, signature string) ContentBlock {
	return ContentBlock{Kind: ContentThinking, Thinking: &ThinkingBlock{Text: text, Signature: signature}}
}

func NewToolCallBlock(tc ToolCallBlock) ContentBlock {
	return ContentBlock{Kind: ContentToolCall, ToolCall: &tc}
}

// UserContentKind discriminates user content blocks.
type UserContentKind string

const (
	UserContentText  UserContentKind = "text"
	UserContentImage UserContentKind = "image"
)

// UserContentBlock is one part of a user message.
type UserContentBlock struct {
	Kind      UserContentKind
	Text      string
	ImageData []byte
	MIMEType  string
}

// ResultContentKind discriminates tool-result content blocks.
type ResultContentKind string

const (
	ResultContentText  ResultContentKind = "text"
	ResultContentImage ResultContentKind = "image"
)

// ResultContentBlock is one part of a tool result.
type ResultContentBlock struct {
	Kind      ResultContentKind
	Text      string
	ImageData []byte
	MIMEType  string
}

// Usage records token accounting for one assistant turn. TotalTokens is
// authoritative when positive; callers needing a token count should prefer
// Total() over summing the fields directly.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	CacheRead    int64
	CacheWrite   int64
	TotalTokens  int64
	Cost         Cost
}

// Cost is the estimated dollar cost of one turn, broken down by the rate
// that produced each component (mirrors catwalk.Model's CostPer1M* fields).
type Cost struct {
	Input       float64
	Output      float64
	CacheRead   float64
	CacheWrite  float64
	TotalUSD    float64
	ProviderSet bool // true if a provider-reported cost (e.g. OpenRouter) overrode the computed total
}

// Total returns TotalTokens if positive, else the sum of the components.
func (u Usage) Total() int64 {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens + u.CacheRead + u.CacheWrite
}

// Add accumulates another Usage's components into u and returns the result.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		CacheRead:    u.CacheRead + other.CacheRead,
		CacheWrite:   u.CacheWrite + other.CacheWrite,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
		Cost: Cost{
			Input:      u.Cost.Input + other.Cost.Input,
			Output:     u.Cost.Output + other.Cost.Output,
			CacheRead:  u.Cost.CacheRead + other.Cost.CacheRead,
			CacheWrite: u.Cost.CacheWrite + other.Cost.CacheWrite,
			TotalUSD:   u.Cost.TotalUSD + other.Cost.TotalUSD,
		},
	}
}

// Message is the LM-facing union described in spec §3: user, assistant, or
// toolResult. Exactly the fields relevant to Role are populated.
type Message struct {
	Role Role

	// user
	UserContent []UserContentBlock

	// assistant
	AssistantContent []ContentBlock
	StopReason       StopReason
	Identity         ModelIdentity
	Usage            Usage
	ErrorMessage     string

	// toolResult
	ToolCallID   string
	ToolName     string
	ResultContent []ResultContentBlock
	IsError      bool
	Details      any

	Timestamp time.Time

	// CacheControl marks this message as part of a provider's stable
	// prompt-cache prefix, set by internal/responder.ApplyCacheMarkers.
	// Optional metadata: a StreamFunction that doesn't support prompt
	// caching simply never reads it.
	CacheControl bool
}

// NewUserMessage builds a user message with a single text block.
func NewUserMessage(text string) Message {
	return Message{
		Role:        RoleUser,
		UserContent: []UserContentBlock{{Kind: UserContentText, Text: text}},
		Timestamp:   time.Now(),
	}
}

// ToolCalls returns the tool-call blocks of an assistant message, in order.
func (m Message) ToolCalls() []ToolCallBlock {
	var out []ToolCallBlock
	for _, c := range m.AssistantContent {
		if c.Kind == ContentToolCall && c.ToolCall != nil {
			out = append(out, *c.ToolCall)
		}
	}
	return out
}

// Text concatenates all text blocks of an assistant message.
func (m Message) Text() string {
	var sb []byte
	for _, c := range m.AssistantContent {
		if c.Kind == ContentText && c.Text != nil {
			sb = append(sb, c.Text.Text...)
		}
	}
	return string(sb)
}

// Clone deep-copies a Message so mutation of a returned snapshot never
// affects the original (invariant I4's "consumers see snapshots").
func (m Message) Clone() Message {
	out := m
	if m.UserContent != nil {
		out.UserContent = append([]UserContentBlock(nil), m.UserContent...)
	}
	if m.AssistantContent != nil {
		out.AssistantContent = make([]ContentBlock, len(m.AssistantContent))
		for i, c := range m.AssistantContent {
			out.AssistantContent[i] = c.clone()
		}
	}
	if m.ResultContent != nil {
		out.ResultContent = append([]ResultContentBlock(nil), m.ResultContent...)
	}
	return out
}

func (c ContentBlock) clone() ContentBlock {
	out := c
	if c.Text != nil {
		t := *c.Text
		out.Text = &t
	}
	if c.Thinking != nil {
		t := *c.Thinking
		out.Thinking = &t
	}
	if c.ToolCall != nil {
		tc := *c.ToolCall
		if c.ToolCall.Arguments != nil {
			tc.Arguments = make(map[string]any, len(c.ToolCall.Arguments))
			for k, v := range c.ToolCall.Arguments {
				tc.Arguments[k] = v
			}
		}
		out.ToolCall = &tc
	}
	return out
}

// NewToolCallID generates a unique tool-call id, used by streaming
// providers that don't mint their own.
func NewToolCallID() string {
	return "toolu_" + uuid.NewString()
}

// SyntheticErrorResult builds the "No result provided"/"Skipped due to
// queued user message." synthetic tool results spec §4.B and §4.E require.
func SyntheticErrorResult(toolCallID, toolName, text string) Message {
	return Message{
		Role:       RoleToolResult,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		ResultContent: []ResultContentBlock{
			{Kind: ResultContentText, Text: text},
		},
		IsError:   true,
		Timestamp: time.Now(),
	}
}
