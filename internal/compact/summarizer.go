package compact

import (
	"context"
	"fmt"

	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/responder"
	"github.com/agentcore/runtime/internal/session"
	"golang.org/x/sync/errgroup"
)

// Literal prompt bodies from spec §4.G. Rendered as user messages; the
// caller supplies whatever opaque system preamble it wants via
// SummarizeOptions.SystemPrompt.
const (
	initialSummaryPrompt = `Produce a structured checkpoint of this conversation so far, with exactly these sections:

Goal
Constraints & Preferences
Progress (Done / In Progress / Blocked)
Key Decisions
Next Steps
Critical Context

Preserve exact file paths, function names, and error strings verbatim.`

	updateSummaryPromptHeader = `You are given a previous summary in <previous-summary> tags and new messages since then. Produce the same structure as before (Goal, Constraints & Preferences, Progress (Done / In Progress / Blocked), Key Decisions, Next Steps, Critical Context), merging the new messages into it: move completed items, preserve decisions, remove resolved blockers, and retain precise identifiers.

<previous-summary>
%s
</previous-summary>`

	turnPrefixSummaryPrompt = `This is a truncated prefix of one conversational turn. Produce exactly these sections:

Original Request
Early Progress
Context for Suffix`
)

// summaryBudget and turnPrefixBudget implement §4.G's output-token budgets: ⌊0.8·reserveTokens⌋
// for the initial/update summary, ⌊0.5·reserveTokens⌋ for the turn-prefix
// summary.
func summaryBudget(reserveTokens int64) int64  { return (reserveTokens * 8) / 10 }
func turnPrefixBudget(reserveTokens int64) int64 { return reserveTokens / 2 }

// SummarizeOptions configures a call to Summarize.
type SummarizeOptions struct {
	SystemPrompt  string
	Target        llmtypes.ModelIdentity
	Stream        responder.StreamFunction
	GetAPIKey     responder.GetAPIKeyFunc
	DefaultAPIKey string
	ReserveTokens int64

	// BeforeCompact/AfterCompact are the §4.H extension hooks, modeled the
	// same way internal/agent exposes GetSteeringMessages/
	// GetFollowUpMessages: caller-supplied functions rather than an event
	// bus or plugin registry. See BeforeCompactFunc/AfterCompactFunc.
	BeforeCompact BeforeCompactFunc
	AfterCompact  AfterCompactFunc
}

// CompactOverride is what a BeforeCompactFunc may return to substitute
// Execute's computed summary/details. A nil field leaves that part of
// Execute's own computation in place; both may be set independently.
type CompactOverride struct {
	Summary *string
	Details *session.CompactionDetails
}

// BeforeCompactFunc is called once Prepare's output is known and before any
// summarization call runs. Returning a non-nil *CompactOverride substitutes
// part or all of what Execute would otherwise compute; returning a non-nil
// error cancels the compaction entirely (Execute returns that error
// unwrapped, and no entry is written).
type BeforeCompactFunc func(ctx context.Context, prep Preparation) (*CompactOverride, error)

// AfterCompactFunc is called once the compaction entry has been written,
// after Execute returns successfully. Its return value is ignored — this is
// a notification, not a further transform.
type AfterCompactFunc func(ctx context.Context, result session.Entry)

// Summarize runs one of the three §4.G prompts (initial, update, or
// turn-prefix) over messages and returns the assistant's text response.
// previousSummary is empty for an initial summary; non-empty selects the
// update prompt. Failure mode per §4.G: if the model's turn ends with
// stopReason = error, the caller's error is returned unwrapped — no
// automatic retry happens at this layer.
func Summarize(ctx context.Context, messages []llmtypes.AgentMessage, previousSummary string, opts SummarizeOptions) (string, error) {
	prompt := initialSummaryPrompt
	if previousSummary != "" {
		prompt = fmt.Sprintf(updateSummaryPromptHeader, previousSummary)
	}
	return runSummaryTurn(ctx, messages, prompt, summaryBudget(opts.ReserveTokens), opts)
}

// SummarizeTurnPrefix runs the turn-prefix prompt over a truncated turn's
// messages (§4.G, used by the Compaction Orchestrator when the cut point
// splits a turn).
func SummarizeTurnPrefix(ctx context.Context, messages []llmtypes.AgentMessage, opts SummarizeOptions) (string, error) {
	return runSummaryTurn(ctx, messages, turnPrefixSummaryPrompt, turnPrefixBudget(opts.ReserveTokens), opts)
}

// SummarizeSplit runs the history summary and the turn-prefix summary
// concurrently when the cut point splits a turn, joining them with the
// literal separator §4.H's execution step specifies. Grounded on crush's
// agent.go pattern of a single Summarize call; the concurrent join is new
// surface this core's split-turn case requires that crush's sessions
// (which never split a turn) never needed.
func SummarizeSplit(ctx context.Context, historyMessages, turnPrefixMessages []llmtypes.AgentMessage, previousSummary string, opts SummarizeOptions) (string, error) {
	var history, turnPrefix string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = Summarize(gctx, historyMessages, previousSummary, opts)
		return err
	})
	g.Go(func() error {
		var err error
		turnPrefix, err = SummarizeTurnPrefix(gctx, turnPrefixMessages, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	return history + "\n\n---\n\n**Turn Context (split turn):**\n\n" + turnPrefix, nil
}

func runSummaryTurn(ctx context.Context, messages []llmtypes.AgentMessage, promptText string, maxOutputTokens int64, opts SummarizeOptions) (string, error) {
	prompt := llmtypes.NewLLMAgentMessage(llmtypes.NewUserMessage(promptText))
	history := append(append([]llmtypes.AgentMessage(nil), messages...), prompt)

	_, final, err := responder.RunTurn(ctx, history, responder.Options{
		SystemPrompt:    opts.SystemPrompt,
		Target:          opts.Target,
		ReasoningEffort: llmtypes.ReasoningHigh,
		MaxOutputTokens: maxOutputTokens,
		Stream:          opts.Stream,
		GetAPIKey:       opts.GetAPIKey,
		DefaultAPIKey:   opts.DefaultAPIKey,
		Emit:            func(llmtypes.AgentEvent) {},
	})
	if err != nil {
		return "", err
	}
	if final.StopReason == llmtypes.StopReasonError {
		return "", fmt.Errorf("compact: summarization turn ended in error: %s", final.ErrorMessage)
	}
	return final.Text(), nil
}
