package compact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agentcore/runtime/internal/agenterr"
	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/session"
)

// TriggerKind is the Compaction Orchestrator's §4.H decision for one
// agent_end observation.
type TriggerKind string

const (
	TriggerNone      TriggerKind = "none"
	TriggerOverflow  TriggerKind = "overflow"  // delete failing entry, compact, then continue()
	TriggerThreshold TriggerKind = "threshold" // compact, no auto-retry
)

// RetryDelay is the pause before an overflow-trigger's automatic continue()
// (§4.H: "≈100 ms... to avoid tight re-entry").
const RetryDelay = 100 * time.Millisecond

// TurnOutcome is the caller-observed result of one agent turn, the input
// to Evaluate's trigger policy. Built from the Agent Loop's agent_end event
// plus whatever usage/model bookkeeping the caller already tracks.
type TurnOutcome struct {
	StopReason llmtypes.StopReason
	Err        error // the escaped error, if any (agent_end.Err or a turn-level error)

	// FailingModel is the model identity that produced an overflow error;
	// compared against CurrentModel to satisfy §4.H's "failing model
	// equals the current model" condition.
	FailingModel llmtypes.ModelIdentity
	CurrentModel llmtypes.ModelIdentity

	ContextTokens int64 // usage.totalTokens of the last usable turn, plus trailing estimate
	ContextWindow int64
	ReserveTokens int64

	// IsContextOverflow classifies Err; nil-safe — a nil classifier never
	// reports overflow (spec §9: "the core requires a boolean classifier
	// ... from the adapter").
	IsContextOverflow func(err error) bool
}

// Evaluate implements §4.H's four-branch trigger policy.
func Evaluate(o TurnOutcome) TriggerKind {
	if o.StopReason == llmtypes.StopReasonAborted {
		return TriggerNone
	}

	if o.Err != nil && isOverflow(o) && o.FailingModel.SameModel(o.CurrentModel) {
		return TriggerOverflow
	}

	if o.StopReason == llmtypes.StopReasonError {
		return TriggerNone
	}

	if o.ContextTokens > o.ContextWindow-o.ReserveTokens {
		return TriggerThreshold
	}

	return TriggerNone
}

func isOverflow(o TurnOutcome) bool {
	var overflow *agenterr.ContextOverflowError
	if errors.As(o.Err, &overflow) {
		return true
	}
	if o.IsContextOverflow != nil {
		return o.IsContextOverflow(o.Err)
	}
	return false
}

// FileEffect classifies a tool by what it does to the filesystem, for the
// §4.H file-operations extraction ("scanning tool calls for known
// file-effecting tools").
type FileEffect int

const (
	FileEffectNone FileEffect = iota
	FileEffectRead
	FileEffectModify
)

// FileEffectClassifier maps a tool name to its filesystem effect. Tool
// names not present are FileEffectNone.
type FileEffectClassifier map[string]FileEffect

// Preparation is the pure-function output of §4.H's preparation step: the
// partitioned message ranges plus the accumulated file-operations sets and
// bookkeeping the execution step needs.
type Preparation struct {
	BoundaryStart int
	BoundaryEnd   int
	CutPoint      CutPoint

	MessagesToSummarize []int // [boundaryStart, historyEnd)
	TurnPrefixMessages  []int // [turnStartIdx, firstKeptIdx), only when splitting
	KeptTail            []int // [firstKeptIdx, boundaryEnd)

	ReadFiles     []string
	ModifiedFiles []string

	PreviousSummary string
	TokensBefore    int64
}

// Prepare implements §4.H's preparation step over a full linear path of
// session entries, locating the previous compaction boundary, running the
// Cut-Point Finder, and extracting/unioning file operations.
func Prepare(entries []session.Entry, keepRecentTokens int64, classify FileEffectClassifier) Preparation {
	boundaryStart := 0
	var prevSummary string
	var prevRead, prevModified []string
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].IsCompactionBoundary() {
			boundaryStart = i + 1
			if c := entries[i].Compaction; c != nil {
				prevSummary = c.Summary
				prevRead = c.ReadFiles
				prevModified = c.ModifiedFiles
			}
			break
		}
	}
	boundaryEnd := len(entries)

	cut := FindCutPoint(entries, boundaryStart, boundaryEnd, keepRecentTokens)

	historyEnd := cut.FirstKeptIdx
	if cut.IsSplitTurn {
		historyEnd = cut.TurnStartIdx
	}

	prep := Preparation{
		BoundaryStart:       boundaryStart,
		BoundaryEnd:         boundaryEnd,
		CutPoint:            cut,
		MessagesToSummarize: indexRange(boundaryStart, historyEnd),
		KeptTail:            indexRange(cut.FirstKeptIdx, boundaryEnd),
		PreviousSummary:     prevSummary,
	}
	if cut.IsSplitTurn {
		prep.TurnPrefixMessages = indexRange(cut.TurnStartIdx, cut.FirstKeptIdx)
	}

	var tokensBefore int64
	for i := boundaryStart; i < boundaryEnd; i++ {
		tokensBefore += session.EstimateTokens(entries[i])
	}
	prep.TokensBefore = tokensBefore

	readSet := map[string]bool{}
	modSet := map[string]bool{}
	for _, f := range prevRead {
		readSet[f] = true
	}
	for _, f := range prevModified {
		modSet[f] = true
	}
	for _, idx := range append(append([]int{}, prep.MessagesToSummarize...), prep.TurnPrefixMessages...) {
		extractFileOps(entries[idx], classify, readSet, modSet)
	}
	prep.ReadFiles = sortedKeys(readSet)
	prep.ModifiedFiles = sortedKeys(modSet)

	return prep
}

func indexRange(from, to int) []int {
	if from >= to {
		return nil
	}
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func extractFileOps(e session.Entry, classify FileEffectClassifier, read, modified map[string]bool) {
	if e.Kind != session.EntryMessage || e.Message == nil || e.Message.Kind != llmtypes.AgentKindLLM {
		return
	}
	for _, call := range e.Message.LLM.ToolCalls() {
		switch classify[call.Name] {
		case FileEffectRead:
			if p, ok := filePathArg(call); ok {
				read[p] = true
			}
		case FileEffectModify:
			if p, ok := filePathArg(call); ok {
				modified[p] = true
			}
		}
	}
}

func filePathArg(call llmtypes.ToolCallBlock) (string, bool) {
	for _, key := range []string{"path", "file_path", "filePath"} {
		if v, ok := call.Arguments[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Execute implements §4.H's execution step: run the appropriate
// summarization(s), append the file-operations section, write the
// compaction entry to store, and return it. Unless BeforeCompact supplies
// its own details, the entry's FirstKeptEntryID is the ID of
// entries[prep.CutPoint.FirstKeptIdx].
func Execute(ctx context.Context, store session.Store, parentID string, entries []session.Entry, prep Preparation, opts SummarizeOptions) (session.Entry, error) {
	var override *CompactOverride
	if opts.BeforeCompact != nil {
		var err error
		override, err = opts.BeforeCompact(ctx, prep)
		if err != nil {
			return session.Entry{}, err
		}
	}

	var details *session.CompactionDetails
	if override != nil && override.Details != nil {
		details = override.Details
	} else {
		summary, err := computeSummary(ctx, entries, prep, opts, override)
		if err != nil {
			return session.Entry{}, err
		}

		var firstKeptID string
		if prep.CutPoint.FirstKeptIdx < len(entries) {
			firstKeptID = entries[prep.CutPoint.FirstKeptIdx].ID
		}
		details = &session.CompactionDetails{
			Summary:          summary,
			FirstKeptEntryID: firstKeptID,
			TokensBefore:     prep.TokensBefore,
			ReadFiles:        prep.ReadFiles,
			ModifiedFiles:    prep.ModifiedFiles,
		}
	}

	entry, err := store.Append(ctx, parentID, session.Entry{Kind: session.EntryCompaction, Compaction: details})
	if err != nil {
		return session.Entry{}, err
	}

	if opts.AfterCompact != nil {
		opts.AfterCompact(ctx, entry)
	}
	return entry, nil
}

// RebuildWorkingHistory reconstructs the []llmtypes.AgentMessage an
// external caller's own in-memory working context (e.g. agent.Loop's
// history, via Loop.SetHistory) should hold immediately after Execute
// writes a compaction entry: the new summary standing in for everything
// summarized away, followed by every entry prep.KeptTail retained, in
// order. A caller that doesn't keep its own copy of history beyond the
// session log has no use for this — the compaction entry already written
// to store is self-sufficient on its own.
func RebuildWorkingHistory(entries []session.Entry, prep Preparation, details session.CompactionDetails) []llmtypes.AgentMessage {
	out := make([]llmtypes.AgentMessage, 0, len(prep.KeptTail)+1)
	out = append(out, llmtypes.NewCompactionSummaryAgentMessage(details.Summary))
	for _, idx := range prep.KeptTail {
		if entries[idx].Kind == session.EntryMessage && entries[idx].Message != nil {
			out = append(out, *entries[idx].Message)
		}
	}
	return out
}

// computeSummary runs the normal summarization path, or takes
// override.Summary verbatim (plus the file-ops section) when a
// BeforeCompactFunc substituted one.
func computeSummary(ctx context.Context, entries []session.Entry, prep Preparation, opts SummarizeOptions, override *CompactOverride) (string, error) {
	if override != nil && override.Summary != nil {
		return *override.Summary + formatFileOpsSection(prep.ReadFiles, prep.ModifiedFiles), nil
	}

	toSummarize := selectEntries(entries, prep.MessagesToSummarize)
	var summary string
	var err error
	if prep.CutPoint.IsSplitTurn {
		turnPrefix := selectEntries(entries, prep.TurnPrefixMessages)
		summary, err = SummarizeSplit(ctx, toSummarize, turnPrefix, prep.PreviousSummary, opts)
	} else {
		summary, err = Summarize(ctx, toSummarize, prep.PreviousSummary, opts)
	}
	if err != nil {
		return "", &agenterr.SummarizationError{Err: err}
	}
	return summary + formatFileOpsSection(prep.ReadFiles, prep.ModifiedFiles), nil
}

func selectEntries(entries []session.Entry, idx []int) []llmtypes.AgentMessage {
	out := make([]llmtypes.AgentMessage, 0, len(idx))
	for _, i := range idx {
		if entries[i].Kind == session.EntryMessage && entries[i].Message != nil {
			out = append(out, *entries[i].Message)
		}
	}
	return out
}

func formatFileOpsSection(readFiles, modifiedFiles []string) string {
	if len(readFiles) == 0 && len(modifiedFiles) == 0 {
		return ""
	}
	out := "\n\n**Files touched in this range:**\n"
	if len(readFiles) > 0 {
		out += fmt.Sprintf("- Read: %v\n", readFiles)
	}
	if len(modifiedFiles) > 0 {
		out += fmt.Sprintf("- Modified: %v\n", modifiedFiles)
	}
	return out
}
