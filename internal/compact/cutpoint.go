// Package compact implements the compaction subsystem spec §4.F–H
// describes: finding a legal place to cut a session's history, summarizing
// everything before the cut, and deciding when to do either automatically.
// It operates entirely over session.Entry values from a linear path; it
// never talks to a Store directly, so callers can run it against any
// backing log (internal/session's in-memory or SQLite reference stores, or
// a caller's own).
package compact

import (
	"github.com/agentcore/runtime/internal/llmtypes"
	"github.com/agentcore/runtime/internal/session"
)

// CutPoint is the result of FindCutPoint: where the retained tail begins,
// where its first turn began (which may precede FirstKeptIdx when that
// turn is split), and whether a split occurred.
type CutPoint struct {
	FirstKeptIdx int
	TurnStartIdx int
	IsSplitTurn  bool
}

// FindCutPoint implements spec §4.F's four-step algorithm over
// entries[boundaryStart:boundaryEnd]. entries is the full linear path;
// boundaryStart/boundaryEnd delimit the range under consideration (the
// previous compaction's tail through the present).
func FindCutPoint(entries []session.Entry, boundaryStart, boundaryEnd int, keepRecentTokens int64) CutPoint {
	if boundaryStart >= boundaryEnd {
		return CutPoint{FirstKeptIdx: boundaryStart, TurnStartIdx: boundaryStart, IsSplitTurn: false}
	}

	validIdx := validCutPoints(entries, boundaryStart, boundaryEnd)
	if len(validIdx) == 0 {
		return CutPoint{FirstKeptIdx: boundaryStart, TurnStartIdx: boundaryStart, IsSplitTurn: false}
	}

	cut := selectCutPoint(entries, boundaryStart, boundaryEnd, validIdx, keepRecentTokens)
	cut = expandLeftwardOverMetadata(entries, boundaryStart, cut)

	if isUserMessage(entries[cut]) {
		return CutPoint{FirstKeptIdx: cut, TurnStartIdx: cut, IsSplitTurn: false}
	}

	turnStart := nearestPrecedingTurnStart(entries, boundaryStart, cut)
	return CutPoint{FirstKeptIdx: cut, TurnStartIdx: turnStart, IsSplitTurn: true}
}

// validCutPoints returns, in ascending order, every index in
// [boundaryStart, boundaryEnd) whose entry is a legal cut point.
func validCutPoints(entries []session.Entry, boundaryStart, boundaryEnd int) []int {
	var out []int
	for i := boundaryStart; i < boundaryEnd; i++ {
		if entries[i].IsValidCutPoint() {
			out = append(out, i)
		}
	}
	return out
}

// selectCutPoint walks backward from boundaryEnd-1 accumulating
// session.EstimateTokens for message entries, stopping once the running
// total reaches keepRecentTokens and picking the smallest valid cut point
// at or after that index.
func selectCutPoint(entries []session.Entry, boundaryStart, boundaryEnd int, validIdx []int, keepRecentTokens int64) int {
	var total int64
	for i := boundaryEnd - 1; i >= boundaryStart; i-- {
		if entries[i].Kind == session.EntryMessage {
			total += session.EstimateTokens(entries[i])
		}
		if total >= keepRecentTokens {
			return smallestAtOrAfter(validIdx, i)
		}
	}
	// Never reached the budget: the whole range fits in keepRecentTokens,
	// so keep everything from the first valid cut point onward.
	return validIdx[0]
}

// smallestAtOrAfter returns the smallest element of the ascending slice
// idx that is >= at, falling back to the last element if none qualifies
// (the walk started past every valid cut point).
func smallestAtOrAfter(idx []int, at int) int {
	for _, i := range idx {
		if i >= at {
			return i
		}
	}
	return idx[len(idx)-1]
}

// expandLeftwardOverMetadata absorbs adjacent metadata entries into the
// tail beginning at cut, stopping at a previous compaction boundary or any
// message entry — metadata belongs to whatever tail follows it.
func expandLeftwardOverMetadata(entries []session.Entry, boundaryStart, cut int) int {
	for cut > boundaryStart {
		prev := entries[cut-1]
		if prev.IsCompactionBoundary() || prev.Kind == session.EntryMessage {
			break
		}
		if !prev.IsMetadata() {
			break
		}
		cut--
	}
	return cut
}

// nearestPrecedingTurnStart finds the nearest user or bashExecution
// message at or before cut, within [boundaryStart, cut].
func nearestPrecedingTurnStart(entries []session.Entry, boundaryStart, cut int) int {
	for i := cut; i >= boundaryStart; i-- {
		e := entries[i]
		if e.Kind != session.EntryMessage || e.Message == nil {
			continue
		}
		if isUserMessage(e) || e.Message.Kind == llmtypes.AgentKindBashExecution {
			return i
		}
	}
	return boundaryStart
}

// isUserMessage reports whether e is a user-role message entry. bash
// executions count as turn starts but not as "user messages" for the
// purpose of step 4's no-split check; every other non-LLM kind (custom,
// branchSummary, compactionSummary) is likewise not a user message.
func isUserMessage(e session.Entry) bool {
	if e.Kind != session.EntryMessage || e.Message == nil {
		return false
	}
	return e.Message.Kind == llmtypes.AgentKindLLM && e.Message.LLM.Role == llmtypes.RoleUser
}
