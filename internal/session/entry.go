// Package session defines the abstract session-entry log spec §3/§6
// requires as an external collaborator of the compaction subsystem
// (internal/compact): a linear, tree-forming sequence of typed entries a
// caller persists however it likes. Persistence itself is out of scope for
// the core (spec.md §1); this package supplies the entry shape plus an
// in-memory reference implementation tests and the demo CLI can use
// directly, and a SQLite-backed reference implementation for anything that
// wants a durable one (internal/session/sqlitelog).
package session

import (
	"time"

	"github.com/agentcore/runtime/internal/llmtypes"
)

// EntryKind enumerates the seven session entry types spec §6 lists.
type EntryKind string

const (
	EntryMessage           EntryKind = "message"
	EntryCustomMessage     EntryKind = "custom_message"
	EntryBranchSummary     EntryKind = "branch_summary"
	EntryCompaction        EntryKind = "compaction"
	EntryThinkingLevelChange EntryKind = "thinking_level_change"
	EntryModelChange        EntryKind = "model_change"
	EntryLabel              EntryKind = "label"
)

// CompactionDetails is the payload of a compaction entry: the summary text
// plus the bookkeeping the orchestrator needs for the next compaction's
// file-operations union (§4.H).
type CompactionDetails struct {
	Summary         string
	FirstKeptEntryID string
	TokensBefore    int64
	ReadFiles       []string
	ModifiedFiles   []string
}

// Entry is one node in the session log. Exactly the field(s) relevant to
// Kind are populated.
type Entry struct {
	ID       string
	ParentID string
	Kind     EntryKind
	Ts       time.Time

	// EntryMessage: wraps the unified AgentMessage union (§3), whose Kind
	// spans user/assistant/toolResult (via AgentKindLLM's embedded Role)
	// plus bashExecution/custom/branchSummary/compactionSummary.
	Message *llmtypes.AgentMessage

	// EntryCustomMessage: an opaque caller-defined payload distinct from
	// the AgentMessage custom variant — a session-log-level extension
	// point rather than an LM-context-level one.
	CustomPayload any

	// EntryBranchSummary: a fork-point summary, written once and never
	// iteratively updated (unlike EntryCompaction's summaries).
	BranchSummaryText string

	// EntryCompaction
	Compaction *CompactionDetails

	// EntryThinkingLevelChange / EntryModelChange / EntryLabel
	ThinkingLevel string
	ModelID       string
	Label         string
}

// IsValidCutPoint reports whether e may legally begin a retained tail
// (§4.F): never a toolResult, and never bare metadata (thinking-level
// change, model change, label, or a compaction marker itself) — those are
// absorbed into whichever tail they precede rather than chosen directly.
func (e Entry) IsValidCutPoint() bool {
	switch e.Kind {
	case EntryMessage:
		if e.Message == nil {
			return false
		}
		if e.Message.Kind == llmtypes.AgentKindLLM {
			return e.Message.LLM.Role != llmtypes.RoleToolResult
		}
		return true // bashExecution / custom / branchSummary / compactionSummary
	case EntryCustomMessage, EntryBranchSummary:
		return true
	default:
		return false // compaction, thinking_level_change, model_change, label
	}
}

// IsMetadata reports whether e is one of the zero-weight bookkeeping kinds
// step 3 of the cut-point algorithm absorbs into an adjacent tail.
func (e Entry) IsMetadata() bool {
	switch e.Kind {
	case EntryThinkingLevelChange, EntryModelChange, EntryLabel:
		return true
	default:
		return false
	}
}

// IsCompactionBoundary reports whether e is a previous compaction marker —
// step 3's leftward metadata expansion stops here.
func (e Entry) IsCompactionBoundary() bool {
	return e.Kind == EntryCompaction
}
