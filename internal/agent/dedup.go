package agent

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/agentcore/runtime/internal/llmtypes"
)

// dedupeReference replaces a redundant repeated tool result: only the LAST
// occurrence of identical content keeps its full text, matching the
// teacher's content_dedup.go policy (the model always sees the freshest
// copy; earlier occurrences collapse into a reference once re-confirmed
// unchanged).
const dedupeReference = "[content unchanged — see the later occurrence in this conversation]"

// dedupeMinContentLen is the size below which a result isn't worth
// collapsing — generalized from the teacher's View-tool-specific regex
// (which only ever matched large file dumps) into a plain length threshold
// that applies to any tool's text output.
const dedupeMinContentLen = 200

type contentLocation struct {
	msgIdx, blockIdx int
}

// DedupeToolOutputs collapses all but the last occurrence of
// byte-identical, large tool-result text within history, replacing earlier
// occurrences with dedupeReference. Messages are modified in place. Returns
// the number of results collapsed.
func DedupeToolOutputs(history []llmtypes.AgentMessage) int {
	byHash := map[string][]contentLocation{}

	for i := range history {
		m := &history[i]
		if m.Kind != llmtypes.AgentKindLLM || m.LLM.Role != llmtypes.RoleToolResult {
			continue
		}
		for j := range m.LLM.ResultContent {
			block := m.LLM.ResultContent[j]
			if block.Kind != llmtypes.ResultContentText || len(block.Text) < dedupeMinContentLen {
				continue
			}
			hash := hashContent(block.Text)
			byHash[hash] = append(byHash[hash], contentLocation{msgIdx: i, blockIdx: j})
		}
	}

	count := 0
	for _, locs := range byHash {
		if len(locs) < 2 {
			continue
		}
		for _, loc := range locs[:len(locs)-1] {
			history[loc.msgIdx].LLM.ResultContent[loc.blockIdx].Text = dedupeReference
			count++
		}
	}
	return count
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:8])
}
