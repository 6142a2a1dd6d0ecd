package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/agentcore/runtime/internal/llmtypes"
)

// loopDetectionWindowSize and loopDetectionMaxRepeats are the same
// sliding-window shape as the teacher's stream_runner.go
// loopDetectionCondition/hasRepeatedToolCalls, reconstructed here since the
// constants/helper it called live outside the retrieved files: look at the
// last N tool calls, and flag if the same (name, args) pair recurs at least
// M times.
const (
	loopDetectionWindowSize = 6
	loopDetectionMaxRepeats = 3
)

// LoopDetector tracks recent tool-call signatures across a run and flags
// when the model is stuck repeating the same call, spec.md's supplemented
// feature #2.
type LoopDetector struct {
	window     []string
	windowSize int
	maxRepeats int
}

// NewLoopDetector constructs an empty detector for one run. window/maxRepeats
// of 0 fall back to loopDetectionWindowSize/loopDetectionMaxRepeats, so a
// caller that doesn't wire config.RuntimeConfig's loop-detection fields
// through still gets the teacher-grounded defaults.
func NewLoopDetector(window, maxRepeats int) *LoopDetector {
	if window <= 0 {
		window = loopDetectionWindowSize
	}
	if maxRepeats <= 0 {
		maxRepeats = loopDetectionMaxRepeats
	}
	return &LoopDetector{windowSize: window, maxRepeats: maxRepeats}
}

// Observe records one tool call and reports whether the window now shows a
// repeated-call loop.
func (d *LoopDetector) Observe(call llmtypes.ToolCallBlock) bool {
	d.window = append(d.window, signature(call))
	if len(d.window) > d.windowSize {
		d.window = d.window[len(d.window)-d.windowSize:]
	}
	counts := make(map[string]int, len(d.window))
	for _, s := range d.window {
		counts[s]++
		if counts[s] >= d.maxRepeats {
			return true
		}
	}
	return false
}

func signature(call llmtypes.ToolCallBlock) string {
	args, _ := json.Marshal(call.Arguments)
	h := sha256.Sum256(append([]byte(call.Name+"\x00"), args...))
	return hex.EncodeToString(h[:])
}
