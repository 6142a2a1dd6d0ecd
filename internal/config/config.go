// Package config defines the runtime-tunable knobs the core's callers
// (chiefly cmd/agentctl) wire into the Agent Loop and Compaction
// Orchestrator: keep-recent/reserve token budgets, the default context
// window, the auto-summarize toggle, and the loop-detection window and
// threshold.
//
// Grounded on how the teacher threads a single *config.Config through its
// service constructors, generalized here to this core's collaborators, and
// on gopkg.in/yaml.v3 for the file format — the same library the teacher
// already depends on.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds every value the core's callers need to construct the
// Agent Loop, Compaction Orchestrator, and demo provider consistently.
type RuntimeConfig struct {
	// KeepRecentTokens is the minimum amount of recent history the
	// Cut-Point Finder must preserve uncompacted (§4.F).
	KeepRecentTokens int64 `yaml:"keep_recent_tokens"`

	// ReserveTokens bounds the summarizer's own output budget (§4.G).
	ReserveTokens int64 `yaml:"reserve_tokens"`

	// ContextWindow is the default model context window used when a
	// model's own advertised window isn't otherwise known.
	ContextWindow int64 `yaml:"context_window"`

	// AutoSummarize enables the Compaction Orchestrator's automatic
	// compaction, for both the overflow and the threshold trigger (§4.H).
	AutoSummarize bool `yaml:"auto_summarize"`

	// LoopDetectionWindow is how many recent tool calls the Agent Loop's
	// loop detector keeps in its sliding window.
	LoopDetectionWindow int `yaml:"loop_detection_window"`

	// LoopDetectionThreshold is how many times a signature must recur
	// within the window before the loop detector fires.
	LoopDetectionThreshold int `yaml:"loop_detection_threshold"`
}

// Default returns the configuration used when no file or override is
// present.
func Default() RuntimeConfig {
	return RuntimeConfig{
		KeepRecentTokens:       4000,
		ReserveTokens:          2000,
		ContextWindow:          128000,
		AutoSummarize:          true,
		LoopDetectionWindow:    6,
		LoopDetectionThreshold: 3,
	}
}

// Load reads path (if non-empty) as YAML over the defaults, then applies
// AGENTCTL_* environment overrides, matching the teacher's layered
// file-then-env precedence.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *RuntimeConfig) {
	overrideInt64(&cfg.KeepRecentTokens, "AGENTCTL_KEEP_RECENT_TOKENS")
	overrideInt64(&cfg.ReserveTokens, "AGENTCTL_RESERVE_TOKENS")
	overrideInt64(&cfg.ContextWindow, "AGENTCTL_CONTEXT_WINDOW")
	overrideBool(&cfg.AutoSummarize, "AGENTCTL_AUTO_SUMMARIZE")
	overrideInt(&cfg.LoopDetectionWindow, "AGENTCTL_LOOP_DETECTION_WINDOW")
	overrideInt(&cfg.LoopDetectionThreshold, "AGENTCTL_LOOP_DETECTION_THRESHOLD")
}

func overrideInt64(dst *int64, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = n
	}
}

func overrideInt(dst *int, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func overrideBool(dst *bool, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}
