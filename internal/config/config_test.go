package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithNoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep_recent_tokens: 9000\nauto_summarize: false\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), cfg.KeepRecentTokens)
	assert.False(t, cfg.AutoSummarize)
	assert.Equal(t, Default().ReserveTokens, cfg.ReserveTokens)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("AGENTCTL_KEEP_RECENT_TOKENS", "1234")
	t.Setenv("AGENTCTL_AUTO_SUMMARIZE", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), cfg.KeepRecentTokens)
	assert.False(t, cfg.AutoSummarize)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
