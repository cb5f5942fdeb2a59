package config

import (
	"os"
	"path/filepath"
	"testing"

	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "stub", cfg.Generator.Provider)
	assert.Equal(t, "data/registry.json", cfg.Paths.Registry)
}

func TestLoadParsesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  registry: custom/registry.json
eval:
  regression_threshold: 0.95
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom/registry.json", cfg.Paths.Registry)
	assert.Equal(t, 0.95, cfg.Eval.RegressionThreshold)
	// unspecified fields keep their defaults
	assert.Equal(t, "data/queue.json", cfg.Paths.Queue)
}

func TestEnvOverridesSwitchGeneratorProvider(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Generator.Provider)
	assert.Equal(t, "test-key", cfg.Generator.APIKey)
}

func TestSandboxTimeoutFallsBackOnBadDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sandbox.Timeout = "not-a-duration"
	assert.Equal(t, 30*time.Second, cfg.SandboxTimeout())
}
