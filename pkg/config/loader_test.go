package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvProvider, EnvModel, EnvProjectRoot, EnvOllamaHost} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingImplicitFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, DefaultProjectRoot, cfg.ProjectRoot)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.True(t, filepath.IsAbs(cfg.DatabasePath))
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	assert.Error(t, err)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "appbuilder.yaml")
	yaml := `
provider: anthropic
model: claude-sonnet-4-5
project_root: /tmp/out
temperature: 0.1
command_timeout: 10s
retry:
  max_attempts: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, ModelClaudeSonnet45, cfg.Model)
	assert.Equal(t, "/tmp/out", cfg.ProjectRoot)
	assert.InDelta(t, 0.1, cfg.Temperature, 1e-6)
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	// Unset keys keep their defaults.
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay)
	assert.Equal(t, DefaultRecursionLimit, cfg.RecursionLimit)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "appbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modle: typo\n"), 0o644))

	_, err := Load(path, true)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModel, ModelGemini25Pro)
	t.Setenv(EnvProjectRoot, "/srv/app")
	t.Setenv(EnvOllamaHost, "gpu-box:11434")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, ModelGemini25Pro, cfg.Model)
	assert.Empty(t, cfg.Provider)
	assert.Equal(t, "/srv/app", cfg.ProjectRoot)
	assert.Equal(t, "http://gpu-box:11434", cfg.OllamaHost)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderGoogle, cfg.Provider)
}

func TestLoad_EnvProviderWinsOverInference(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModel, "my-finetune")
	t.Setenv(EnvProvider, ProviderOpenAI)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/x/y.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.db"), got)

	got, err = ExpandHome("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestMarshalRoundTripsThroughLoad(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Model = ModelGPT41
	cfg.Provider = ProviderOpenAI

	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "appbuilder.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	loaded, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, ModelGPT41, loaded.Model)
	assert.Equal(t, cfg.Retry, loaded.Retry)
}
