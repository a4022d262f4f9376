package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", SecretsFileName)
	in := map[string]string{"GROQ_API_KEY": "gsk-123", "ANTHROPIC_API_KEY": "sk-ant"}

	require.NoError(t, EncryptSecretsFile(path, "hunter2", in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := DecryptSecretsFile(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecryptSecretsFile_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), SecretsFileName)
	require.NoError(t, EncryptSecretsFile(path, "right", map[string]string{"k": "v"}))

	_, err := DecryptSecretsFile(path, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestDecryptSecretsFile_TooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), SecretsFileName)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := DecryptSecretsFile(path, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestDecryptSecretsFile_TightensPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), SecretsFileName)
	require.NoError(t, EncryptSecretsFile(path, "pw", map[string]string{"k": "v"}))
	require.NoError(t, os.Chmod(path, 0o644))

	_, err := DecryptSecretsFile(path, "pw")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadSecrets_MissingFile(t *testing.T) {
	secrets, err := LoadSecrets(filepath.Join(t.TempDir(), "none.enc"), "pw")
	require.NoError(t, err)
	assert.Empty(t, secrets)
}

func TestGetAPIKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GOOGLE_GENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := Default()

	_, err := GetAPIKey(&cfg, nil)
	require.ErrorIs(t, err, ErrSecretNotFound)

	t.Setenv("GROQ_API_KEY", "from-env")
	key, err := GetAPIKey(&cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	key, err = GetAPIKey(&cfg, map[string]string{"GROQ_API_KEY": "from-file"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", key, "secrets file takes precedence")

	cfg.Provider = ProviderGoogle
	t.Setenv("GEMINI_API_KEY", "gem")
	key, err = GetAPIKey(&cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "gem", key)

	cfg.Provider = ProviderOllama
	cfg.OllamaHost = "http://box:11434"
	key, err = GetAPIKey(&cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://box:11434", key)

	cfg.Provider = "acme"
	_, err = GetAPIKey(&cfg, nil)
	assert.Error(t, err)
}
