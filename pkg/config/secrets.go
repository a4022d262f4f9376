package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"

	"appbuilder/pkg/logx"
)

// Secrets file layout: [salt][nonce][ciphertext+tag], JSON map inside.
const (
	SecretsFileName = "secrets.enc"
	EnvPassphrase   = "APPBUILDER_PASSPHRASE"

	saltSize  = 16
	nonceSize = 12
	scryptN   = 32768 // 2^15
	scryptR   = 8
	scryptP   = 1
	keySize   = 32 // AES-256
)

// ErrSecretNotFound is returned when neither the secrets file nor the environment has a key.
var ErrSecretNotFound = errors.New("secret not found")

// SecretsPath returns ~/.appbuilder/secrets.enc.
func SecretsPath() (string, error) {
	dir, err := UserDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SecretsFileName), nil
}

// APIKeyNames lists the secret or environment names that can hold a provider's key,
// in lookup order.
func APIKeyNames(provider string) []string {
	switch provider {
	case ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY"}
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	case ProviderGroq:
		return []string{"GROQ_API_KEY"}
	case ProviderGoogle:
		return []string{"GOOGLE_GENAI_API_KEY", "GEMINI_API_KEY"}
	default:
		return nil
	}
}

// GetAPIKey returns the credential for provider: decrypted secrets first, then the
// environment. Ollama needs no key, so its host URL is returned instead.
func GetAPIKey(cfg *Config, secrets map[string]string) (string, error) {
	if cfg.Provider == ProviderOllama {
		if cfg.OllamaHost != "" {
			return cfg.OllamaHost, nil
		}
		return DefaultOllamaHost, nil
	}

	names := APIKeyNames(cfg.Provider)
	if len(names) == 0 {
		return "", fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	for _, name := range names {
		if v := secrets[name]; v != "" {
			return v, nil
		}
	}
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set %s or run `appbuilder secrets set %s`", ErrSecretNotFound, names[0], names[0])
}

// LoadSecrets decrypts the secrets file at path. A missing file yields an empty map.
func LoadSecrets(path, password string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	return DecryptSecretsFile(path, password)
}

// EncryptSecretsFile encrypts secrets to path with mode 0600.
func EncryptSecretsFile(path, password string, secrets map[string]string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, wipe, err := newGCM(password, salt)
	if err != nil {
		return err
	}
	defer wipe()

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	data := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	data = append(data, salt...)
	data = append(data, nonce...)
	data = append(data, ciphertext...)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile decrypts the secrets at path. Loose permissions are tightened
// to 0600 before reading.
func DecryptSecretsFile(path, password string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}
	if info.Mode().Perm() != 0o600 {
		logx.Warnf("⚠️  Secrets file %s has mode %04o; resetting to 0600", path, info.Mode().Perm())
		if err := os.Chmod(path, 0o600); err != nil {
			return nil, fmt.Errorf("failed to fix file permissions: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	if len(data) < saltSize+nonceSize+16 {
		return nil, errors.New("secrets file is corrupted or invalid format (too small)")
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, wipe, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	defer wipe()

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed (wrong passphrase or corrupted file)")
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}
	if secrets == nil {
		secrets = map[string]string{}
	}
	return secrets, nil
}

// newGCM derives the AES key with scrypt. The returned func zeroes the key.
func newGCM(password string, salt []byte) (cipher.AEAD, func(), error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive key: %w", err)
	}
	wipe := func() {
		for i := range key {
			key[i] = 0
		}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		wipe()
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		wipe()
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, wipe, nil
}
