package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvProvider    = "APPBUILDER_PROVIDER"
	EnvModel       = "APPBUILDER_MODEL"
	EnvProjectRoot = "APPBUILDER_PROJECT_ROOT"
	EnvOllamaHost  = "OLLAMA_HOST"
)

// Load resolves the configuration: defaults, then the YAML file at path, then the
// environment. A missing file is only an error when explicit is true.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if cfg.DatabasePath, err = ExpandHome(cfg.DatabasePath); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg and rejects unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err //nolint:wrapcheck // wrapped by caller with the path
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
		// A model override without a provider override re-infers the provider.
		if os.Getenv(EnvProvider) == "" {
			cfg.Provider = ""
		}
	}
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(EnvProjectRoot); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		cfg.OllamaHost = v
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Marshal renders cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// UserDir returns ~/.appbuilder.
func UserDir() (string, error) {
	return ExpandHome("~/" + UserConfigDir)
}
