// Package config provides configuration loading, the known-model registry, and API
// key lookup for appbuilder.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Model name constants.
const (
	ModelClaudeSonnet45  = "claude-sonnet-4-5"
	ModelClaudeOpus41    = "claude-opus-4-1"
	ModelGPT41           = "gpt-4.1"
	ModelGPT4o           = "gpt-4o"
	ModelOpenAIO3        = "o3"
	ModelGroqGPTOSS120B  = "openai/gpt-oss-120b"
	ModelGroqLlama33     = "llama-3.3-70b-versatile"
	ModelGemini25Pro     = "gemini-2.5-pro"
	ModelGemini25Flash   = "gemini-2.5-flash"
	ModelOllamaQwenCoder = "qwen2.5-coder:7b"
	ModelOllamaLlama31   = "llama3.1:8b"
)

// Defaults.
const (
	DefaultConfigFile         = "appbuilder.yaml"
	DefaultProjectRoot        = "./generated_project"
	DefaultProvider           = ProviderGroq
	DefaultModel              = ModelGroqGPTOSS120B
	DefaultMaxTokens          = 8192
	DefaultTemperature        = 0.3
	DefaultRecursionLimit     = 100
	DefaultAgentMaxIterations = 25
	DefaultStepAttempts       = 3
	DefaultCommandTimeout     = 30 * time.Second
	DefaultLLMTimeout         = 3 * time.Minute
	DefaultOllamaHost         = "http://localhost:11434"
	UserConfigDir             = ".appbuilder"
)

// ModelInfo is static information about a known model.
type ModelInfo struct {
	Provider     string
	MaxOutTokens int
}

// KnownModels maps model names to their provider and output limit.
//
//nolint:gochecknoglobals // static registry
var KnownModels = map[string]ModelInfo{
	ModelClaudeSonnet45:  {Provider: ProviderAnthropic, MaxOutTokens: 64000},
	ModelClaudeOpus41:    {Provider: ProviderAnthropic, MaxOutTokens: 32000},
	ModelGPT41:           {Provider: ProviderOpenAI, MaxOutTokens: 32768},
	ModelGPT4o:           {Provider: ProviderOpenAI, MaxOutTokens: 16384},
	ModelOpenAIO3:        {Provider: ProviderOpenAI, MaxOutTokens: 100000},
	ModelGroqGPTOSS120B:  {Provider: ProviderGroq, MaxOutTokens: 65536},
	ModelGroqLlama33:     {Provider: ProviderGroq, MaxOutTokens: 32768},
	ModelGemini25Pro:     {Provider: ProviderGoogle, MaxOutTokens: 65536},
	ModelGemini25Flash:   {Provider: ProviderGoogle, MaxOutTokens: 65536},
	ModelOllamaQwenCoder: {Provider: ProviderOllama, MaxOutTokens: 8192},
	ModelOllamaLlama31:   {Provider: ProviderOllama, MaxOutTokens: 8192},
}

// ModelNames returns the registered model names, sorted.
func ModelNames() []string {
	names := make([]string, 0, len(KnownModels))
	for name := range KnownModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Providers lists every supported provider.
func Providers() []string {
	return []string{ProviderAnthropic, ProviderOpenAI, ProviderGroq, ProviderGoogle, ProviderOllama}
}

// ProviderForModel returns the provider for a model, from the registry or from
// well-known name prefixes.
func ProviderForModel(model string) (string, error) {
	if info, ok := KnownModels[model]; ok {
		return info.Provider, nil
	}
	switch {
	case strings.HasPrefix(model, "claude"):
		return ProviderAnthropic, nil
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(model, "gemini"):
		return ProviderGoogle, nil
	case strings.Contains(model, ":"):
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("cannot infer provider for model %q; set provider explicitly", model)
	}
}

// RetryConfig configures the retry middleware around model calls.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
	Jitter        bool          `yaml:"jitter"`
}

// Config is the resolved configuration for one run.
type Config struct {
	ProjectRoot        string        `yaml:"project_root"`
	Provider           string        `yaml:"provider"`
	Model              string        `yaml:"model"`
	DatabasePath       string        `yaml:"database_path"`
	MetricsOut         string        `yaml:"metrics_out"`
	OllamaHost         string        `yaml:"ollama_host"`
	Retry              RetryConfig   `yaml:"retry"`
	Temperature        float32       `yaml:"temperature"`
	MaxTokens          int           `yaml:"max_tokens"`
	RecursionLimit     int           `yaml:"recursion_limit"`
	AgentMaxIterations int           `yaml:"agent_max_iterations"`
	StepAttempts       int           `yaml:"step_attempts"`
	CommandTimeout     time.Duration `yaml:"command_timeout"`
	LLMTimeout         time.Duration `yaml:"llm_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ProjectRoot:        DefaultProjectRoot,
		Provider:           DefaultProvider,
		Model:              DefaultModel,
		DatabasePath:       "~/" + UserConfigDir + "/history.db",
		OllamaHost:         DefaultOllamaHost,
		Temperature:        DefaultTemperature,
		MaxTokens:          DefaultMaxTokens,
		RecursionLimit:     DefaultRecursionLimit,
		AgentMaxIterations: DefaultAgentMaxIterations,
		StepAttempts:       DefaultStepAttempts,
		CommandTimeout:     DefaultCommandTimeout,
		LLMTimeout:         DefaultLLMTimeout,
		Retry: RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        true,
		},
	}
}

// Validate checks ranges and fills the provider from the model when it is empty.
func (c *Config) Validate() error {
	var errs []error

	if c.Model == "" {
		errs = append(errs, errors.New("model must be set"))
	}
	if c.Provider == "" && c.Model != "" {
		provider, err := ProviderForModel(c.Model)
		if err != nil {
			errs = append(errs, err)
		}
		c.Provider = provider
	}
	if c.Provider != "" && !isProvider(c.Provider) {
		errs = append(errs, fmt.Errorf("unknown provider %q (want one of %s)", c.Provider, strings.Join(Providers(), ", ")))
	}
	if strings.TrimSpace(c.ProjectRoot) == "" {
		errs = append(errs, errors.New("project_root must be set"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0, 2]", c.Temperature))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, errors.New("max_tokens must be positive"))
	}
	if c.RecursionLimit <= 0 {
		errs = append(errs, errors.New("recursion_limit must be positive"))
	}
	if c.AgentMaxIterations <= 0 {
		errs = append(errs, errors.New("agent_max_iterations must be positive"))
	}
	if c.StepAttempts <= 0 {
		errs = append(errs, errors.New("step_attempts must be positive"))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, errors.New("command_timeout must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if info, ok := KnownModels[c.Model]; ok && c.MaxTokens > info.MaxOutTokens {
		errs = append(errs, fmt.Errorf("max_tokens %d exceeds %s limit %d", c.MaxTokens, c.Model, info.MaxOutTokens))
	}
	return errors.Join(errs...)
}

func isProvider(name string) bool {
	for _, p := range Providers() {
		if p == name {
			return true
		}
	}
	return false
}
