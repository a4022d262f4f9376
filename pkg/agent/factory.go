// Package agent provides the LLM client factory with middleware chain construction.
package agent

import (
	"fmt"

	"appbuilder/pkg/agent/internal/llmimpl/anthropic"
	"appbuilder/pkg/agent/internal/llmimpl/google"
	"appbuilder/pkg/agent/internal/llmimpl/ollama"
	"appbuilder/pkg/agent/internal/llmimpl/openaiofficial"
	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/middleware/metrics"
	"appbuilder/pkg/agent/middleware/resilience/retry"
	"appbuilder/pkg/agent/middleware/resilience/timeout"
	"appbuilder/pkg/agent/middleware/validation"
	"appbuilder/pkg/config"
	"appbuilder/pkg/logx"
	runmetrics "appbuilder/pkg/metrics"
)

// LLMClientFactory creates LLM clients with properly configured middleware chains.
type LLMClientFactory struct {
	recorder runmetrics.Recorder
	logger   *logx.Logger
	secrets  map[string]string
	config   config.Config
}

// NewLLMClientFactory creates a factory for cfg. secrets holds decrypted API keys and
// may be nil; recorder may be nil to disable metrics.
func NewLLMClientFactory(cfg config.Config, secrets map[string]string, recorder runmetrics.Recorder, logger *logx.Logger) *LLMClientFactory {
	if recorder == nil {
		recorder = runmetrics.Nop()
	}
	if logger == nil {
		logger = logx.NewLogger("llm")
	}
	return &LLMClientFactory{
		config:   cfg,
		secrets:  secrets,
		recorder: recorder,
		logger:   logger,
	}
}

// CreateClient builds the provider client for the configured model and wraps it
// with the full middleware chain.
func (f *LLMClientFactory) CreateClient() (llm.LLMClient, error) {
	credential, err := config.GetAPIKey(&f.config, f.secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", f.config.Provider, err)
	}

	raw, err := NewRawClient(f.config.Provider, credential, f.config.Model)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Using %s model %s", f.config.Provider, f.config.Model)
	return f.Wrap(raw), nil
}

// Wrap applies the middleware chain to an existing client:
// Metrics -> Retry -> Timeout -> EmptyResponse -> client.
// The timeout applies per attempt, so a hung call is retried like any other
// transient failure.
func (f *LLMClientFactory) Wrap(raw llm.LLMClient) llm.LLMClient {
	policy := retry.NewPolicy(retry.Config{
		MaxAttempts:   f.config.Retry.MaxAttempts,
		InitialDelay:  f.config.Retry.InitialDelay,
		MaxDelay:      f.config.Retry.MaxDelay,
		BackoffFactor: f.config.Retry.BackoffFactor,
		Jitter:        f.config.Retry.Jitter,
	}, nil)

	return llm.Chain(raw,
		metrics.Middleware(f.recorder, nil, f.logger),
		retry.Middleware(policy),
		timeout.Middleware(f.config.LLMTimeout),
		validation.EmptyResponseMiddleware(),
	)
}

// NewRawClient creates an unwrapped provider client. For Ollama the credential is
// the host URL.
func NewRawClient(provider, credential, model string) (llm.LLMClient, error) {
	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(credential, model), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(credential, model), nil
	case config.ProviderGroq:
		return openaiofficial.NewGroqClientWithModel(credential, model), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(credential, model), nil
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(credential, model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
