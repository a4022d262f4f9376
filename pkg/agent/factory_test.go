package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llm/llmtest"
	"appbuilder/pkg/agent/llmerrors"
	"appbuilder/pkg/config"
)

type countingRecorder struct {
	errorTypes []string
	successes  int
	mu         sync.Mutex
}

func (r *countingRecorder) ObserveRequest(_ string, _, _ int, success bool, errorType string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.successes++
		return
	}
	r.errorTypes = append(r.errorTypes, errorType)
}

func (r *countingRecorder) ObserveToolCall(string, bool) {}
func (r *countingRecorder) ObserveStep(string)           {}

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.Retry.InitialDelay = time.Millisecond
	cfg.Retry.MaxDelay = time.Millisecond
	cfg.Retry.Jitter = false
	return cfg
}

func TestNewRawClient(t *testing.T) {
	for _, provider := range config.Providers() {
		t.Run(provider, func(t *testing.T) {
			client, err := NewRawClient(provider, "credential", "some-model")
			require.NoError(t, err)
			assert.Equal(t, "some-model", client.GetModelName())
		})
	}

	_, err := NewRawClient("acme", "k", "m")
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestCreateClient_MissingKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	f := NewLLMClientFactory(config.Default(), nil, nil, nil)
	_, err := f.CreateClient()
	require.ErrorIs(t, err, config.ErrSecretNotFound)
}

func TestCreateClient_KeyFromSecrets(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	f := NewLLMClientFactory(config.Default(), map[string]string{"GROQ_API_KEY": "gsk"}, nil, nil)
	client, err := f.CreateClient()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultModel, client.GetModelName())
}

func TestWrap_RetriesEmptyResponse(t *testing.T) {
	rec := &countingRecorder{}
	scripted := llmtest.NewScriptedClient(
		llmtest.Reply(llm.CompletionResponse{}),
		llmtest.Text("done"),
	)
	client := NewLLMClientFactory(fastConfig(), nil, rec, nil).Wrap(scripted)

	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Len(t, scripted.Requests(), 2)
	assert.Equal(t, 1, rec.successes, "metrics wrap the whole retry loop")
}

func TestWrap_AuthErrorIsNotRetried(t *testing.T) {
	rec := &countingRecorder{}
	scripted := llmtest.NewScriptedClient(
		llmtest.Fail(llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, 401, "bad key")),
		llmtest.Text("unreachable"),
	)
	client := NewLLMClientFactory(fastConfig(), nil, rec, nil).Wrap(scripted)

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
	assert.Len(t, scripted.Requests(), 1)
	assert.Equal(t, []string{"auth"}, rec.errorTypes)
}
