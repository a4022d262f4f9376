package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llm/llmtest"
	"appbuilder/pkg/agent/llmerrors"
)

type observation struct {
	model              string
	errorType          string
	prompt, completion int
	success            bool
}

type fakeRecorder struct {
	requests []observation
	mu       sync.Mutex
}

func (f *fakeRecorder) ObserveRequest(model string, prompt, completion int, success bool, errorType string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, observation{model: model, prompt: prompt, completion: completion, success: success, errorType: errorType})
}

func (f *fakeRecorder) ObserveToolCall(string, bool) {}
func (f *fakeRecorder) ObserveStep(string)           {}

func TestMiddleware_RecordsSuccessWithProviderUsage(t *testing.T) {
	rec := &fakeRecorder{}
	base := llmtest.NewScriptedClient(llmtest.Reply(llm.CompletionResponse{
		Content: "ok",
		Usage:   llm.Usage{InputTokens: 42, OutputTokens: 7},
	}))
	client := llm.Chain(base, Middleware(rec, nil, nil))

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)

	require.Len(t, rec.requests, 1)
	assert.Equal(t, observation{model: "scripted-model", prompt: 42, completion: 7, success: true}, rec.requests[0])
}

func TestMiddleware_EstimatesWhenUsageMissing(t *testing.T) {
	rec := &fakeRecorder{}
	base := llmtest.NewScriptedClient(llmtest.Text("a short answer"))
	client := llm.Chain(base, Middleware(rec, nil, nil))

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("a short question")}))
	require.NoError(t, err)
	assert.Positive(t, rec.requests[0].prompt)
	assert.Positive(t, rec.requests[0].completion)
}

func TestMiddleware_RecordsErrorType(t *testing.T) {
	rec := &fakeRecorder{}
	boom := llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down")
	client := llm.Chain(llmtest.NewScriptedClient(llmtest.Fail(boom)), Middleware(rec, nil, nil))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	assert.Same(t, boom, err)
	require.Len(t, rec.requests, 1)
	assert.False(t, rec.requests[0].success)
	assert.Equal(t, "rate_limit", rec.requests[0].errorType)
	assert.Zero(t, rec.requests[0].prompt)
}

func TestMiddleware_UnclassifiedError(t *testing.T) {
	rec := &fakeRecorder{}
	client := llm.Chain(llmtest.NewScriptedClient(llmtest.Fail(errors.New("x"))), Middleware(rec, nil, nil))
	_, _ = client.Complete(context.Background(), llm.CompletionRequest{})
	assert.Equal(t, "unknown", rec.requests[0].errorType)
}
