package timeout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llm/llmtest"
)

func TestMiddleware_AppliesDeadline(t *testing.T) {
	slow := llmtest.FuncClient(func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		<-ctx.Done()
		return llm.CompletionResponse{}, ctx.Err()
	})
	client := llm.Chain(slow, Middleware(10*time.Millisecond))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMiddleware_ZeroIsPassthrough(t *testing.T) {
	base := llmtest.NewScriptedClient(llmtest.Text("ok"))
	assert.Same(t, base, Middleware(0)(base))
}
