// Package timeout bounds each model call with its own deadline.
package timeout

import (
	"context"
	"time"

	"appbuilder/pkg/agent/llm"
)

// Middleware gives every call a fresh deadline of duration. A non-positive
// duration leaves the caller's context untouched.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		if duration <= 0 {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			next.GetModelName,
		)
	}
}
