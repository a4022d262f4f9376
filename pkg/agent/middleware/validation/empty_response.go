// Package validation rejects model replies that carry nothing usable.
package validation

import (
	"context"
	"strings"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llmerrors"
	"appbuilder/pkg/logx"
)

// EmptyResponseMiddleware turns a reply with neither text nor tool calls into an
// ErrorTypeEmptyResponse error so the retry layer can try again.
func EmptyResponseMiddleware() llm.Middleware {
	logger := logx.NewLogger("empty-response")
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				resp, err := next.Complete(ctx, req)
				if err != nil {
					return resp, err //nolint:wrapcheck // middleware passes errors through
				}
				if IsEmpty(&resp) {
					logger.Warn("⚠️ %s returned no content and no tool calls (stop_reason=%q)", next.GetModelName(), resp.StopReason)
					return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse,
						"model returned no content and no tool calls")
				}
				return resp, nil
			},
			next.GetModelName,
		)
	}
}

// IsEmpty reports whether resp has neither tool calls nor non-blank text.
func IsEmpty(resp *llm.CompletionResponse) bool {
	return len(resp.ToolCalls) == 0 && strings.TrimSpace(resp.Content) == ""
}
