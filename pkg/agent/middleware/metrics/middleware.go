// Package metrics records latency, token usage and outcome of every model call.
package metrics

import (
	"context"
	"time"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llmerrors"
	"appbuilder/pkg/logx"
	runmetrics "appbuilder/pkg/metrics"
	"appbuilder/pkg/utils"
)

// UsageExtractor returns prompt and completion token counts for a finished call.
type UsageExtractor func(req *llm.CompletionRequest, resp *llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor trusts provider-reported usage and falls back to a
// tiktoken estimate over message and tool-call text.
func DefaultUsageExtractor(req *llm.CompletionRequest, resp *llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.Usage.InputTokens > 0 {
		return resp.Usage.InputTokens, resp.Usage.OutputTokens
	}

	var prompt string
	for i := range req.Messages {
		prompt += req.Messages[i].Content + "\n"
		for j := range req.Messages[i].ToolResults {
			prompt += req.Messages[i].ToolResults[j].Content + "\n"
		}
	}
	return utils.CountTokensSimple(prompt), utils.CountTokensSimple(resp.Content)
}

// Middleware records one observation per call. Errors pass through unchanged.
func Middleware(recorder runmetrics.Recorder, usage UsageExtractor, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = runmetrics.Nop()
	}
	if usage == nil {
		usage = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				errorType := ""
				if err == nil {
					promptTokens, completionTokens = usage(&req, &resp)
				} else {
					errorType = llmerrors.TypeOf(err).String()
				}
				model := next.GetModelName()
				recorder.ObserveRequest(model, promptTokens, completionTokens, err == nil, errorType, duration)

				if logger != nil {
					logger.Info("🎯 LLM request: model=%s tokens=%d+%d status=%s duration=%dms",
						model, promptTokens, completionTokens, runmetrics.StatusLabel(err == nil), duration.Milliseconds())
				}
				return resp, err //nolint:wrapcheck // middleware passes errors through
			},
			next.GetModelName,
		)
	}
}
