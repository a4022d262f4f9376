// Package toolloop runs the bounded tool-calling loop: the model proposes tool calls
// or a final answer, tool results are fed back, and the loop exits on a final
// answer, a terminal signal or the iteration cap.
package toolloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/logx"
	runmetrics "appbuilder/pkg/metrics"
	"appbuilder/pkg/tools"
	"appbuilder/pkg/utils"
	"appbuilder/pkg/workspace"
)

// Defaults applied by Run when the Config leaves them unset.
const (
	DefaultMaxIterations   = 25
	DefaultMaxResultTokens = 4000
)

// ToolProvider interface defines what toolloop needs from a tool provider.
type ToolProvider interface {
	Get(name string) (tools.Tool, error)
	List() []tools.ToolMeta
}

// ToolLoop manages LLM interactions with tool calling.
type ToolLoop struct {
	llmClient llm.LLMClient
	logger    *logx.Logger
}

// New creates a new ToolLoop instance.
func New(llmClient llm.LLMClient, logger *logx.Logger) *ToolLoop {
	if logger == nil {
		logger = logx.NewLogger("toolloop")
	}
	return &ToolLoop{
		llmClient: llmClient,
		logger:    logger,
	}
}

// Config defines how the tool loop behaves.
//
//nolint:govet // fieldalignment: struct fields ordered for clarity over memory alignment
type Config struct {
	ToolProvider ToolProvider

	// CheckTerminal is called after all tools of one turn have run. A non-empty
	// return ends the loop with OutcomeSuccess and that signal.
	CheckTerminal func(calls []ExecutedCall) string

	// Recorder counts tool executions; nil disables it.
	Recorder runmetrics.Recorder

	SystemPrompt  string
	InitialPrompt string

	MaxIterations int
	MaxTokens     int
	Temperature   float32

	// MaxResultTokens truncates long tool output before it goes back to the model.
	MaxResultTokens int
}

// Run executes the loop. It never returns an error directly: failures are reported
// through Outcome.Kind and Outcome.Err.
func (tl *ToolLoop) Run(ctx context.Context, cfg *Config) Outcome {
	if cfg.ToolProvider == nil {
		return Outcome{Kind: OutcomeLLMError, Err: errors.New("ToolProvider is required")}
	}
	if cfg.InitialPrompt == "" {
		return Outcome{Kind: OutcomeLLMError, Err: errors.New("InitialPrompt is required")}
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = runmetrics.Nop()
	}

	toolDefs := definitions(cfg.ToolProvider.List())

	messages := make([]llm.CompletionMessage, 0, 2+2*maxIterations)
	if cfg.SystemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(cfg.SystemPrompt))
	}
	messages = append(messages, llm.NewUserMessage(cfg.InitialPrompt))

	var executed []ExecutedCall
	for iteration := 1; iteration <= maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Kind: OutcomeLLMError, Calls: executed, Iteration: iteration,
				Err: fmt.Errorf("%w: %w", ErrGracefulShutdown, err)}
		}

		req := llm.CompletionRequest{
			Messages:    messages,
			Tools:       toolDefs,
			ToolChoice:  llm.ToolChoiceAuto,
			MaxTokens:   maxTokens,
			Temperature: cfg.Temperature,
		}

		tl.logger.Info("🔄 Starting LLM call to model '%s' with %d messages, %d tools (iteration %d/%d)",
			tl.llmClient.GetModelName(), len(messages), len(toolDefs), iteration, maxIterations)

		start := time.Now()
		resp, err := tl.llmClient.Complete(ctx, req)
		duration := time.Since(start)
		if err != nil {
			tl.logger.Error("❌ LLM call failed after %.3gs: %v", duration.Seconds(), err)
			return Outcome{Kind: OutcomeLLMError, Calls: executed, Iteration: iteration,
				Err: fmt.Errorf("LLM completion failed: %w", err)}
		}

		tl.logger.Info("✅ LLM call completed in %.3gs, response length: %d chars, tool calls: %d",
			duration.Seconds(), len(resp.Content), len(resp.ToolCalls))

		messages = append(messages, llm.NewAssistantMessage(resp.Content, resp.ToolCalls))

		if len(resp.ToolCalls) == 0 {
			return Outcome{Kind: OutcomeSuccess, FinalContent: resp.Content, Calls: executed, Iteration: iteration}
		}

		// Every tool call must be answered, even when an earlier one in the batch failed.
		turn := make([]ExecutedCall, 0, len(resp.ToolCalls))
		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for i := range resp.ToolCalls {
			call := tl.execute(ctx, cfg, recorder, &resp.ToolCalls[i])
			turn = append(turn, call)
			results = append(results, llm.ToolResult{
				ToolCallID: call.Call.ID,
				Content:    call.Result,
				IsError:    call.IsError,
			})
		}
		executed = append(executed, turn...)
		messages = append(messages, llm.NewToolResultMessage(results))

		if cfg.CheckTerminal != nil {
			if signal := cfg.CheckTerminal(turn); signal != "" {
				tl.logger.Info("✅ Tool execution signaled completion: %s", signal)
				return Outcome{Kind: OutcomeSuccess, Signal: signal, FinalContent: resp.Content, Calls: executed, Iteration: iteration}
			}
		}
	}

	tl.logger.Warn("⚠️  Maximum tool iterations (%d) reached", maxIterations)
	return Outcome{Kind: OutcomeMaxIterations, Calls: executed, Iteration: maxIterations,
		Err: fmt.Errorf("%w (%d)", ErrMaxIterations, maxIterations)}
}

// execute runs one tool call. Unknown tools, bad arguments and path violations all
// become error results for the model; none of them stop the loop.
func (tl *ToolLoop) execute(ctx context.Context, cfg *Config, recorder runmetrics.Recorder, call *llm.ToolCall) ExecutedCall {
	out := ExecutedCall{Call: *call}

	tool, err := cfg.ToolProvider.Get(call.Name)
	if err != nil {
		tl.logger.Error("Failed to get tool %s: %v", call.Name, err)
		recorder.ObserveToolCall(call.Name, false)
		out.Err = err
		out.Result = formatToolError(err)
		out.IsError = true
		return out
	}

	start := time.Now()
	result, err := tool.Exec(ctx, call.Parameters)
	duration := time.Since(start)
	recorder.ObserveToolCall(call.Name, err == nil)

	if err != nil {
		if errors.Is(err, workspace.ErrPathViolation) {
			tl.logger.Warn("⚠️  Tool %s rejected path: %v", call.Name, err)
		} else {
			tl.logger.Error("Tool %s failed after %.3fs: %v", call.Name, duration.Seconds(), err)
		}
		out.Err = err
		out.Result = formatToolError(err)
		out.IsError = true
		return out
	}

	tl.logger.Debug("Tool %s completed in %.3fs", call.Name, duration.Seconds())
	content := ""
	if result != nil {
		content = result.Content
	}
	limit := cfg.MaxResultTokens
	if limit <= 0 {
		limit = DefaultMaxResultTokens
	}
	if utils.CountTokensSimple(content) > limit {
		content = utils.TruncateSimple(content, limit)
	}
	out.Result = content
	return out
}

func definitions(metas []tools.ToolMeta) []tools.ToolDefinition {
	defs := make([]tools.ToolDefinition, len(metas))
	for i := range metas {
		defs[i] = tools.ToolDefinition{
			Name:        metas[i].Name,
			Description: metas[i].Description,
			InputSchema: metas[i].InputSchema,
		}
	}
	return defs
}

func formatToolError(err error) string {
	return fmt.Sprintf("Tool failed: %v", err)
}
