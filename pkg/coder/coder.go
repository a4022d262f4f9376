// Package coder executes implementation steps: one file per step, driven by a
// tool-calling agent, with bounded retries and a placeholder fallback so that every
// step ends with the cursor advanced.
package coder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/toolloop"
	"appbuilder/pkg/logx"
	runmetrics "appbuilder/pkg/metrics"
	"appbuilder/pkg/plan"
	"appbuilder/pkg/templates"
	"appbuilder/pkg/tools"
	"appbuilder/pkg/utils"
	"appbuilder/pkg/workspace"
)

// Defaults used when Config leaves a field unset.
const (
	DefaultMaxAttempts       = 3
	DefaultMaxExistingTokens = 6000

	signalTargetWritten = "TARGET_WRITTEN"
)

// Config tunes the step executor.
type Config struct {
	Recorder runmetrics.Recorder

	// MaxAttempts bounds agent attempts per step, the first one included.
	MaxAttempts int

	// MaxIterations caps model turns inside one attempt.
	MaxIterations int

	MaxTokens   int
	Temperature float32

	// MaxExistingTokens truncates existing file content embedded in the prompt.
	MaxExistingTokens int
}

// Coder runs implementation steps against one project store.
type Coder struct {
	store    *workspace.Store
	provider *tools.ToolProvider
	loop     *toolloop.ToolLoop
	renderer *templates.Renderer
	logger   *logx.Logger
	recorder runmetrics.Recorder
	config   Config
}

// New creates a coder whose agent sees the full coder tool set on store.
func New(client llm.LLMClient, store *workspace.Store, provider *tools.ToolProvider, cfg Config) *Coder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxExistingTokens <= 0 {
		cfg.MaxExistingTokens = DefaultMaxExistingTokens
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = runmetrics.Nop()
	}
	logger := logx.NewLogger("coder")
	return &Coder{
		store:    store,
		provider: provider,
		loop:     toolloop.New(client, logger.WithComponent("toolloop")),
		renderer: templates.MustNewRenderer(),
		logger:   logger,
		recorder: recorder,
		config:   cfg,
	}
}

// ExecuteStep processes the step under the cursor and advances the cursor by
// exactly one, whatever the outcome. done is true, and nothing is executed, when
// the cursor is already past the last step.
func (c *Coder) ExecuteStep(ctx context.Context, progress *plan.CoderProgress) (result StepResult, done bool) {
	step, err := progress.Current()
	if err != nil {
		return StepResult{}, true
	}
	index := progress.CurrentStepIdx
	defer progress.Advance()

	total := progress.TaskPlan.Len()
	c.logger.Info("🔄 Step %d/%d: %s", index+1, total, step.Filepath)

	result = c.runStep(ctx, step)
	result.Index = index
	c.recorder.ObserveStep(result.Kind.String())

	switch result.Kind {
	case StepSuccess:
		c.logger.Info("✅ Completed task %d/%d: %s (attempt %d)", index+1, total, step.Filepath, result.Attempts)
	case StepDegraded:
		c.logger.Warn("⚠️  Task %d/%d degraded to a placeholder: %s: %v", index+1, total, step.Filepath, result.Err)
	case StepHardFailure:
		c.logger.Error("❌ Task %d/%d failed, placeholder not written: %s: %v", index+1, total, step.Filepath, result.Err)
	}
	return result, false
}

// runStep applies the retry policy: attempt 1 uses the full prompt, later attempts
// the simplified one, and exhaustion falls back to a direct placeholder write.
func (c *Coder) runStep(ctx context.Context, step plan.ImplementationStep) StepResult {
	result := StepResult{Step: step, Path: step.Filepath}

	systemPrompt, err := c.systemPrompt()
	if err != nil {
		result.Err = err
		return c.fallback(result)
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		result.Attempts = attempt
		lastErr = c.Attempt(ctx, step, attempt, systemPrompt)
		if lastErr == nil {
			result.Kind = StepSuccess
			return result
		}
		c.logger.Warn("⚠️  Attempt %d/%d failed for %s: %v", attempt, c.config.MaxAttempts, step.Filepath, lastErr)
		if ctx.Err() != nil {
			break
		}
		if attempt < c.config.MaxAttempts {
			c.logger.Info("🔄 Retrying with simplified prompt...")
		}
	}

	result.Err = lastErr
	return c.fallback(result)
}

// Attempt drives one agent run for step. It returns nil only when write_file
// succeeded on the step's target.
func (c *Coder) Attempt(ctx context.Context, step plan.ImplementationStep, attempt int, systemPrompt string) error {
	prompt, err := c.taskPrompt(step, attempt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrToolInvocation, err)
	}

	target, err := c.store.Resolve(step.Filepath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrToolInvocation, err)
	}

	out := c.loop.Run(ctx, &toolloop.Config{
		ToolProvider:  c.provider,
		Recorder:      c.recorder,
		SystemPrompt:  systemPrompt,
		InitialPrompt: prompt,
		MaxIterations: c.config.MaxIterations,
		MaxTokens:     c.config.MaxTokens,
		Temperature:   c.config.Temperature,
		CheckTerminal: func(calls []toolloop.ExecutedCall) string {
			if c.wroteTarget(calls, target) {
				return signalTargetWritten
			}
			return ""
		},
	})

	switch {
	case out.Signal == signalTargetWritten:
		return nil
	case out.Err != nil:
		return fmt.Errorf("%w: %w", ErrToolInvocation, out.Err)
	default:
		return fmt.Errorf("%w: agent finished without writing %s", ErrToolInvocation, step.Filepath)
	}
}

// wroteTarget reports whether a successful write_file in calls landed on target.
func (c *Coder) wroteTarget(calls []toolloop.ExecutedCall, target string) bool {
	for i := range calls {
		if calls[i].Call.Name != tools.ToolWriteFile || calls[i].IsError {
			continue
		}
		path, _ := calls[i].Call.Parameters["path"].(string)
		resolved, err := c.store.Resolve(path)
		if err == nil && resolved == target {
			return true
		}
	}
	return false
}

// fallback writes the placeholder through the tool layer, bypassing the agent.
func (c *Coder) fallback(result StepResult) StepResult {
	c.logger.Error("❌ Failed after %d attempts: %s", result.Attempts, result.Step.Filepath)

	writer, err := c.provider.Get(tools.ToolWriteFile)
	if err == nil {
		// No caller context: the placeholder is written even when the run was cancelled.
		_, err = writer.Exec(context.Background(), map[string]any{
			"path":    result.Step.Filepath,
			"content": Placeholder(result.Step),
		})
	}
	if err != nil {
		result.Kind = StepHardFailure
		result.Err = fmt.Errorf("%w: %s: %w", ErrStepFallback, result.Step.Filepath, errors.Join(err, result.Err))
		return result
	}

	c.logger.Info("✅ Created placeholder file: %s", result.Step.Filepath)
	result.Kind = StepDegraded
	return result
}

func (c *Coder) systemPrompt() (string, error) {
	return c.renderer.Render(templates.CoderSystemTemplate, &templates.TemplateData{
		ProjectRoot:       c.store.Root(),
		ToolDocumentation: c.provider.GenerateToolDocumentation(),
	})
}

// taskPrompt renders the full prompt for attempt 1 and the simplified directive
// afterwards.
func (c *Coder) taskPrompt(step plan.ImplementationStep, attempt int) (string, error) {
	data := &templates.TemplateData{
		Filepath:        step.Filepath,
		TaskDescription: step.TaskDescription,
	}
	if attempt > 1 {
		return c.renderer.Render(templates.CoderRetryTemplate, data)
	}

	existing, err := c.store.Read(step.Filepath)
	if err != nil {
		return "", err
	}
	if existing != "" {
		existing = utils.TruncateSimple(existing, c.config.MaxExistingTokens)
	}
	data.ExistingContent = existing
	return c.renderer.Render(templates.CoderTaskTemplate, data)
}

// Placeholder is the stub written when every attempt failed. It is a single
// comment, in the file type's syntax, naming the unimplemented task.
func Placeholder(step plan.ImplementationStep) string {
	text := "TODO: Implement " + strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(step.TaskDescription)
	switch strings.ToLower(filepath.Ext(step.Filepath)) {
	case ".html", ".htm", ".xml", ".svg", ".md", ".vue":
		return "<!-- " + strings.ReplaceAll(text, "-->", "- ->") + " -->\n"
	case ".css", ".scss", ".less":
		return "/* " + strings.ReplaceAll(text, "*/", "* /") + " */\n"
	case ".py", ".sh", ".bash", ".rb", ".yaml", ".yml", ".toml", ".r", ".pl", ".ps1":
		return "# " + text + "\n"
	case ".sql", ".lua", ".hs":
		return "-- " + text + "\n"
	default:
		return "// " + text + "\n"
	}
}
