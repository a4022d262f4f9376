// Package architect implements the architecture stage: a Plan becomes an ordered
// TaskPlan with one implementation step per file.
package architect

import (
	"context"
	"errors"
	"fmt"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/logx"
	"appbuilder/pkg/plan"
	"appbuilder/pkg/templates"
)

// SubmitTaskPlanTool is the forced tool whose arguments carry the TaskPlan.
const SubmitTaskPlanTool = "submit_task_plan"

// ErrArchitectureFailure means the model produced no usable TaskPlan. It is fatal
// to a run.
var ErrArchitectureFailure = errors.New("architecture failure")

// Architect runs the architecture stage.
type Architect struct {
	generator llm.StructuredGenerator[plan.TaskPlan]
	renderer  *templates.Renderer
	logger    *logx.Logger
}

// New creates an architect that asks client for a forced submit_task_plan call.
func New(client llm.LLMClient, maxTokens int, temperature float32) *Architect {
	gen := llm.NewToolStructuredGenerator[plan.TaskPlan](client, SubmitTaskPlanTool,
		"Submit the ordered implementation steps for the project plan.",
		plan.TaskPlanSchema(),
		llm.WithValidator(func(tp *plan.TaskPlan) error { return tp.Validate() }),
		llm.WithMaxTokens[plan.TaskPlan](maxTokens),
		llm.WithTemperature[plan.TaskPlan](temperature),
	)
	return NewWithGenerator(gen)
}

// NewWithGenerator creates an architect over any StructuredGenerator.
func NewWithGenerator(gen llm.StructuredGenerator[plan.TaskPlan]) *Architect {
	return &Architect{
		generator: gen,
		renderer:  templates.MustNewRenderer(),
		logger:    logx.NewLogger("architect"),
	}
}

// Architect derives the TaskPlan for p and attaches p as its back-reference.
func (a *Architect) Architect(ctx context.Context, p *plan.Plan) (*plan.TaskPlan, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no plan", ErrArchitectureFailure)
	}

	planJSON, err := plan.JSON(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchitectureFailure, err)
	}
	instructions, err := a.renderer.Render(templates.ArchitectSystemTemplate, &templates.TemplateData{ToolName: SubmitTaskPlanTool})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchitectureFailure, err)
	}
	input, err := a.renderer.Render(templates.ArchitectInputTemplate, &templates.TemplateData{PlanJSON: planJSON})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchitectureFailure, err)
	}

	a.logger.Info("🔄 Architecting %q (%d files)", p.Name, len(p.Files))
	tp, err := a.generator.Generate(ctx, instructions, input)
	if err != nil {
		a.logger.Error("❌ Architect did not return a valid response: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrArchitectureFailure, err)
	}
	if tp == nil {
		return nil, fmt.Errorf("%w: %w", ErrArchitectureFailure, llm.ErrNoStructuredResult)
	}

	tp.AttachPlan(p)
	a.logManifestDrift(p, tp)
	a.logger.Info("✅ Task plan: %d implementation steps", tp.Len())
	return tp, nil
}

// logManifestDrift warns when the steps and the plan's manifest disagree. The steps
// are kept as produced; the coder only ever follows the TaskPlan.
func (a *Architect) logManifestDrift(p *plan.Plan, tp *plan.TaskPlan) {
	inPlan := make(map[string]bool, len(p.Files))
	for _, f := range p.Files {
		inPlan[f.Path] = true
	}
	covered := make(map[string]bool, tp.Len())
	for _, path := range tp.Filepaths() {
		covered[path] = true
		if !inPlan[path] {
			a.logger.Warn("⚠️  Step targets %s, which is not in the plan's file manifest", path)
		}
	}
	for _, f := range p.Files {
		if !covered[f.Path] {
			a.logger.Warn("⚠️  Manifest file %s has no implementation step", f.Path)
		}
	}
}
