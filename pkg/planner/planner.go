// Package planner implements the planning stage: a free-text request becomes a Plan.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/logx"
	"appbuilder/pkg/plan"
	"appbuilder/pkg/templates"
	"appbuilder/pkg/utils"
)

// SubmitPlanTool is the forced tool whose arguments carry the Plan.
const SubmitPlanTool = "submit_plan"

// ErrPlanningFailure means the model produced no usable Plan. It is fatal to a run.
var ErrPlanningFailure = errors.New("planning failure")

// Planner runs the planning stage.
type Planner struct {
	generator llm.StructuredGenerator[plan.Plan]
	renderer  *templates.Renderer
	logger    *logx.Logger
}

// New creates a planner that asks client for a forced submit_plan call.
func New(client llm.LLMClient, maxTokens int, temperature float32) *Planner {
	gen := llm.NewToolStructuredGenerator[plan.Plan](client, SubmitPlanTool,
		"Submit the complete engineering project plan.",
		plan.PlanSchema(),
		llm.WithValidator(func(p *plan.Plan) error { return p.Validate() }),
		llm.WithMaxTokens[plan.Plan](maxTokens),
		llm.WithTemperature[plan.Plan](temperature),
	)
	return NewWithGenerator(gen)
}

// NewWithGenerator creates a planner over any StructuredGenerator.
func NewWithGenerator(gen llm.StructuredGenerator[plan.Plan]) *Planner {
	return &Planner{
		generator: gen,
		renderer:  templates.MustNewRenderer(),
		logger:    logx.NewLogger("planner"),
	}
}

// Plan converts request into a Plan. Every failure, including model errors, is
// reported as ErrPlanningFailure; there is no retry at this level.
func (p *Planner) Plan(ctx context.Context, request string) (*plan.Plan, error) {
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("%w: empty request", ErrPlanningFailure)
	}

	instructions, err := p.renderer.Render(templates.PlannerSystemTemplate, &templates.TemplateData{ToolName: SubmitPlanTool})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanningFailure, err)
	}

	p.logger.Info("🔄 Planning: %q", utils.TruncateRunes(request, 80))
	result, err := p.generator.Generate(ctx, instructions, "User request:\n"+request)
	if err != nil {
		p.logger.Error("❌ Planner did not return a valid response: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrPlanningFailure, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanningFailure, llm.ErrNoStructuredResult)
	}

	p.logger.Info("✅ Plan %q: %d features, %d files (%s)", result.Name, len(result.Features), len(result.Files), result.Techstack)
	return result, nil
}
