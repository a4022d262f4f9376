// Package pipeline drives one run from a free-text request to a populated project
// root: planning, architecture, then one coding invocation per implementation step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/architect"
	"appbuilder/pkg/coder"
	"appbuilder/pkg/config"
	"appbuilder/pkg/logx"
	runmetrics "appbuilder/pkg/metrics"
	"appbuilder/pkg/persistence"
	"appbuilder/pkg/plan"
	"appbuilder/pkg/planner"
	"appbuilder/pkg/tools"
	"appbuilder/pkg/utils"
	"appbuilder/pkg/workspace"
)

var (
	// ErrPlanningFailure means the planning stage produced no usable Plan.
	ErrPlanningFailure = planner.ErrPlanningFailure

	// ErrArchitectureFailure means the architecture stage produced no usable TaskPlan.
	ErrArchitectureFailure = architect.ErrArchitectureFailure

	// ErrRecursionLimit means the run used up its stage invocation ceiling.
	ErrRecursionLimit = errors.New("recursion limit exceeded")

	// ErrInvalidTransition is an internal state machine violation.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Planner turns a request into a Plan.
type Planner interface {
	Plan(ctx context.Context, request string) (*plan.Plan, error)
}

// Architect turns a Plan into a TaskPlan.
type Architect interface {
	Architect(ctx context.Context, p *plan.Plan) (*plan.TaskPlan, error)
}

// StepExecutor processes the step under the cursor and advances it.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, progress *plan.CoderProgress) (coder.StepResult, bool)
}

// History records runs. *persistence.Store satisfies it, including a nil store.
type History interface {
	CreateRun(ctx context.Context, run *persistence.Run) error
	UpdateRun(ctx context.Context, run *persistence.Run) error
	FinishRun(ctx context.Context, run *persistence.Run, status string, runErr error) error
	RecordStep(ctx context.Context, step *persistence.Step) error
}

// Deps are the stage implementations a pipeline runs.
type Deps struct {
	Planner   Planner
	Architect Architect
	Coder     StepExecutor
	Store     *workspace.Store
	History   History
}

// FinalState is what a run leaves behind. It is returned, partially filled, on
// failure too.
//
//nolint:govet // fieldalignment: grouped for readability
type FinalState struct {
	RunID      string
	Request    string
	Plan       *plan.Plan
	TaskPlan   *plan.TaskPlan
	Progress   *plan.CoderProgress
	Status     State
	Results    []coder.StepResult
	Iterations int
}

// Counts returns how many steps ended in each outcome.
func (s *FinalState) Counts() map[coder.StepKind]int {
	counts := make(map[coder.StepKind]int, 3)
	for i := range s.Results {
		counts[s.Results[i].Kind]++
	}
	return counts
}

// Pipeline is the run controller.
type Pipeline struct {
	deps   Deps
	logger *logx.Logger
}

// New creates a pipeline. Planner, Architect, Coder and Store are required;
// History is optional.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Planner == nil:
		return nil, errors.New("pipeline: planner is required")
	case deps.Architect == nil:
		return nil, errors.New("pipeline: architect is required")
	case deps.Coder == nil:
		return nil, errors.New("pipeline: coder is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: workspace store is required")
	}
	if deps.History == nil {
		deps.History = (*persistence.Store)(nil)
	}
	return &Pipeline{deps: deps, logger: logx.NewLogger("pipeline")}, nil
}

// Components builds the default stages around one model client, all sharing cfg's
// token and temperature settings.
func Components(client llm.LLMClient, store *workspace.Store, cfg *config.Config, recorder runmetrics.Recorder) Deps {
	provider := tools.NewProvider(tools.AgentContext{Store: store, CommandTimeout: cfg.CommandTimeout}, tools.CoderTools)
	return Deps{
		Planner:   planner.New(client, cfg.MaxTokens, cfg.Temperature),
		Architect: architect.New(client, cfg.MaxTokens, cfg.Temperature),
		Coder: coder.New(client, store, provider, coder.Config{
			Recorder:      recorder,
			MaxAttempts:   cfg.StepAttempts,
			MaxIterations: cfg.AgentMaxIterations,
			MaxTokens:     cfg.MaxTokens,
			Temperature:   cfg.Temperature,
		}),
		Store: store,
	}
}

// run is the mutable state of one Run call.
type run struct {
	final  *FinalState
	record *persistence.Run
	limit  int
}

// Run executes START -> PLANNING -> ARCHITECTURE -> CODING(loop) -> DONE for
// request. ceiling bounds stage invocations, each coding invocation included; a
// value <= 0 selects config.DefaultRecursionLimit. On failure the partial state is
// returned with status FAILED alongside the error.
func (p *Pipeline) Run(ctx context.Context, request string, ceiling int) (*FinalState, error) {
	if ceiling <= 0 {
		ceiling = config.DefaultRecursionLimit
	}
	r := &run{
		final: &FinalState{RunID: uuid.NewString(), Request: request, Status: StateStart},
		limit: ceiling,
	}
	r.record = &persistence.Run{
		ID:          r.final.RunID,
		Request:     request,
		ProjectRoot: p.deps.Store.Root(),
		Status:      persistence.RunStatusRunning,
	}
	if err := p.deps.History.CreateRun(ctx, r.record); err != nil {
		p.logger.Warn("⚠️  Failed to record run start: %v", err)
	}

	p.logger.Info("🔄 Run %s started: %s", r.final.RunID, summarize(request))
	err := p.execute(ctx, r)
	if err != nil {
		_ = p.transition(r, StateFailed)
		p.logger.Error("❌ Run %s failed in %d iterations: %v", r.final.RunID, r.final.Iterations, err)
	} else {
		counts := r.final.Counts()
		p.logger.Info("✅ Run %s done: %d steps (%d success, %d degraded, %d failed)",
			r.final.RunID, len(r.final.Results),
			counts[coder.StepSuccess], counts[coder.StepDegraded], counts[coder.StepHardFailure])
	}

	p.finishHistory(r, err)
	return r.final, err
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	if err := p.transition(r, StatePlanning); err != nil {
		return err
	}
	if err := p.tick(ctx, r); err != nil {
		return err
	}
	p.logger.Info("🔄 Planning...")
	pl, err := p.deps.Planner.Plan(ctx, r.final.Request)
	if err != nil {
		return err //nolint:wrapcheck // already wraps ErrPlanningFailure
	}
	r.final.Plan = pl
	p.logger.Info("✅ Plan: %s (%d files)", pl.Name, len(pl.Files))
	p.savePlans(ctx, r)

	if err := p.transition(r, StateArchitecture); err != nil {
		return err
	}
	if err := p.tick(ctx, r); err != nil {
		return err
	}
	p.logger.Info("🔄 Architecting...")
	tp, err := p.deps.Architect.Architect(ctx, pl)
	if err != nil {
		return err //nolint:wrapcheck // already wraps ErrArchitectureFailure
	}
	r.final.TaskPlan = tp
	r.final.Progress = plan.NewCoderProgress(tp)
	p.logger.Info("✅ Task plan: %d implementation steps", tp.Len())
	p.savePlans(ctx, r)

	if err := p.transition(r, StateCoding); err != nil {
		return err
	}
	for {
		if err := p.tick(ctx, r); err != nil {
			return err
		}
		result, done := p.deps.Coder.ExecuteStep(ctx, r.final.Progress)
		if done {
			return p.transition(r, StateDone)
		}
		r.final.Results = append(r.final.Results, result)
		p.recordStep(ctx, r, &result)
		if err := p.transition(r, StateCoding); err != nil {
			return err
		}
	}
}

// tick consumes one stage invocation from the ceiling and stops the run when the
// context is done.
func (p *Pipeline) tick(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}
	if r.final.Iterations >= r.limit {
		return fmt.Errorf("%w: %d invocations", ErrRecursionLimit, r.limit)
	}
	r.final.Iterations++
	return nil
}

func (p *Pipeline) transition(r *run, to State) error {
	from := r.final.Status
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if from != to {
		p.logger.Debug("state %s -> %s", from, to)
	}
	r.final.Status = to
	return nil
}

func (p *Pipeline) savePlans(ctx context.Context, r *run) {
	if r.final.Plan != nil {
		if s, err := plan.JSON(r.final.Plan); err == nil {
			r.record.PlanJSON = s
		}
	}
	if r.final.TaskPlan != nil {
		if s, err := plan.JSON(&plan.TaskPlan{ImplementationSteps: r.final.TaskPlan.ImplementationSteps}); err == nil {
			r.record.TaskPlanJSON = s
		}
	}
	if err := p.deps.History.UpdateRun(ctx, r.record); err != nil {
		p.logger.Warn("⚠️  Failed to record plans: %v", err)
	}
}

// recordStep stores a step outcome with the hash of the file it left behind.
func (p *Pipeline) recordStep(ctx context.Context, r *run, result *coder.StepResult) {
	step := &persistence.Step{
		RunID:    r.final.RunID,
		Index:    result.Index,
		Filepath: result.Path,
		Kind:     result.Kind.String(),
		Attempts: result.Attempts,
	}
	if result.Err != nil {
		step.Error = result.Err.Error()
	}
	if result.Kind != coder.StepHardFailure {
		if content, err := p.deps.Store.Read(result.Path); err == nil {
			step.ContentHash = persistence.ContentHash(content)
		}
	}
	if err := p.deps.History.RecordStep(ctx, step); err != nil {
		p.logger.Warn("⚠️  Failed to record step %d: %v", result.Index, err)
	}
}

func (p *Pipeline) finishHistory(r *run, runErr error) {
	status := persistence.RunStatusDone
	if runErr != nil {
		status = persistence.RunStatusFailed
	}
	// The run context may be cancelled already.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.deps.History.FinishRun(ctx, r.record, status, runErr); err != nil {
		p.logger.Warn("⚠️  Failed to record run end: %v", err)
	}
}

func summarize(request string) string {
	line := strings.TrimSpace(strings.SplitN(request, "\n", 2)[0])
	return utils.TruncateRunes(line, 80)
}
