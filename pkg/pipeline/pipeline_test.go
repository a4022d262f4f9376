package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appbuilder/pkg/agent/llm/llmtest"
	"appbuilder/pkg/architect"
	"appbuilder/pkg/coder"
	"appbuilder/pkg/config"
	"appbuilder/pkg/persistence"
	"appbuilder/pkg/plan"
	"appbuilder/pkg/plan/plantest"
	"appbuilder/pkg/planner"
	"appbuilder/pkg/tools"
	"appbuilder/pkg/workspace"
)

type stubPlanner struct {
	plan  *plan.Plan
	err   error
	calls int
}

func (s *stubPlanner) Plan(context.Context, string) (*plan.Plan, error) {
	s.calls++
	return s.plan, s.err
}

type stubArchitect struct {
	taskPlan *plan.TaskPlan
	err      error
	calls    int
}

func (s *stubArchitect) Architect(_ context.Context, p *plan.Plan) (*plan.TaskPlan, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	s.taskPlan.AttachPlan(p)
	return s.taskPlan, nil
}

// stubCoder advances the cursor like the real executor unless stalled.
type stubCoder struct {
	stalled bool
	calls   int
}

func (s *stubCoder) ExecuteStep(_ context.Context, progress *plan.CoderProgress) (coder.StepResult, bool) {
	s.calls++
	step, err := progress.Current()
	if err != nil {
		return coder.StepResult{}, true
	}
	res := coder.StepResult{Step: step, Index: progress.CurrentStepIdx, Path: step.Filepath, Kind: coder.StepSuccess, Attempts: 1}
	if !s.stalled {
		progress.Advance()
	}
	return res, false
}

func newStore(t *testing.T) *workspace.Store {
	t.Helper()
	store, err := workspace.New(filepath.Join(t.TempDir(), "generated_project"))
	require.NoError(t, err)
	return store
}

func stubDeps(t *testing.T) (Deps, *stubPlanner, *stubArchitect, *stubCoder) {
	t.Helper()
	pl := &stubPlanner{plan: plantest.TodoPlan()}
	ar := &stubArchitect{taskPlan: plantest.TodoTaskPlan()}
	co := &stubCoder{}
	return Deps{Planner: pl, Architect: ar, Coder: co, Store: newStore(t)}, pl, ar, co
}

func newPipeline(t *testing.T, deps Deps) *Pipeline {
	t.Helper()
	p, err := New(deps)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresStages(t *testing.T) {
	deps, _, _, _ := stubDeps(t)

	missing := deps
	missing.Planner = nil
	_, err := New(missing)
	assert.ErrorContains(t, err, "planner")

	missing = deps
	missing.Store = nil
	_, err = New(missing)
	assert.ErrorContains(t, err, "store")
}

func TestRun_StagesInOrder(t *testing.T) {
	deps, pl, ar, co := stubDeps(t)

	final, err := newPipeline(t, deps).Run(context.Background(), "Build a todo app", 100)
	require.NoError(t, err)
	assert.Equal(t, StateDone, final.Status)
	assert.Equal(t, 1, pl.calls)
	assert.Equal(t, 1, ar.calls)
	assert.Equal(t, 4, co.calls, "one invocation per step plus the completion check")
	assert.Equal(t, 6, final.Iterations)
	assert.Len(t, final.Results, 3)
	assert.Same(t, final.Plan, final.TaskPlan.Plan)
	assert.Equal(t, 3, final.Progress.CurrentStepIdx)
	assert.NotEmpty(t, final.RunID)
}

func TestRun_PlanningFailure(t *testing.T) {
	deps, pl, ar, co := stubDeps(t)
	pl.plan = nil
	pl.err = errors.Join(ErrPlanningFailure, errors.New("no structured result"))

	final, err := newPipeline(t, deps).Run(context.Background(), "todo", 100)
	require.ErrorIs(t, err, ErrPlanningFailure)
	assert.Equal(t, StateFailed, final.Status)
	assert.Nil(t, final.Plan)
	assert.Nil(t, final.TaskPlan)
	assert.Zero(t, ar.calls)
	assert.Zero(t, co.calls)
}

func TestRun_ArchitectureFailure(t *testing.T) {
	deps, _, ar, co := stubDeps(t)
	ar.err = errors.Join(ErrArchitectureFailure, errors.New("no structured result"))

	final, err := newPipeline(t, deps).Run(context.Background(), "todo", 100)
	require.ErrorIs(t, err, ErrArchitectureFailure)
	assert.Equal(t, StateFailed, final.Status)
	assert.NotNil(t, final.Plan)
	assert.Nil(t, final.TaskPlan)
	assert.Zero(t, co.calls)
}

func TestRun_RecursionLimit(t *testing.T) {
	deps, _, _, co := stubDeps(t)

	final, err := newPipeline(t, deps).Run(context.Background(), "todo", 4)
	require.ErrorIs(t, err, ErrRecursionLimit)
	assert.Equal(t, StateFailed, final.Status)
	assert.Equal(t, 4, final.Iterations)
	assert.Equal(t, 2, co.calls)
	assert.Equal(t, 2, final.Progress.CurrentStepIdx)
	assert.Len(t, final.Results, 2)
}

func TestRun_StalledCursorHitsCeiling(t *testing.T) {
	deps, _, _, co := stubDeps(t)
	co.stalled = true

	final, err := newPipeline(t, deps).Run(context.Background(), "todo", 10)
	require.ErrorIs(t, err, ErrRecursionLimit)
	assert.Equal(t, 10, final.Iterations)
	assert.Equal(t, 8, co.calls)
}

func TestRun_DefaultCeiling(t *testing.T) {
	deps, _, _, co := stubDeps(t)
	co.stalled = true

	final, err := newPipeline(t, deps).Run(context.Background(), "todo", 0)
	require.ErrorIs(t, err, ErrRecursionLimit)
	assert.Equal(t, config.DefaultRecursionLimit, final.Iterations)
}

func TestRun_CancelledContext(t *testing.T) {
	deps, pl, _, _ := stubDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := newPipeline(t, deps).Run(ctx, "todo", 100)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, final.Status)
	assert.Zero(t, pl.calls)
}

func scriptedTodo(extra ...llmtest.Step) *llmtest.ScriptedClient {
	steps := []llmtest.Step{
		llmtest.ToolCall("p1", planner.SubmitPlanTool, plantest.Args(plantest.TodoPlan())),
		llmtest.ToolCall("a1", architect.SubmitTaskPlanTool, plantest.Args(plantest.TodoTaskPlan())),
	}
	return llmtest.NewScriptedClient(append(steps, extra...)...)
}

func writeCall(path, content string) llmtest.Step {
	return llmtest.ToolCall("w-"+path, tools.ToolWriteFile, map[string]any{"path": path, "content": content})
}

func TestRun_TodoApp(t *testing.T) {
	cfg := config.Default()
	store := newStore(t)
	history, err := persistence.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	files := map[string]string{
		"index.html": "<!doctype html><ul id=\"todos\"></ul>",
		"style.css":  "ul { list-style: none; }",
		"app.js":     "const todos = [];",
	}
	client := scriptedTodo(
		writeCall("index.html", files["index.html"]),
		writeCall("style.css", files["style.css"]),
		writeCall("app.js", files["app.js"]),
	)

	deps := Components(client, store, &cfg, nil)
	deps.History = history
	final, err := newPipeline(t, deps).Run(context.Background(), "Build a todo app in html/css/js", cfg.RecursionLimit)
	require.NoError(t, err)

	assert.Equal(t, StateDone, final.Status)
	assert.Equal(t, "Colourful Todo", final.Plan.Name)
	require.Len(t, final.Results, 3)
	for _, res := range final.Results {
		assert.Equal(t, coder.StepSuccess, res.Kind, res.Path)
	}
	for path, want := range files {
		got, err := store.Read(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, client.Remaining())

	run, err := history.GetRun(context.Background(), final.RunID)
	require.NoError(t, err)
	assert.Equal(t, persistence.RunStatusDone, run.Status)
	assert.Contains(t, run.PlanJSON, "Colourful Todo")
	assert.Contains(t, run.TaskPlanJSON, "implementation_steps")
	require.NotNil(t, run.FinishedAt)

	steps, err := history.Steps(context.Background(), final.RunID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "index.html", steps[0].Filepath)
	assert.Equal(t, persistence.ContentHash(files["index.html"]), steps[0].ContentHash)
}

func TestRun_AllStepsFallBackToPlaceholders(t *testing.T) {
	cfg := config.Default()
	store := newStore(t)
	client := scriptedTodo()
	client.WithFallback(llmtest.Fail(errors.New("provider unavailable")))

	final, err := newPipeline(t, Components(client, store, &cfg, nil)).Run(context.Background(), "todo", 100)
	require.NoError(t, err)
	assert.Equal(t, StateDone, final.Status)
	assert.Equal(t, 3, final.Counts()[coder.StepDegraded])

	for _, step := range final.TaskPlan.ImplementationSteps {
		got, err := store.Read(step.Filepath)
		require.NoError(t, err)
		assert.Equal(t, coder.Placeholder(step), got)
	}
}

func TestRun_HistoryRecordsFailure(t *testing.T) {
	cfg := config.Default()
	history, err := persistence.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	deps := Components(llmtest.NewScriptedClient(llmtest.Text("I cannot plan this")), newStore(t), &cfg, nil)
	deps.History = history
	final, err := newPipeline(t, deps).Run(context.Background(), "todo", 100)
	require.ErrorIs(t, err, ErrPlanningFailure)

	run, err := history.GetRun(context.Background(), final.RunID)
	require.NoError(t, err)
	assert.Equal(t, persistence.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "planning")
}

func TestTransitions(t *testing.T) {
	assert.True(t, IsValidTransition(StateStart, StatePlanning))
	assert.True(t, IsValidTransition(StatePlanning, StateArchitecture))
	assert.True(t, IsValidTransition(StateArchitecture, StateCoding))
	assert.True(t, IsValidTransition(StateCoding, StateCoding))
	assert.True(t, IsValidTransition(StateCoding, StateDone))

	assert.False(t, IsValidTransition(StateArchitecture, StatePlanning))
	assert.False(t, IsValidTransition(StateCoding, StateArchitecture))
	assert.False(t, IsValidTransition(StateDone, StatePlanning))
	assert.False(t, IsValidTransition(StateStart, StateCoding))

	for _, s := range AllStates() {
		if s.IsTerminal() {
			assert.Empty(t, ValidNextStates(s), s)
			continue
		}
		assert.Contains(t, ValidNextStates(s), StateFailed, s)
	}
}

func TestSummarize_CutsOnRuneBoundary(t *testing.T) {
	request := strings.Repeat("é", 79) + "✅ and more\nsecond line"
	got := summarize(request)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 79)+"✅...", got)

	assert.Equal(t, "short request", summarize("  short request \nignored"))
}
