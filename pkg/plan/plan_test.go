package plan

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func todoPlan() *Plan {
	return &Plan{
		Name:        "Todo",
		Description: "A colourful todo app",
		Techstack:   "html, css, javascript",
		Features:    []string{"add todo", "complete todo"},
		Files: []File{
			{Path: "index.html", Purpose: "markup"},
			{Path: "style.css", Purpose: "styles"},
			{Path: "app.js", Purpose: "logic"},
		},
	}
}

func todoTaskPlan() *TaskPlan {
	return &TaskPlan{ImplementationSteps: []ImplementationStep{
		{Filepath: "index.html", TaskDescription: "page skeleton"},
		{Filepath: "style.css", TaskDescription: "styles"},
		{Filepath: "app.js", TaskDescription: "todo logic"},
	}}
}

func TestPlanValidate(t *testing.T) {
	require.NoError(t, todoPlan().Validate())

	tests := []struct {
		mutate func(*Plan)
		name   string
	}{
		{name: "empty name", mutate: func(p *Plan) { p.Name = " " }},
		{name: "no files", mutate: func(p *Plan) { p.Files = nil }},
		{name: "absolute file", mutate: func(p *Plan) { p.Files[0].Path = "/etc/passwd" }},
		{name: "empty path", mutate: func(p *Plan) { p.Files[1].Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := todoPlan()
			tt.mutate(p)
			assert.ErrorIs(t, p.Validate(), ErrInvalid)
		})
	}

	var nilPlan *Plan
	assert.ErrorIs(t, nilPlan.Validate(), ErrInvalid)
}

func TestTaskPlanValidate(t *testing.T) {
	require.NoError(t, todoTaskPlan().Validate())

	empty := &TaskPlan{}
	assert.ErrorIs(t, empty.Validate(), ErrInvalid)

	noTask := todoTaskPlan()
	noTask.ImplementationSteps[2].TaskDescription = ""
	assert.ErrorIs(t, noTask.Validate(), ErrInvalid)
}

func TestAttachPlan(t *testing.T) {
	tp := todoTaskPlan()
	p := todoPlan()
	tp.AttachPlan(p)
	assert.Same(t, p, tp.Plan)
	assert.Equal(t, []string{"index.html", "style.css", "app.js"}, tp.Filepaths())
}

func TestCoderProgress(t *testing.T) {
	progress := NewCoderProgress(todoTaskPlan())
	assert.Equal(t, 0, progress.CurrentStepIdx)

	for i := 0; i < 3; i++ {
		require.False(t, progress.Done())
		step, err := progress.Current()
		require.NoError(t, err)
		assert.Equal(t, progress.TaskPlan.ImplementationSteps[i], step)

		before := progress.CurrentStepIdx
		progress.Advance()
		assert.Equal(t, before+1, progress.CurrentStepIdx)
	}

	assert.True(t, progress.Done())
	assert.Equal(t, 0, progress.Remaining())
	_, err := progress.Current()
	assert.Error(t, err)

	progress.Advance()
	assert.Equal(t, 3, progress.CurrentStepIdx, "cursor never passes the end")
}

func TestYAMLExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	tp := todoTaskPlan()
	tp.AttachPlan(todoPlan())

	require.NoError(t, WriteYAML(path, tp.Plan, tp))

	doc, err := ReadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, todoPlan(), doc.Plan)
	require.NotNil(t, doc.TaskPlan)
	assert.Equal(t, tp.ImplementationSteps, doc.TaskPlan.ImplementationSteps)
	assert.Same(t, doc.Plan, doc.TaskPlan.Plan)
}

func TestSchemasRequireAllFields(t *testing.T) {
	ps := PlanSchema()
	assert.ElementsMatch(t, []string{"name", "description", "techstack", "features", "files"}, ps.Required)
	assert.Equal(t, []string{"path", "purpose"}, ps.Properties["files"].Items.Required)

	ts := TaskPlanSchema()
	assert.Equal(t, []string{"implementation_steps"}, ts.Required)
	assert.Equal(t, []string{"filepath", "task_description"}, ts.Properties["implementation_steps"].Items.Required)
}
