// Package plantest provides Plan and TaskPlan fixtures for tests.
package plantest

import (
	"encoding/json"

	"appbuilder/pkg/plan"
)

// TodoPlan is a three-file html/css/js todo app.
func TodoPlan() *plan.Plan {
	return &plan.Plan{
		Name:        "Colourful Todo",
		Description: "A colourful modern todo app",
		Techstack:   "html, css, javascript",
		Features:    []string{"add todo", "complete todo", "delete todo"},
		Files: []plan.File{
			{Path: "index.html", Purpose: "page markup"},
			{Path: "style.css", Purpose: "styles"},
			{Path: "app.js", Purpose: "todo logic"},
		},
	}
}

// TodoTaskPlan has one step per TodoPlan file, without the back-reference.
func TodoTaskPlan() *plan.TaskPlan {
	return &plan.TaskPlan{ImplementationSteps: []plan.ImplementationStep{
		{Filepath: "index.html", TaskDescription: "Create the page skeleton with a form and a list"},
		{Filepath: "style.css", TaskDescription: "Style the todo list with bright colours"},
		{Filepath: "app.js", TaskDescription: "Implement add, complete and delete"},
	}}
}

// Args converts v into the map a model would send as tool arguments.
func Args(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}
