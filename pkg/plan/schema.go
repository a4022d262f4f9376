package plan

import "appbuilder/pkg/tools"

// PlanSchema is the structured-output contract for the planning stage.
func PlanSchema() tools.InputSchema {
	return tools.InputSchema{
		Type: "object",
		Properties: map[string]tools.Property{
			"name": {
				Type:        "string",
				Description: "The name of the app to be built",
			},
			"description": {
				Type:        "string",
				Description: "A one line description of the app to be built",
			},
			"techstack": {
				Type:        "string",
				Description: "The tech stack to be used for the app, e.g. 'python', 'javascript', 'react', 'flask'",
			},
			"features": {
				Type:        "array",
				Description: "A list of features that the app should have, e.g. 'user authentication', 'data visualization'",
				Items:       &tools.Property{Type: "string"},
			},
			"files": {
				Type:        "array",
				Description: "A list of files to be created, each with a 'path' and 'purpose'",
				Items: &tools.Property{
					Type: "object",
					Properties: map[string]*tools.Property{
						"path":    {Type: "string", Description: "The path to the file to be created or modified"},
						"purpose": {Type: "string", Description: "The purpose of the file, e.g. 'main application logic', 'data processing module'"},
					},
					Required: []string{"path", "purpose"},
				},
			},
		},
		Required: []string{"name", "description", "techstack", "features", "files"},
	}
}

// TaskPlanSchema is the structured-output contract for the architecture stage.
func TaskPlanSchema() tools.InputSchema {
	return tools.InputSchema{
		Type: "object",
		Properties: map[string]tools.Property{
			"implementation_steps": {
				Type:        "array",
				Description: "A list of steps to be taken to implement the task, one per file, in dependency order",
				Items: &tools.Property{
					Type: "object",
					Properties: map[string]*tools.Property{
						"filepath":         {Type: "string", Description: "The path to the file to be modified"},
						"task_description": {Type: "string", Description: "A detailed description of the task to be performed on the file, e.g. 'add user authentication', 'implement data processing logic'"},
					},
					Required: []string{"filepath", "task_description"},
				},
			},
		},
		Required: []string{"implementation_steps"},
	}
}
