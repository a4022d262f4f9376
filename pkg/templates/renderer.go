// Package templates renders the agent prompts from embedded markdown templates.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// TemplateData holds the data for template rendering. Each template uses a subset.
type TemplateData struct {
	Extra             map[string]any `json:"extra,omitempty"`
	ToolName          string         `json:"tool_name,omitempty"`
	PlanJSON          string         `json:"plan_json,omitempty"`
	ProjectRoot       string         `json:"project_root,omitempty"`
	ToolDocumentation string         `json:"tool_documentation,omitempty"`
	Filepath          string         `json:"filepath,omitempty"`
	TaskDescription   string         `json:"task_description,omitempty"`
	ExistingContent   string         `json:"existing_content,omitempty"`
}

// StateTemplate names one embedded template.
type StateTemplate string

const (
	// PlannerSystemTemplate instructs the planning stage.
	PlannerSystemTemplate StateTemplate = "planner_system.tpl.md"
	// ArchitectSystemTemplate instructs the architecture stage.
	ArchitectSystemTemplate StateTemplate = "architect_system.tpl.md"
	// ArchitectInputTemplate carries the serialized plan to the architect.
	ArchitectInputTemplate StateTemplate = "architect_input.tpl.md"
	// CoderSystemTemplate is the fixed coder system prompt.
	CoderSystemTemplate StateTemplate = "coder_system.tpl.md"
	// CoderTaskTemplate is the full task prompt of a step's first attempt.
	CoderTaskTemplate StateTemplate = "coder_task.tpl.md"
	// CoderRetryTemplate is the simplified prompt of later attempts.
	CoderRetryTemplate StateTemplate = "coder_retry.tpl.md"
)

// Renderer handles template rendering.
type Renderer struct {
	templates map[StateTemplate]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[StateTemplate]*template.Template),
	}

	templateNames := []StateTemplate{
		PlannerSystemTemplate,
		ArchitectSystemTemplate,
		ArchitectInputTemplate,
		CoderSystemTemplate,
		CoderTaskTemplate,
		CoderRetryTemplate,
	}

	for _, name := range templateNames {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Funcs(template.FuncMap{
			"contains": strings.Contains,
		}).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}

		r.templates[name] = tmpl
	}

	return r, nil
}

// MustNewRenderer is NewRenderer for package-level initialization; the templates
// are embedded, so a failure is a build defect.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName StateTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// GetAvailableTemplates returns the loaded template names, sorted.
func (r *Renderer) GetAvailableTemplates() []StateTemplate {
	names := make([]StateTemplate, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
