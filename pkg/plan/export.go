package plan

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Export is the document written by `run --export`.
type Export struct {
	Plan     *Plan     `yaml:"plan"`
	TaskPlan *TaskPlan `yaml:"task_plan"`
}

// MarshalYAML renders the plan and task plan as YAML. The task plan's back-reference
// is omitted since the plan is already present at the top level.
func MarshalYAML(p *Plan, tp *TaskPlan) ([]byte, error) {
	doc := Export{Plan: p}
	if tp != nil {
		doc.TaskPlan = &TaskPlan{ImplementationSteps: tp.ImplementationSteps}
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	return out, nil
}

// WriteYAML writes MarshalYAML output to path.
func WriteYAML(path string, p *Plan, tp *TaskPlan) error {
	out, err := MarshalYAML(p, tp)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadYAML loads an exported plan document.
func ReadYAML(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var doc Export
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc.TaskPlan != nil {
		doc.TaskPlan.AttachPlan(doc.Plan)
	}
	return &doc, nil
}

// JSON renders v compactly for prompts and persistence. The TaskPlan back-reference
// is included.
func JSON(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return string(out), nil
}
