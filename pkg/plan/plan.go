// Package plan holds the data produced by the planning and architecture stages and
// the cursor the coding stage advances.
package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// File is one entry of a Plan's file manifest.
type File struct {
	Path    string `json:"path" yaml:"path"`
	Purpose string `json:"purpose" yaml:"purpose"`
}

// Plan describes the project to build.
type Plan struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Techstack   string   `json:"techstack" yaml:"techstack"`
	Features    []string `json:"features" yaml:"features"`
	Files       []File   `json:"files" yaml:"files"`
}

// ImplementationStep is one file-level unit of coding work.
type ImplementationStep struct {
	Filepath        string `json:"filepath" yaml:"filepath"`
	TaskDescription string `json:"task_description" yaml:"task_description"`
}

// TaskPlan is the ordered list of steps derived from a Plan.
type TaskPlan struct {
	Plan                *Plan                `json:"plan,omitempty" yaml:"plan,omitempty"`
	ImplementationSteps []ImplementationStep `json:"implementation_steps" yaml:"implementation_steps"`
}

// ErrInvalid marks a structurally unusable Plan or TaskPlan.
var ErrInvalid = errors.New("invalid plan")

// Validate checks the fields a run depends on.
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalid)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalid)
	}
	if len(p.Files) == 0 {
		return fmt.Errorf("%w: file manifest is empty", ErrInvalid)
	}
	for i, f := range p.Files {
		if err := validateRelPath(f.Path); err != nil {
			return fmt.Errorf("%w: files[%d]: %w", ErrInvalid, i, err)
		}
	}
	return nil
}

// Validate checks that every step names a relative file and a task.
func (tp *TaskPlan) Validate() error {
	if tp == nil {
		return fmt.Errorf("%w: task plan is nil", ErrInvalid)
	}
	if len(tp.ImplementationSteps) == 0 {
		return fmt.Errorf("%w: no implementation steps", ErrInvalid)
	}
	for i, step := range tp.ImplementationSteps {
		if err := validateRelPath(step.Filepath); err != nil {
			return fmt.Errorf("%w: implementation_steps[%d]: %w", ErrInvalid, i, err)
		}
		if strings.TrimSpace(step.TaskDescription) == "" {
			return fmt.Errorf("%w: implementation_steps[%d]: task_description is empty", ErrInvalid, i)
		}
	}
	return nil
}

// AttachPlan sets the back-reference to the originating Plan.
func (tp *TaskPlan) AttachPlan(p *Plan) {
	tp.Plan = p
}

// Len returns the number of steps.
func (tp *TaskPlan) Len() int {
	if tp == nil {
		return 0
	}
	return len(tp.ImplementationSteps)
}

// Filepaths returns the step targets in order.
func (tp *TaskPlan) Filepaths() []string {
	paths := make([]string, len(tp.ImplementationSteps))
	for i, step := range tp.ImplementationSteps {
		paths[i] = step.Filepath
	}
	return paths
}

func validateRelPath(p string) error {
	if strings.TrimSpace(p) == "" {
		return errors.New("path is empty")
	}
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q must be relative", p)
	}
	return nil
}
