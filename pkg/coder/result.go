package coder

import (
	"errors"
	"fmt"

	"appbuilder/pkg/plan"
)

var (
	// ErrToolInvocation marks a failed attempt: the model errored, ran out of
	// iterations, or finished without writing the target file.
	ErrToolInvocation = errors.New("tool invocation failed")

	// ErrStepFallback marks a placeholder write that itself failed.
	ErrStepFallback = errors.New("step fallback failed")
)

// StepKind is the outcome of one implementation step.
type StepKind int

const (
	// StepSuccess means an agent attempt wrote the target file.
	StepSuccess StepKind = iota
	// StepDegraded means every attempt failed and a placeholder was written.
	StepDegraded
	// StepHardFailure means every attempt failed and so did the placeholder write.
	StepHardFailure
)

// String returns the metric and history label of the kind.
func (k StepKind) String() string {
	switch k {
	case StepSuccess:
		return "success"
	case StepDegraded:
		return "degraded"
	case StepHardFailure:
		return "hard_failure"
	default:
		return fmt.Sprintf("StepKind(%d)", k)
	}
}

// StepResult reports what happened to one step. Err holds the last attempt error
// for Degraded and the fallback error for HardFailure.
//
//nolint:govet // fieldalignment: grouped for readability
type StepResult struct {
	Step     plan.ImplementationStep
	Index    int
	Kind     StepKind
	Attempts int
	Path     string
	Err      error
}
