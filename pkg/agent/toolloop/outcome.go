package toolloop

import (
	"fmt"

	"appbuilder/pkg/agent/llm"
)

// OutcomeKind categorizes the result of a toolloop execution.
type OutcomeKind int

const (
	// OutcomeSuccess means the model gave a final answer or CheckTerminal returned
	// a signal.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeMaxIterations means the cap was reached while the model still
	// requested tools.
	OutcomeMaxIterations

	// OutcomeLLMError means the model call failed or the context was cancelled.
	OutcomeLLMError
)

// String returns human-readable name for OutcomeKind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "Success"
	case OutcomeMaxIterations:
		return "MaxIterations"
	case OutcomeLLMError:
		return "LLMError"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", k)
	}
}

// ExecutedCall is one tool call together with what was sent back to the model.
type ExecutedCall struct {
	Err     error // non-nil when the tool failed or could not be resolved
	Call    llm.ToolCall
	Result  string
	IsError bool
}

// Outcome is the result of one Run.
//
//nolint:govet // Field order optimized for readability over memory alignment
type Outcome struct {
	Kind OutcomeKind

	// Signal is what CheckTerminal returned; empty when the loop ended on a final
	// answer.
	Signal string

	// FinalContent is the text of the last model reply.
	FinalContent string

	// Calls lists every tool call executed, in order.
	Calls []ExecutedCall

	// Err is non-nil for every kind except OutcomeSuccess.
	Err error

	// Iteration is the 1-indexed iteration at which the loop stopped.
	Iteration int
}

// Succeeded reports whether the outcome is OutcomeSuccess.
func (o *Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}
