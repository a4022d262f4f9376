package plan

import "fmt"

// CoderProgress is the mutable cursor carried across coding-stage invocations.
// 0 <= CurrentStepIdx <= len(TaskPlan.ImplementationSteps) always holds.
type CoderProgress struct {
	TaskPlan       *TaskPlan `json:"task_plan"`
	CurrentStepIdx int       `json:"current_step_idx"`
}

// NewCoderProgress starts a cursor at step 0.
func NewCoderProgress(tp *TaskPlan) *CoderProgress {
	return &CoderProgress{TaskPlan: tp}
}

// Done reports whether every step has been processed.
func (c *CoderProgress) Done() bool {
	return c.CurrentStepIdx >= c.TaskPlan.Len()
}

// Current returns the step under the cursor.
func (c *CoderProgress) Current() (ImplementationStep, error) {
	if c.Done() {
		return ImplementationStep{}, fmt.Errorf("no step at index %d of %d", c.CurrentStepIdx, c.TaskPlan.Len())
	}
	return c.TaskPlan.ImplementationSteps[c.CurrentStepIdx], nil
}

// Advance moves the cursor forward by exactly one step, never past the end.
func (c *CoderProgress) Advance() {
	if c.Done() {
		return
	}
	c.CurrentStepIdx++
}

// Remaining returns the number of unprocessed steps.
func (c *CoderProgress) Remaining() int {
	return c.TaskPlan.Len() - c.CurrentStepIdx
}
