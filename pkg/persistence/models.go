package persistence

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
)

// Run statuses mirror the pipeline's terminal and in-flight states.
const (
	RunStatusRunning = "RUNNING"
	RunStatusDone    = "DONE"
	RunStatusFailed  = "FAILED"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one pipeline invocation.
//
//nolint:govet // struct alignment optimization not critical for this type
type Run struct {
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ID           string     `json:"id"`
	Request      string     `json:"request"`
	Status       string     `json:"status"`
	ProjectRoot  string     `json:"project_root"`
	PlanJSON     string     `json:"plan_json,omitempty"`
	TaskPlanJSON string     `json:"task_plan_json,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Step is the recorded outcome of one implementation step of a run.
type Step struct {
	ID          string `json:"id"`
	RunID       string `json:"run_id"`
	Filepath    string `json:"filepath"`
	Kind        string `json:"kind"`
	ContentHash string `json:"content_hash,omitempty"`
	Error       string `json:"error,omitempty"`
	Index       int    `json:"idx"`
	Attempts    int    `json:"attempts"`
}

// ContentHash returns the hex BLAKE3 digest of a generated file's content.
func ContentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
