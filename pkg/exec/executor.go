// Package exec runs shell commands on behalf of the run_cmd tool.
package exec

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds commands that do not specify their own timeout.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned alongside a partial Result when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// Executor runs a command and reports its exit status and output.
type Executor interface {
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)
	Name() string
}

// Opts contains options for command execution.
type Opts struct {
	// Env entries in KEY=VALUE form, appended to the current environment.
	Env []string

	// Timeout is the maximum duration for command execution. Zero means DefaultTimeout.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string
}

// Result is the outcome of a command. A non-zero ExitCode is not an error.
type Result struct {
	Stdout       string
	Stderr       string
	ExecutorUsed string
	Duration     time.Duration
	ExitCode     int
	TimedOut     bool
}

// DefaultOpts returns options with the default timeout.
func DefaultOpts() Opts {
	return Opts{Timeout: DefaultTimeout}
}
