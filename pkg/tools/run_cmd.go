package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	execpkg "appbuilder/pkg/exec"
	"appbuilder/pkg/workspace"
)

// MaxCommandTimeout caps the timeout a model may request for run_cmd.
const MaxCommandTimeout = 10 * time.Minute

// RunCmdTool runs a shell command inside the project root.
type RunCmdTool struct {
	store          *workspace.Store
	defaultTimeout time.Duration
}

func newRunCmdTool(ctx AgentContext) (Tool, error) {
	store, err := requireStore(ctx, ToolRunCmd)
	if err != nil {
		return nil, err
	}
	timeout := ctx.CommandTimeout
	if timeout <= 0 {
		timeout = execpkg.DefaultTimeout
	}
	return &RunCmdTool{store: store, defaultTimeout: timeout}, nil
}

func (t *RunCmdTool) Name() string { return ToolRunCmd }

func runCmdSchema() InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"cmd": {
				Type:        "string",
				Description: "Shell command line to execute",
			},
			"cwd": {
				Type:        "string",
				Description: "Working directory relative to the project root. Defaults to the project root.",
			},
			"timeout": {
				Type:        "integer",
				Description: "Timeout in seconds. Defaults to 30.",
			},
		},
		Required: []string{"cmd"},
	}
}

func (t *RunCmdTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolRunCmd,
		Description: "Runs a shell command in the specified directory and returns the exit code, stdout and stderr.",
		InputSchema: runCmdSchema(),
	}
}

func (t *RunCmdTool) PromptDocumentation() string {
	return `- **run_cmd** - Run a shell command
  - Parameters:
    - cmd (string, REQUIRED): command line
    - cwd (string, optional): directory relative to the project root
    - timeout (integer, optional): seconds before the command is killed (default 30)
  - Returns JSON with exit_code, stdout, stderr and timed_out; a non-zero exit is not a failure`
}

func (t *RunCmdTool) Exec(ctx context.Context, args map[string]any) (*ExecResult, error) {
	cmd, err := stringArg(args, "cmd")
	if err != nil {
		return nil, err
	}
	if cmd == "" {
		return nil, fmt.Errorf("cmd cannot be empty")
	}
	cwd, err := optionalStringArg(args, "cwd", "")
	if err != nil {
		return nil, err
	}

	seconds, ok, err := intArg(args, "timeout")
	if err != nil {
		return nil, err
	}
	timeout := t.defaultTimeout
	if ok {
		timeout = commandTimeout(seconds, t.defaultTimeout)
	}

	result, err := t.store.RunCommand(ctx, cmd, cwd, timeout)
	if err != nil {
		return nil, err
	}

	content, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command result: %w", err)
	}
	return &ExecResult{Content: string(content)}, nil
}

// commandTimeout converts a requested timeout in seconds, falling back to def when
// it is not positive and capping it at MaxCommandTimeout.
func commandTimeout(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	if seconds >= int(MaxCommandTimeout/time.Second) {
		return MaxCommandTimeout
	}
	return time.Duration(seconds) * time.Second
}
