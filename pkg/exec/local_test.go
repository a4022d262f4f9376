//go:build !windows

package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExec_Run_Success(t *testing.T) {
	e := NewLocalExec()
	opts := DefaultOpts()

	result, err := e.Run(context.Background(), []string{"echo", "hello world"}, &opts)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello world", strings.TrimSpace(result.Stdout))
	assert.Equal(t, "local", result.ExecutorUsed)
	assert.Positive(t, result.Duration)
}

func TestLocalExec_Run_NonZeroExitIsNotError(t *testing.T) {
	e := NewLocalExec()

	result, err := e.RunShell(context.Background(), "echo oops >&2; exit 3", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "oops", strings.TrimSpace(result.Stderr))
}

func TestLocalExec_Run_EmptyCommand(t *testing.T) {
	_, err := NewLocalExec().Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestLocalExec_Run_WorkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644))

	result, err := NewLocalExec().RunShell(context.Background(), "ls", &Opts{WorkDir: dir})
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "marker.txt")
}

func TestLocalExec_Run_MissingWorkDir(t *testing.T) {
	_, err := NewLocalExec().RunShell(context.Background(), "true", &Opts{WorkDir: "/does/not/exist"})
	assert.ErrorContains(t, err, "working directory does not exist")
}

func TestLocalExec_Run_Timeout(t *testing.T) {
	start := time.Now()
	result, err := NewLocalExec().RunShell(context.Background(), "sleep 5", &Opts{Timeout: 100 * time.Millisecond})

	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestLocalExec_Run_Env(t *testing.T) {
	result, err := NewLocalExec().RunShell(context.Background(), "echo $APPBUILDER_TEST_VAR", &Opts{
		Env: []string{"APPBUILDER_TEST_VAR=present"},
	})
	require.NoError(t, err)
	assert.Equal(t, "present", strings.TrimSpace(result.Stdout))
}
