// Package workspace implements the sandboxed project root that every agent-initiated
// file operation goes through. Paths are resolved against the root and rejected with
// ErrPathViolation, before any I/O, when they would land outside it.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	execpkg "appbuilder/pkg/exec"
	"appbuilder/pkg/logx"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// WrotePrefix prefixes the confirmation token returned by Write.
	WrotePrefix = "WROTE:"

	// NoFilesFound is returned by List for an empty directory.
	NoFilesFound = "No files found."

	// DefaultTreeDepth is used by Tree when depth is negative.
	DefaultTreeDepth = 3
)

// Store is a file store confined to a single project root.
type Store struct {
	executor execpkg.Executor
	logger   *logx.Logger
	root     string
}

// New opens a store rooted at root, creating the directory if needed. The stored
// root is absolute and symlink-resolved.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("project root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create project root %s: %w", abs, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", abs, err)
	}
	return &Store{
		root:     resolved,
		executor: execpkg.NewLocalExec(),
		logger:   logx.NewLogger("workspace"),
	}, nil
}

// Reset clears root and recreates it empty, then opens a store on it.
func Reset(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("project root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", root, err)
	}
	if err := checkClearable(abs); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(abs); err != nil {
		return nil, fmt.Errorf("failed to clear project root %s: %w", abs, err)
	}
	return New(abs)
}

// checkClearable refuses roots whose removal would take the working directory or
// the home directory with it.
func checkClearable(abs string) error {
	target := canonical(abs)
	if target == filepath.Dir(target) {
		return fmt.Errorf("refusing to clear filesystem root %s", abs)
	}
	if wd, err := os.Getwd(); err == nil && isWithin(canonical(wd), target) {
		return fmt.Errorf("refusing to clear %s: it contains the working directory", abs)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && isWithin(canonical(home), target) {
		return fmt.Errorf("refusing to clear %s: it contains the home directory", abs)
	}
	return nil
}

// canonical resolves symlinks when p exists and returns it cleaned otherwise.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// isWithin reports whether p is dir or lies below it.
func isWithin(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// WithExecutor replaces the executor used by RunCommand.
func (s *Store) WithExecutor(e execpkg.Executor) *Store {
	s.executor = e
	return s
}

// Root returns the absolute project root.
func (s *Store) Root() string {
	return s.root
}

// Resolve maps p onto an absolute path inside the root. Relative paths are joined
// to the root; absolute paths are accepted only when already inside it. Symlinks in
// the existing part of the path are followed before the containment check.
func (s *Store) Resolve(p string) (string, error) {
	var candidate string
	if filepath.IsAbs(p) {
		candidate = filepath.Clean(p)
	} else {
		candidate = filepath.Join(s.root, p)
	}

	if !s.contains(candidate) {
		return "", &PathViolationError{Path: p, Root: s.root}
	}

	resolved, err := evalExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	if !s.contains(resolved) {
		return "", &PathViolationError{Path: p, Root: s.root}
	}
	return resolved, nil
}

func (s *Store) contains(abs string) bool {
	return isWithin(abs, s.root)
}

// maxLinkHops bounds how many dangling links evalExisting follows.
const maxLinkHops = 40

// evalExisting resolves symlinks in the longest existing prefix of p and re-attaches
// the part that does not exist yet. A dangling link is followed to its target so the
// caller can check where a write through it would land.
func evalExisting(p string) (string, error) {
	return evalExistingHops(p, 0)
}

func evalExistingHops(p string, hops int) (string, error) {
	existing := p
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return p, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		target, linkErr := os.Readlink(existing)
		if linkErr != nil || hops >= maxLinkHops {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(existing), target)
		}
		return evalExistingHops(filepath.Join(append([]string{target}, rest...)...), hops+1)
	}
	return filepath.Join(append([]string{resolved}, rest...)...), nil
}

func (s *Store) rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

// Write creates parent directories as needed and overwrites p with content.
// It returns "WROTE:<absolute path>".
func (s *Store) Write(p, content string) (string, error) {
	abs, err := s.Resolve(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), dirPerm); err != nil {
		return "", fmt.Errorf("failed to create parent directories for %s: %w", p, err)
	}
	if err := os.WriteFile(abs, []byte(content), filePerm); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", p, err)
	}
	s.logger.Debug("wrote %d bytes to %s", len(content), s.rel(abs))
	return WrotePrefix + abs, nil
}

// Read returns the contents of p, or "" when p does not exist.
func (s *Store) Read(p string) (string, error) {
	abs, err := s.Resolve(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return string(data), nil
}

// Exists reports whether p names an existing regular file inside the root.
func (s *Store) Exists(p string) (bool, error) {
	abs, err := s.Resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false, nil //nolint:nilerr // missing is not an error here
	}
	return info.Mode().IsRegular(), nil
}

// List returns every file below dir, relative to the root and newline separated.
func (s *Store) List(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := s.Resolve(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return fmt.Sprintf("ERROR: %s is not a directory", abs), nil
	}

	var files []string
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, s.rel(path))
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("failed to list %s: %w", dir, walkErr)
	}

	if len(files) == 0 {
		return NoFilesFound, nil
	}
	sort.Strings(files)
	return strings.Join(files, "\n"), nil
}

// Tree renders the subtree rooted at p, at most depth levels deep. Directories sort
// before files, then by name. A depth of 0 renders only the header line.
func (s *Store) Tree(p string, depth int) (string, error) {
	if p == "" {
		p = "."
	}
	if depth < 0 {
		depth = DefaultTreeDepth
	}
	abs, err := s.Resolve(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return fmt.Sprintf("ERROR: %s is not a directory", abs), nil
	}

	header := filepath.Base(s.root)
	if rel := s.rel(abs); rel != "." {
		header += "/" + rel
	}
	lines := []string{header + "/"}
	lines = append(lines, buildTree(abs, "", 0, depth)...)
	return strings.Join(lines, "\n"), nil
}

func buildTree(dir, prefix string, level, depth int) []string {
	if level >= depth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		return entries[i].Name() < entries[j].Name()
	})

	var lines []string
	for i, entry := range entries {
		last := i == len(entries)-1
		connector, extension := "├── ", "│   "
		if last {
			connector, extension = "└── ", "    "
		}
		lines = append(lines, prefix+connector+entry.Name())
		if entry.IsDir() && level < depth-1 {
			lines = append(lines, buildTree(filepath.Join(dir, entry.Name()), prefix+extension, level+1, depth)...)
		}
	}
	return lines
}

// OpenRange returns lines [lineStart, lineEnd] of p, 1-indexed and inclusive. A nil
// lineEnd reads to the end of the file. Line terminators are preserved. Missing or
// unreadable files produce an "ERROR: ..." string rather than an error.
func (s *Store) OpenRange(p string, lineStart int, lineEnd *int) (string, error) {
	abs, err := s.Resolve(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("ERROR: File %s does not exist", p), nil
	}
	if err != nil {
		return fmt.Sprintf("ERROR: Could not read file %s: %v", p, err), nil
	}

	lines := strings.SplitAfter(string(data), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	startIdx := max(0, lineStart-1)
	endIdx := len(lines)
	if lineEnd != nil {
		endIdx = min(len(lines), *lineEnd)
	}
	if startIdx >= endIdx {
		return "", nil
	}
	return strings.Join(lines[startIdx:endIdx], ""), nil
}

// CommandResult is what RunCommand reports back to the caller.
type CommandResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out"`
}

// RunCommand runs command through the shell. cwd defaults to the root and is itself
// sandboxed. A non-zero exit is reported, not returned as an error; a timeout is
// reported with TimedOut set and exit code -1.
func (s *Store) RunCommand(ctx context.Context, command, cwd string, timeout time.Duration) (CommandResult, error) {
	dir := s.root
	if cwd != "" {
		abs, err := s.Resolve(cwd)
		if err != nil {
			return CommandResult{}, err
		}
		dir = abs
	}
	if timeout <= 0 {
		timeout = execpkg.DefaultTimeout
	}

	result, err := s.executor.Run(ctx, execpkg.ShellCommand(command), &execpkg.Opts{
		WorkDir: dir,
		Timeout: timeout,
	})
	out := CommandResult{
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		TimedOut: result.TimedOut,
	}
	if errors.Is(err, execpkg.ErrTimeout) {
		s.logger.Warn("⚠️  command timed out after %s: %s", timeout, command)
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("failed to run %q: %w", command, err)
	}
	return out, nil
}
