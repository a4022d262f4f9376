package tools

import (
	"context"
	"fmt"

	"appbuilder/pkg/workspace"
)

func requireStore(ctx AgentContext, name string) (*workspace.Store, error) {
	if ctx.Store == nil {
		return nil, fmt.Errorf("%s tool requires a project store", name)
	}
	return ctx.Store, nil
}

// WriteFileTool writes a whole file inside the project root.
type WriteFileTool struct {
	store *workspace.Store
}

func newWriteFileTool(ctx AgentContext) (Tool, error) {
	store, err := requireStore(ctx, ToolWriteFile)
	if err != nil {
		return nil, err
	}
	return &WriteFileTool{store: store}, nil
}

func (t *WriteFileTool) Name() string { return ToolWriteFile }

func writeFileSchema() InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"path": {
				Type:        "string",
				Description: "File path relative to the project root",
			},
			"content": {
				Type:        "string",
				Description: "Complete file content. Overwrites any existing file.",
			},
		},
		Required: []string{"path", "content"},
	}
}

func (t *WriteFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolWriteFile,
		Description: "Writes content to a file at the specified path within the project root.",
		InputSchema: writeFileSchema(),
	}
}

func (t *WriteFileTool) PromptDocumentation() string {
	return `- **write_file** - Write a complete file inside the project root
  - Parameters:
    - path (string, REQUIRED): path relative to the project root
    - content (string, REQUIRED): full file content, overwrites existing content
  - Parent directories are created automatically`
}

func (t *WriteFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}
	token, err := t.store.Write(path, content)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: token}, nil
}

// ReadFileTool reads a whole file; a missing file reads as empty.
type ReadFileTool struct {
	store *workspace.Store
}

func newReadFileTool(ctx AgentContext) (Tool, error) {
	store, err := requireStore(ctx, ToolReadFile)
	if err != nil {
		return nil, err
	}
	return &ReadFileTool{store: store}, nil
}

func (t *ReadFileTool) Name() string { return ToolReadFile }

func readFileSchema() InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"path": {
				Type:        "string",
				Description: "File path relative to the project root",
			},
		},
		Required: []string{"path"},
	}
}

func (t *ReadFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFile,
		Description: "Reads content from a file at the specified path within the project root.",
		InputSchema: readFileSchema(),
	}
}

func (t *ReadFileTool) PromptDocumentation() string {
	return `- **read_file** - Read a file from the project root
  - Parameters:
    - path (string, REQUIRED): path relative to the project root
  - Returns an empty string when the file does not exist`
}

func (t *ReadFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	content, err := t.store.Read(path)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: content}, nil
}

// ListFileTool lists files recursively below a directory.
type ListFileTool struct {
	store *workspace.Store
}

func newListFileTool(ctx AgentContext) (Tool, error) {
	store, err := requireStore(ctx, ToolListFile)
	if err != nil {
		return nil, err
	}
	return &ListFileTool{store: store}, nil
}

func (t *ListFileTool) Name() string { return ToolListFile }

func listFileSchema() InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"directory": {
				Type:        "string",
				Description: "Directory relative to the project root. Defaults to \".\".",
			},
		},
	}
}

func (t *ListFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolListFile,
		Description: "Lists all files in the specified directory within the project root.",
		InputSchema: listFileSchema(),
	}
}

func (t *ListFileTool) PromptDocumentation() string {
	return `- **list_file** - List files recursively
  - Parameters:
    - directory (string, optional): directory relative to the project root (default ".")`
}

func (t *ListFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	dir, err := optionalStringArg(args, "directory", ".")
	if err != nil {
		return nil, err
	}
	out, err := t.store.List(dir)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: out}, nil
}

// PrintTreeTool renders a depth-limited directory tree.
type PrintTreeTool struct {
	store *workspace.Store
}

func newPrintTreeTool(ctx AgentContext) (Tool, error) {
	store, err := requireStore(ctx, ToolPrintTree)
	if err != nil {
		return nil, err
	}
	return &PrintTreeTool{store: store}, nil
}

func (t *PrintTreeTool) Name() string { return ToolPrintTree }

func printTreeSchema() InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"path": {
				Type:        "string",
				Description: "Directory relative to the project root. Defaults to \".\".",
			},
			"depth": {
				Type:        "integer",
				Description: "Maximum depth to display. Defaults to 3.",
			},
		},
	}
}

func (t *PrintTreeTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolPrintTree,
		Description: "Prints a tree structure of files and directories up to a certain depth.",
		InputSchema: printTreeSchema(),
	}
}

func (t *PrintTreeTool) PromptDocumentation() string {
	return `- **print_tree** - Show the directory tree
  - Parameters:
    - path (string, optional): directory relative to the project root (default ".")
    - depth (integer, optional): levels to show (default 3)`
}

func (t *PrintTreeTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := optionalStringArg(args, "path", ".")
	if err != nil {
		return nil, err
	}
	depth, err := intArgOrDefault(args, "depth", workspace.DefaultTreeDepth)
	if err != nil {
		return nil, err
	}
	out, err := t.store.Tree(path, depth)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: out}, nil
}

// OpenFileTool returns an inclusive 1-indexed line range of a file.
type OpenFileTool struct {
	store *workspace.Store
}

func newOpenFileTool(ctx AgentContext) (Tool, error) {
	store, err := requireStore(ctx, ToolOpenFile)
	if err != nil {
		return nil, err
	}
	return &OpenFileTool{store: store}, nil
}

func (t *OpenFileTool) Name() string { return ToolOpenFile }

func openFileSchema() InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]Property{
			"path": {
				Type:        "string",
				Description: "File path relative to the project root",
			},
			"line_start": {
				Type:        "integer",
				Description: "First line to return (1-based). Defaults to 1.",
			},
			"line_end": {
				Type:        "integer",
				Description: "Last line to return (inclusive). Omit to read to end of file.",
			},
		},
		Required: []string{"path"},
	}
}

func (t *OpenFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolOpenFile,
		Description: "Opens a file and returns specific lines. If line_end is omitted, returns from line_start to end.",
		InputSchema: openFileSchema(),
	}
}

func (t *OpenFileTool) PromptDocumentation() string {
	return `- **open_file** - Read a line range of a file
  - Parameters:
    - path (string, REQUIRED): path relative to the project root
    - line_start (integer, optional): first line, 1-based (default 1)
    - line_end (integer, optional): last line, inclusive (default end of file)`
}

func (t *OpenFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	start, err := intArgOrDefault(args, "line_start", 1)
	if err != nil {
		return nil, err
	}
	end, hasEnd, err := intArg(args, "line_end")
	if err != nil {
		return nil, err
	}

	var endPtr *int
	if hasEnd {
		endPtr = &end
	}
	out, err := t.store.OpenRange(path, start, endPtr)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: out}, nil
}

// GetCurrentDirectoryTool reports the project root.
type GetCurrentDirectoryTool struct {
	store *workspace.Store
}

func newGetCurrentDirectoryTool(ctx AgentContext) (Tool, error) {
	store, err := requireStore(ctx, ToolGetCurrentDirectory)
	if err != nil {
		return nil, err
	}
	return &GetCurrentDirectoryTool{store: store}, nil
}

func (t *GetCurrentDirectoryTool) Name() string { return ToolGetCurrentDirectory }

func (t *GetCurrentDirectoryTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetCurrentDirectory,
		Description: "Returns the current working directory (the project root).",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	}
}

func (t *GetCurrentDirectoryTool) PromptDocumentation() string {
	return `- **get_current_directory** - Return the absolute project root (no parameters)`
}

func (t *GetCurrentDirectoryTool) Exec(_ context.Context, _ map[string]any) (*ExecResult, error) {
	return &ExecResult{Content: t.store.Root()}, nil
}
