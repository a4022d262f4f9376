package tools

// Canonical tool names. Each operation is registered under exactly one name.
const (
	ToolWriteFile           = "write_file"
	ToolReadFile            = "read_file"
	ToolListFile            = "list_file"
	ToolPrintTree           = "print_tree"
	ToolOpenFile            = "open_file"
	ToolGetCurrentDirectory = "get_current_directory"
	ToolRunCmd              = "run_cmd"
)

// CoderTools is the full tool layer available to the coder agent.
//
//nolint:gochecknoglobals // read-only tool set
var CoderTools = []string{
	ToolWriteFile,
	ToolReadFile,
	ToolListFile,
	ToolPrintTree,
	ToolOpenFile,
	ToolGetCurrentDirectory,
	ToolRunCmd,
}
