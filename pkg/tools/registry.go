package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"appbuilder/pkg/workspace"
)

// AgentContext carries what a tool factory needs to build a tool for one run.
type AgentContext struct {
	Store          *workspace.Store
	CommandTimeout time.Duration
}

// ToolFactory creates a tool instance configured for a specific agent context.
type ToolFactory func(ctx AgentContext) (Tool, error)

// ToolMeta contains metadata about a tool for documentation and discovery.
type ToolMeta struct {
	Name        string
	Description string
	InputSchema InputSchema
}

type toolDescriptor struct {
	factory ToolFactory
	meta    ToolMeta
}

// Registry maps canonical tool names to factories. Names are unique: registering
// the same name twice panics.
type Registry struct {
	tools  map[string]toolDescriptor
	mu     sync.RWMutex
	sealed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]toolDescriptor)}
}

//nolint:gochecknoglobals // canonical registry populated once in init
var defaultRegistry = NewRegistry()

func init() { //nolint:gochecknoinits // canonical tool registration
	defaultRegistry.Register(ToolWriteFile, newWriteFileTool, &ToolMeta{
		Name:        ToolWriteFile,
		Description: "Writes content to a file at the specified path within the project root.",
		InputSchema: writeFileSchema(),
	})
	defaultRegistry.Register(ToolReadFile, newReadFileTool, &ToolMeta{
		Name:        ToolReadFile,
		Description: "Reads content from a file at the specified path within the project root.",
		InputSchema: readFileSchema(),
	})
	defaultRegistry.Register(ToolListFile, newListFileTool, &ToolMeta{
		Name:        ToolListFile,
		Description: "Lists all files in the specified directory within the project root.",
		InputSchema: listFileSchema(),
	})
	defaultRegistry.Register(ToolPrintTree, newPrintTreeTool, &ToolMeta{
		Name:        ToolPrintTree,
		Description: "Prints a tree structure of files and directories up to a certain depth.",
		InputSchema: printTreeSchema(),
	})
	defaultRegistry.Register(ToolOpenFile, newOpenFileTool, &ToolMeta{
		Name:        ToolOpenFile,
		Description: "Opens a file and returns specific lines. If line_end is omitted, returns from line_start to end.",
		InputSchema: openFileSchema(),
	})
	defaultRegistry.Register(ToolGetCurrentDirectory, newGetCurrentDirectoryTool, &ToolMeta{
		Name:        ToolGetCurrentDirectory,
		Description: "Returns the current working directory (the project root).",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	})
	defaultRegistry.Register(ToolRunCmd, newRunCmdTool, &ToolMeta{
		Name:        ToolRunCmd,
		Description: "Runs a shell command in the specified directory and returns the exit code, stdout and stderr.",
		InputSchema: runCmdSchema(),
	})
	defaultRegistry.Seal()
}

// Default returns the canonical registry holding the seven file-store tools.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a tool factory. It panics on a duplicate name or a sealed registry.
func (r *Registry) Register(name string, factory ToolFactory, meta *ToolMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool '%s'", name))
	}
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool '%s' already registered", name))
	}
	r.tools[name] = toolDescriptor{meta: *meta, factory: factory}
}

// Seal prevents further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (toolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.tools[name]
	return desc, ok
}

// ToolProvider creates and caches tool instances for one agent context, limited to
// an allow-list.
type ToolProvider struct {
	registry *Registry
	tools    map[string]Tool
	allowSet map[string]struct{}
	ctx      AgentContext
	allowed  []string
	mu       sync.Mutex
}

// NewProvider creates a provider over the canonical registry.
func NewProvider(ctx AgentContext, allowedTools []string) *ToolProvider {
	return NewProviderFromRegistry(defaultRegistry, ctx, allowedTools)
}

// NewProviderFromRegistry creates a provider over an explicit registry.
func NewProviderFromRegistry(registry *Registry, ctx AgentContext, allowedTools []string) *ToolProvider {
	allowSet := make(map[string]struct{}, len(allowedTools))
	allowed := make([]string, 0, len(allowedTools))
	for _, name := range allowedTools {
		if _, dup := allowSet[name]; dup {
			continue
		}
		allowSet[name] = struct{}{}
		allowed = append(allowed, name)
	}

	return &ToolProvider{
		registry: registry,
		ctx:      ctx,
		tools:    make(map[string]Tool),
		allowSet: allowSet,
		allowed:  allowed,
	}
}

// Get retrieves a tool instance, creating it lazily if needed.
func (p *ToolProvider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.allowSet[name]; !ok {
		return nil, fmt.Errorf("tool '%s' not allowed in this context", name)
	}
	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	desc, exists := p.registry.lookup(name)
	if !exists {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}

	tool, err := desc.factory(p.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool '%s': %w", name, err)
	}
	p.tools[name] = tool
	return tool, nil
}

// List returns metadata for the allowed tools in allow-list order.
func (p *ToolProvider) List() []ToolMeta {
	result := make([]ToolMeta, 0, len(p.allowed))
	for _, name := range p.allowed {
		if desc, ok := p.registry.lookup(name); ok {
			result = append(result, desc.meta)
		}
	}
	return result
}

// Definitions returns the allowed tools as model-facing definitions.
func (p *ToolProvider) Definitions() []ToolDefinition {
	metas := p.List()
	defs := make([]ToolDefinition, len(metas))
	for i := range metas {
		defs[i] = ToolDefinition{
			Name:        metas[i].Name,
			Description: metas[i].Description,
			InputSchema: metas[i].InputSchema,
		}
	}
	return defs
}

// GenerateToolDocumentation renders markdown documentation for the allowed tools.
func (p *ToolProvider) GenerateToolDocumentation() string {
	if len(p.allowed) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for _, name := range p.allowed {
		tool, err := p.Get(name)
		if err != nil {
			continue
		}
		doc.WriteString(tool.PromptDocumentation())
		doc.WriteString("\n")
	}
	return doc.String()
}
