package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nexus/internal/logging"
	"nexus/internal/types"
)

// Registry holds all available tools and provides lookup functionality.
// It is thread-safe and supports registration at runtime.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool

	byCategory map[ToolCategory][]*Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]*Tool),
		byCategory: make(map[ToolCategory][]*Tool),
	}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}

	r.tools[tool.Name] = tool
	r.byCategory[tool.Category] = append(r.byCategory[tool.Category], tool)

	logging.ToolsDebug("registered tool %s (category=%s weight=%d)", tool.Name, tool.Category, tool.SuccessDelta())
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool registration at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// ForDepartment returns the general tools plus the department's own
// category, sorted by name for stable declarations.
func (r *Registry) ForDepartment(dept types.Department) []*Tool {
	category := CategoryGeneral
	switch dept {
	case types.DeptDev:
		category = CategoryDev
	case types.DeptTrading:
		category = CategoryTrading
	case types.DeptInfra:
		category = CategoryInfra
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, 0, len(r.byCategory[CategoryGeneral])+len(r.byCategory[category]))
	result = append(result, r.byCategory[CategoryGeneral]...)
	if category != CategoryGeneral {
		result = append(result, r.byCategory[category]...)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Definitions renders a tool list as oracle function declarations.
func Definitions(list []*Tool) []types.ToolDefinition {
	defs := make([]types.ToolDefinition, 0, len(list))
	for _, t := range list {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Names returns all registered tool names, sorted.
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

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name with the given arguments.
// Returns ErrToolNotFound if the tool doesn't exist. Tool panics are
// recovered and reported as errors so one bad call cannot take down a
// channel loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.ExecuteTool(ctx, tool, args)
}

// ExecuteTool runs a specific tool with the given arguments.
func (r *Registry) ExecuteTool(ctx context.Context, tool *Tool, args map[string]any) (result *ToolResult, err error) {
	start := time.Now()

	if err := r.validateArgs(tool, args); err != nil {
		return &ToolResult{
			ToolName:   tool.Name,
			Error:      err,
			DurationMs: time.Since(start).Milliseconds(),
		}, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, rec)
			result = &ToolResult{
				ToolName:   tool.Name,
				Error:      err,
				DurationMs: time.Since(start).Milliseconds(),
			}
			logging.Tools("tool %s panic recovered: %v", tool.Name, rec)
		}
	}()

	logging.ToolsDebug("executing tool %s", tool.Name)
	out, execErr := tool.Execute(ctx, args)

	duration := time.Since(start)
	logging.ToolsDebug("tool %s completed in %v (success=%v)", tool.Name, duration, execErr == nil)

	return &ToolResult{
		ToolName:   tool.Name,
		Result:     out,
		Error:      execErr,
		DurationMs: duration.Milliseconds(),
	}, execErr
}

// validateArgs checks that all required arguments are present.
func (r *Registry) validateArgs(tool *Tool, args map[string]any) error {
	for _, required := range tool.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}
