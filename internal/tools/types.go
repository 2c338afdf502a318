// Package tools provides the registry the agent loop dispatches oracle
// tool calls through. Each tool is standalone; departments see the subset
// matching their category plus the general set.
package tools

import (
	"context"

	"nexus/internal/types"
)

// ToolCategory scopes a tool to the department that may call it.
type ToolCategory string

const (
	// CategoryGeneral is available to every department.
	CategoryGeneral ToolCategory = "general"

	// CategoryDev covers repository and deployment tooling.
	CategoryDev ToolCategory = "dev"

	// CategoryTrading covers market data and signal tooling.
	CategoryTrading ToolCategory = "trading"

	// CategoryInfra covers shell and deployment checks.
	CategoryInfra ToolCategory = "infra"
)

// Property describes a single parameter for the tool JSON schema.
type Property struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Default     any            `json:"default,omitempty"`
	Enum        []any          `json:"enum,omitempty"`
	Items       *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
type ToolSchema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines one callable operation exposed to the oracle.
type Tool struct {
	// Name is the unique identifier sent in functionDeclarations.
	Name string

	// Description explains what the tool does, for the oracle.
	Description string

	// Category scopes the tool to a department.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Weight is the KPI delta awarded on a successful call, in [2,5].
	// Zero means the default of 2.
	Weight int
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// SuccessDelta returns the KPI points a successful call earns.
func (t *Tool) SuccessDelta() int {
	if t.Weight < 2 {
		return 2
	}
	if t.Weight > 5 {
		return 5
	}
	return t.Weight
}

// Definition renders the tool as an oracle function declaration.
func (t *Tool) Definition() types.ToolDefinition {
	props := make(map[string]interface{}, len(t.Schema.Properties))
	for name, p := range t.Schema.Properties {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Items != nil {
			prop["items"] = map[string]interface{}{"type": p.Items.Type}
		}
		props[name] = prop
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(t.Schema.Required) > 0 {
		schema["required"] = t.Schema.Required
	}
	return types.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	ToolName   string
	Result     string
	Error      error
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
