package repo

import (
	"context"
	"fmt"
	"strings"

	"nexus/internal/tools"
)

// Tools returns the DEV department tool set backed by one GitHub client.
func Tools(c *Client) []*tools.Tool {
	return []*tools.Tool{
		readFileTool(c),
		writeFileTool(c),
		listTreeTool(c),
		searchCodeTool(c),
		dispatchTool(c),
	}
}

func readFileTool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "github_read_file",
		Description: "Read a file from the project repository",
		Category:    tools.CategoryDev,
		Weight:      2,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			ref, _ := args["ref"].(string)
			return c.ReadFile(ctx, path, ref)
		},
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {Type: "string", Description: "File path within the repository"},
				"ref":  {Type: "string", Description: "Branch, tag, or commit (default branch when omitted)"},
			},
		},
	}
}

func writeFileTool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "github_write_file",
		Description: "Create or update a file in the project repository",
		Category:    tools.CategoryDev,
		Weight:      5,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			message, _ := args["message"].(string)
			return c.WriteFile(ctx, path, content, message)
		},
		Schema: tools.ToolSchema{
			Required: []string{"path", "content"},
			Properties: map[string]tools.Property{
				"path":    {Type: "string", Description: "File path within the repository"},
				"content": {Type: "string", Description: "Full new file content"},
				"message": {Type: "string", Description: "Commit message"},
			},
		},
	}
}

func listTreeTool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "github_list_tree",
		Description: "List all file paths in the project repository",
		Category:    tools.CategoryDev,
		Weight:      2,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			ref, _ := args["ref"].(string)
			paths, err := c.Tree(ctx, ref)
			if err != nil {
				return "", err
			}
			if len(paths) == 0 {
				return "(empty repository)", nil
			}
			return strings.Join(paths, "\n"), nil
		},
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"ref": {Type: "string", Description: "Branch, tag, or commit (default HEAD)"},
			},
		},
	}
}

func searchCodeTool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "github_search_code",
		Description: "Search the project repository for code matching a query",
		Category:    tools.CategoryDev,
		Weight:      3,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			paths, err := c.Search(ctx, query)
			if err != nil {
				return "", err
			}
			if len(paths) == 0 {
				return "No matches found.", nil
			}
			return strings.Join(paths, "\n"), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "Code search query"},
			},
		},
	}
}

func dispatchTool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "github_dispatch",
		Description: "Trigger a repository_dispatch event, e.g. to start a CI workflow",
		Category:    tools.CategoryDev,
		Weight:      4,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			eventType, _ := args["event_type"].(string)
			if eventType == "" {
				return "", fmt.Errorf("event_type is required")
			}
			payload, _ := args["payload"].(map[string]interface{})
			if err := c.Dispatch(ctx, eventType, payload); err != nil {
				return "", err
			}
			return fmt.Sprintf("Dispatched %s event.", eventType), nil
		},
		Schema: tools.ToolSchema{
			Required: []string{"event_type"},
			Properties: map[string]tools.Property{
				"event_type": {Type: "string", Description: "Dispatch event type name"},
				"payload":    {Type: "object", Description: "Optional client payload"},
			},
		},
	}
}
