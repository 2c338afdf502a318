// Package shell provides the shell execution tool for the INFRA
// department. Commands run under sh -c with a per-call timeout, a
// destructive-pattern deny list, and capped output.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"nexus/internal/logging"
	"nexus/internal/tools"
)

// maxOutputBytes caps combined stdout/stderr fed back to the oracle.
const maxOutputBytes = 4000

// defaultTimeout bounds a single command.
const defaultTimeout = 60 * time.Second

// denyPatterns block commands that could destroy the host. Matching is
// done on the raw command string before execution.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+(-[a-zA-Z]*\s+)*(/|/\*)(\s|$)`),
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),
	regexp.MustCompile(`\bdd\b.*\bof=/dev/`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`\b(shutdown|reboot|halt|poweroff)\b`),
}

// Blocked reports whether a command matches the deny list.
func Blocked(command string) bool {
	for _, p := range denyPatterns {
		if p.MatchString(command) {
			return true
		}
	}
	return false
}

// ExecuteTool returns the execute_command tool.
func ExecuteTool() *tools.Tool {
	return &tools.Tool{
		Name:        "execute_command",
		Description: "Execute a shell command on the server and return its combined output",
		Category:    tools.CategoryInfra,
		Weight:      3,
		Execute:     executeCommand,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The shell command to execute",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 60)",
					Default:     60,
				},
			},
		},
	}
}

func executeCommand(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("command is required")
	}

	if Blocked(command) {
		return "", fmt.Errorf("command blocked by safety policy: %s", command)
	}

	timeout := defaultTimeout
	switch t := args["timeout_seconds"].(type) {
	case int:
		if t > 0 {
			timeout = time.Duration(t) * time.Second
		}
	case float64:
		if t > 0 {
			timeout = time.Duration(t) * time.Second
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logging.ToolsDebug("execute_command: %s (timeout=%s)", command, timeout)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := buf.String()
	if len(out) > maxOutputBytes {
		out = out[:maxOutputBytes] + "\n... (output truncated)"
	}

	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		return out, fmt.Errorf("command failed: %w", err)
	}
	if out == "" {
		out = "(no output)"
	}
	return out, nil
}
