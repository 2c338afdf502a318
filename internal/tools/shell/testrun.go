package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"nexus/internal/tools"
)

// runners maps a file extension to the interpreter that executes it.
var runners = map[string]string{
	".py":  "python3",
	".js":  "node",
	".mjs": "node",
	".sh":  "sh",
}

// TestRunTool writes a snippet to a scratch file and executes it,
// reporting pass/fail from the exit status.
func TestRunTool() *tools.Tool {
	return &tools.Tool{
		Name:        "run_test",
		Description: "Write a test snippet to a scratch file and execute it; reports PASS when it exits cleanly",
		Category:    tools.CategoryDev,
		Weight:      4,
		Execute:     runTest,
		Schema: tools.ToolSchema{
			Required: []string{"file", "code"},
			Properties: map[string]tools.Property{
				"file": {Type: "string", Description: "File name, extension selects the interpreter (.py, .js, .sh)"},
				"code": {Type: "string", Description: "Source to write and run"},
			},
		},
	}
}

func runTest(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["file"].(string)
	code, _ := args["code"].(string)
	if name == "" || code == "" {
		return "", fmt.Errorf("file and code are required")
	}

	runner, ok := runners[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", fmt.Errorf("unsupported test file extension: %s", filepath.Ext(name))
	}

	dir, err := os.MkdirTemp("", "nexus-test-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to write test file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	out, err := exec.CommandContext(runCtx, runner, path).CombinedOutput()
	report := strings.TrimSpace(string(out))
	if len(report) > maxOutputBytes {
		report = report[:maxOutputBytes] + "\n... (output truncated)"
	}
	if err != nil {
		return fmt.Sprintf("FAIL: %v\n%s", err, report), nil
	}
	if report == "" {
		return "PASS", nil
	}
	return "PASS\n" + report, nil
}
