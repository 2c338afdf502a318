package shell

import (
	"context"
	"strings"
	"testing"
)

func TestRunTestPassingScript(t *testing.T) {
	tool := TestRunTool()
	out, err := tool.Execute(context.Background(), map[string]any{
		"file": "check.sh",
		"code": "echo checking\nexit 0\n",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "PASS") {
		t.Errorf("expected PASS report, got %q", out)
	}
	if !strings.Contains(out, "checking") {
		t.Errorf("expected script output in report, got %q", out)
	}
}

func TestRunTestFailingScript(t *testing.T) {
	tool := TestRunTool()
	out, err := tool.Execute(context.Background(), map[string]any{
		"file": "check.sh",
		"code": "echo broken >&2\nexit 1\n",
	})
	if err != nil {
		t.Fatalf("failures must report, not error: %v", err)
	}
	if !strings.HasPrefix(out, "FAIL") {
		t.Errorf("expected FAIL report, got %q", out)
	}
}

func TestRunTestUnsupportedExtension(t *testing.T) {
	tool := TestRunTool()
	if _, err := tool.Execute(context.Background(), map[string]any{
		"file": "check.rb",
		"code": "puts 1",
	}); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestRunTestMissingArgs(t *testing.T) {
	tool := TestRunTool()
	if _, err := tool.Execute(context.Background(), map[string]any{"file": "a.sh"}); err == nil {
		t.Error("expected error when code is missing")
	}
}
