package tools

import (
	"context"
	"errors"
	"testing"

	"nexus/internal/types"
)

func echoTool(name string, category ToolCategory) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Category:    category,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			msg, _ := args["msg"].(string)
			return msg, nil
		},
		Schema: ToolSchema{
			Required: []string{"msg"},
			Properties: map[string]Property{
				"msg": {Type: "string", Description: "text to echo"},
			},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("echo", CategoryGeneral)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !r.Has("echo") {
		t.Error("expected Has(echo) = true")
	}
	if r.Get("missing") != nil {
		t.Error("expected nil for unknown tool")
	}
	if r.Count() != 1 {
		t.Errorf("expected Count=1, got %d", r.Count())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", CategoryGeneral))
	err := r.Register(echoTool("echo", CategoryGeneral))
	if !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Errorf("expected ErrToolAlreadyRegistered, got %v", err)
	}
}

func TestRegisterInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Tool{Name: ""}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register(&Tool{Name: "x"}); err == nil {
		t.Error("expected error for nil execute")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "ghost", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}

func TestExecuteValidatesRequiredArgs(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("echo", CategoryGeneral))

	res, err := r.Execute(context.Background(), "echo", map[string]any{})
	if !errors.Is(err, ErrMissingRequiredArg) {
		t.Errorf("expected ErrMissingRequiredArg, got %v", err)
	}
	if res == nil || res.IsSuccess() {
		t.Error("expected failed result")
	}

	res, err = r.Execute(context.Background(), "echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Result != "hi" {
		t.Errorf("expected hi, got %q", res.Result)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&Tool{
		Name:        "boom",
		Description: "always panics",
		Category:    CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			panic("kaboom")
		},
	})

	res, err := r.Execute(context.Background(), "boom", nil)
	if err == nil {
		t.Fatal("expected error from panicking tool")
	}
	if res == nil || res.IsSuccess() {
		t.Error("expected failed result from panic")
	}
}

func TestForDepartment(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("common", CategoryGeneral))
	r.MustRegister(echoTool("deploy_check", CategoryInfra))
	r.MustRegister(echoTool("market_read", CategoryTrading))

	trading := r.ForDepartment(types.DeptTrading)
	if len(trading) != 2 {
		t.Fatalf("expected 2 tools for TRADING, got %d", len(trading))
	}
	for _, tool := range trading {
		if tool.Name == "deploy_check" {
			t.Error("TRADING must not see infra tools")
		}
	}

	central := r.ForDepartment(types.DeptCentral)
	if len(central) != 1 || central[0].Name != "common" {
		t.Errorf("CENTRAL should see only general tools, got %v", central)
	}
}

func TestSuccessDeltaBounds(t *testing.T) {
	cases := []struct{ weight, want int }{
		{0, 2}, {1, 2}, {3, 3}, {5, 5}, {9, 5},
	}
	for _, tc := range cases {
		tool := &Tool{Weight: tc.weight}
		if got := tool.SuccessDelta(); got != tc.want {
			t.Errorf("weight %d: delta = %d, want %d", tc.weight, got, tc.want)
		}
	}
}

func TestDefinitionSchema(t *testing.T) {
	tool := echoTool("echo", CategoryGeneral)
	def := tool.Definition()
	if def.Name != "echo" {
		t.Errorf("expected name echo, got %s", def.Name)
	}
	props, ok := def.InputSchema["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("expected properties map in schema")
	}
	if _, ok := props["msg"]; !ok {
		t.Error("expected msg property in schema")
	}
	req, ok := def.InputSchema["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "msg" {
		t.Errorf("expected required=[msg], got %v", def.InputSchema["required"])
	}
}
