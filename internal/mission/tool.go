package mission

import (
	"context"
	"errors"
	"fmt"

	"nexus/internal/store"
	"nexus/internal/tools"
)

// Tool returns the mission_control tool for one channel. The channel is
// bound at construction so the oracle never addresses another channel's
// mission.
func Tool(m *Manager, channel string) *tools.Tool {
	return &tools.Tool{
		Name:        "mission_control",
		Description: "Manage the channel's long-running mission: create, add_tasks, update_step, save_memo, complete, read",
		Category:    tools.CategoryGeneral,
		Weight:      3,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return execute(m, channel, args)
		},
		Schema: tools.ToolSchema{
			Required: []string{"action"},
			Properties: map[string]tools.Property{
				"action": {
					Type:        "string",
					Description: "Operation to perform",
					Enum:        []any{"create", "add_tasks", "update_step", "save_memo", "complete", "read"},
				},
				"goal": {Type: "string", Description: "Mission goal (create)"},
				"tasks": {
					Type:        "array",
					Description: "Task list (create, add_tasks)",
					Items:       &tools.PropertyItems{Type: "string"},
				},
				"step": {Type: "integer", Description: "New step pointer (update_step)"},
				"memo": {Type: "string", Description: "Journal entry (save_memo)"},
			},
		},
	}
}

func execute(m *Manager, channel string, args map[string]any) (string, error) {
	action, _ := args["action"].(string)

	switch action {
	case "create":
		goal, _ := args["goal"].(string)
		ms, err := m.Create(channel, goal, stringList(args["tasks"]))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Mission created.\n%s", Format(ms)), nil

	case "add_tasks":
		ms, err := m.AddTasks(channel, stringList(args["tasks"]))
		if err != nil {
			return "", wrapNoMission(err)
		}
		return fmt.Sprintf("Task list updated.\n%s", Format(ms)), nil

	case "update_step":
		step, ok := intArg(args["step"])
		if !ok {
			return "", fmt.Errorf("step must be an integer")
		}
		ms, err := m.UpdateStep(channel, step)
		if err != nil {
			return "", wrapNoMission(err)
		}
		return fmt.Sprintf("Step is now %d (%s).", ms.Step, ms.CurrentTask()), nil

	case "save_memo":
		memo, _ := args["memo"].(string)
		if memo == "" {
			return "", fmt.Errorf("memo must not be empty")
		}
		if _, err := m.SaveMemo(channel, memo); err != nil {
			return "", wrapNoMission(err)
		}
		return "Memo saved.", nil

	case "complete":
		ms, err := m.Complete(channel)
		if err != nil {
			return "", wrapNoMission(err)
		}
		return fmt.Sprintf("Mission %q completed.", ms.Goal), nil

	case "read":
		out, err := m.Read(channel)
		if errors.Is(err, store.ErrNoActiveMission) {
			return "No active mission.", nil
		}
		if err != nil {
			return "", err
		}
		return out, nil

	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

func wrapNoMission(err error) error {
	if errors.Is(err, store.ErrNoActiveMission) {
		return fmt.Errorf("no active mission: create one first")
	}
	return err
}

// stringList tolerates the []interface{} the JSON decoder produces.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// intArg tolerates the float64 the JSON decoder produces.
func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
