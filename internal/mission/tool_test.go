package mission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolLifecycle(t *testing.T) {
	m, _ := newTestManager(t)
	tool := Tool(m, "DEV")
	require.NoError(t, tool.Validate())
	ctx := context.Background()

	out, err := tool.Execute(ctx, map[string]any{"action": "read"})
	require.NoError(t, err)
	assert.Equal(t, "No active mission.", out)

	out, err = tool.Execute(ctx, map[string]any{
		"action": "create",
		"goal":   "ship release",
		"tasks":  []interface{}{"plan", "build", "verify"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Mission created.")
	assert.Contains(t, out, "ship release")

	// JSON numbers arrive as float64.
	out, err = tool.Execute(ctx, map[string]any{"action": "update_step", "step": float64(2)})
	require.NoError(t, err)
	assert.Contains(t, out, "verify")

	out, err = tool.Execute(ctx, map[string]any{"action": "update_step", "step": float64(50)})
	require.NoError(t, err)
	assert.Contains(t, out, "Unknown")

	_, err = tool.Execute(ctx, map[string]any{"action": "save_memo", "memo": "verified on staging"})
	require.NoError(t, err)

	out, err = tool.Execute(ctx, map[string]any{"action": "read"})
	require.NoError(t, err)
	assert.Contains(t, out, "verified on staging")

	out, err = tool.Execute(ctx, map[string]any{"action": "complete"})
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
}

func TestToolErrors(t *testing.T) {
	m, _ := newTestManager(t)
	tool := Tool(m, "DEV")
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{"action": "explode"})
	assert.Error(t, err)

	_, err = tool.Execute(ctx, map[string]any{"action": "complete"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active mission")

	_, err = tool.Execute(ctx, map[string]any{"action": "update_step", "step": "three"})
	assert.Error(t, err)
}

func TestToolChannelIsolation(t *testing.T) {
	m, _ := newTestManager(t)
	devTool := Tool(m, "DEV")
	tradingTool := Tool(m, "TRADING")
	ctx := context.Background()

	_, err := devTool.Execute(ctx, map[string]any{"action": "create", "goal": "dev goal"})
	require.NoError(t, err)

	out, err := tradingTool.Execute(ctx, map[string]any{"action": "read"})
	require.NoError(t, err)
	assert.Equal(t, "No active mission.", out)
}
