package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/signal"
)

func TestSignalTool(t *testing.T) {
	srv := newExchange(t)
	tool := SignalTool(NewClient(srv.URL, 50), 20, "BTCUSDT")
	require.NoError(t, tool.Validate())

	out, err := tool.Execute(context.Background(), map[string]any{"coin": "ethusdt"})
	require.NoError(t, err)
	assert.Contains(t, out, "ETHUSDT @")
	assert.Contains(t, out, "Signal:")

	// Missing coin falls back to the default symbol.
	out, err = tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out, "BTCUSDT @")
}

func TestFormatResult(t *testing.T) {
	out := FormatResult(signal.Result{
		Coin: "BTCUSDT", Price: 50000, Score: 6,
		Sentiment: signal.SentimentStrongBuy, Confidence: 67,
		MacroTrend: signal.TrendBullish,
		Reasons:    []string{"macro uptrend", "holding above VWAP"},
	})
	assert.Contains(t, out, "STRONG_BUY")
	assert.Contains(t, out, "confidence 67%")
	assert.Contains(t, out, "Macro trend: BULLISH")
	assert.Contains(t, out, "- macro uptrend")
}
