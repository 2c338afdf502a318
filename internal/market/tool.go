package market

import (
	"context"
	"fmt"
	"strings"

	"nexus/internal/signal"
	"nexus/internal/tools"
)

// SignalTool returns the get_market_signal tool for the TRADING
// department. defaultCoin is scored when the oracle omits a symbol.
func SignalTool(c *Client, adxThreshold float64, defaultCoin string) *tools.Tool {
	return &tools.Tool{
		Name:        "get_market_signal",
		Description: "Fetch multi-timeframe market data for a coin and score it into a trade signal",
		Category:    tools.CategoryTrading,
		Weight:      4,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			coin, _ := args["coin"].(string)
			coin = strings.ToUpper(strings.TrimSpace(coin))
			if coin == "" {
				coin = defaultCoin
			}

			snap, err := c.BuildSnapshot(ctx, coin)
			if err != nil {
				return "", fmt.Errorf("market data unavailable for %s: %w", coin, err)
			}

			result := signal.Score(snap, adxThreshold)
			return FormatResult(result), nil
		},
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"coin": {Type: "string", Description: "Trading pair symbol, e.g. BTCUSDT"},
			},
		},
	}
}

// FormatResult renders a scored signal for the oracle and the terminal.
func FormatResult(r signal.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s @ %.2f\n", r.Coin, r.Price)
	fmt.Fprintf(&b, "Signal: %s (score %+d, confidence %d%%)\n", r.Sentiment, r.Score, r.Confidence)
	fmt.Fprintf(&b, "Macro trend: %s\n", r.MacroTrend)
	if len(r.Reasons) > 0 {
		b.WriteString("Reasons:\n")
		for _, reason := range r.Reasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}
	return b.String()
}
