package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"nexus/internal/logging"
	"nexus/internal/signal"
)

// Timeframes used for the multi-timeframe snapshot.
const (
	intervalMacro = "4h"
	intervalMeso  = "15m"
	intervalMicro = "1m"
)

// Candle counts per fetch. Meso carries the longest lookback (52-candle
// cloud, 14-period ADX).
const (
	limitMacro = 60
	limitMeso  = 120
	limitMicro = 60
)

// Client talks to a Binance-style public REST API.
type Client struct {
	baseURL    string
	depthLimit int
	httpClient *http.Client
}

// NewClient returns a market data client for baseURL.
func NewClient(baseURL string, depthLimit int) *Client {
	if depthLimit <= 0 {
		depthLimit = 50
	}
	return &Client{
		baseURL:    baseURL,
		depthLimit: depthLimit,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Klines fetches OHLCV candles for a symbol and interval.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", q)
	if err != nil {
		return nil, err
	}

	// Binance encodes each candle as a mixed-type array:
	// [openTime, "open", "high", "low", "close", "volume", ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse klines: %w", err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		var candle Candle
		if err := json.Unmarshal(row[0], &candle.OpenTime); err != nil {
			return nil, fmt.Errorf("failed to parse kline open time: %w", err)
		}
		fields := []*float64{&candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume}
		for i, dst := range fields {
			var s string
			if err := json.Unmarshal(row[i+1], &s); err != nil {
				return nil, fmt.Errorf("failed to parse kline field %d: %w", i+1, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse kline value %q: %w", s, err)
			}
			*dst = v
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// Depth fetches the order book and returns summed bid and ask volume over
// the configured number of levels.
func (c *Client) Depth(ctx context.Context, symbol string) (bid, ask float64, err error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(c.depthLimit))

	body, err := c.get(ctx, "/api/v3/depth", q)
	if err != nil {
		return 0, 0, err
	}

	var book struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &book); err != nil {
		return 0, 0, fmt.Errorf("failed to parse depth: %w", err)
	}

	sum := func(levels [][]string) float64 {
		total := 0.0
		for _, level := range levels {
			if len(level) < 2 {
				continue
			}
			qty, err := strconv.ParseFloat(level[1], 64)
			if err != nil {
				continue
			}
			total += qty
		}
		return total
	}
	return sum(book.Bids), sum(book.Asks), nil
}

// BuildSnapshot assembles the multi-timeframe view for one coin: macro
// candles set the trend, meso candles carry regime strength, VWAP, MACD
// and the cloud, micro candles carry the mean-reversion and flow reads.
func (c *Client) BuildSnapshot(ctx context.Context, coin string) (signal.Snapshot, error) {
	macro, err := c.Klines(ctx, coin, intervalMacro, limitMacro)
	if err != nil {
		return signal.Snapshot{}, fmt.Errorf("macro klines: %w", err)
	}
	meso, err := c.Klines(ctx, coin, intervalMeso, limitMeso)
	if err != nil {
		return signal.Snapshot{}, fmt.Errorf("meso klines: %w", err)
	}
	micro, err := c.Klines(ctx, coin, intervalMicro, limitMicro)
	if err != nil {
		return signal.Snapshot{}, fmt.Errorf("micro klines: %w", err)
	}

	bid, ask, err := c.Depth(ctx, coin)
	if err != nil {
		// A missing book degrades the score, it does not block it.
		logging.MarketWarn("%s depth fetch failed: %v", coin, err)
		bid, ask = 0, 0
	}

	snap := signal.Snapshot{
		Coin:     coin,
		BidDepth: bid,
		AskDepth: ask,
	}
	if len(micro) > 0 {
		snap.Price = micro[len(micro)-1].Close
	} else if len(meso) > 0 {
		snap.Price = meso[len(meso)-1].Close
	}

	// Longest lookbacks: macro EMA50, meso cloud 52 / ADX 2*14, micro
	// MACD 35 and z-score 20.
	if len(macro) < 50 || len(meso) < 52 || len(micro) < 35 {
		return snap, nil
	}
	snap.Sufficient = true

	macroCloses := closes(macro)
	ema20 := EMA(macroCloses, 20)
	ema50 := EMA(macroCloses, 50)
	switch {
	case ema20 > ema50:
		snap.MacroTrend = signal.TrendUp
	case ema20 < ema50:
		snap.MacroTrend = signal.TrendDown
	}

	snap.ADX = ADX(meso, 14)
	snap.VWAP = VWAP(meso)
	snap.CVD = CVD(micro)
	snap.ZScore = ZScore(closes(micro), 20)

	macd := MACD(closes(micro))
	switch {
	case macd.BullishCross():
		snap.MACD = signal.CrossBullish
	case macd.BearishCross():
		snap.MACD = signal.CrossBearish
	}

	cloud := CloudSpans(meso)
	switch {
	case cloud.Above(snap.Price):
		snap.Cloud = signal.CloudAbove
	case cloud.Below(snap.Price):
		snap.Cloud = signal.CloudBelow
	}

	logging.MarketDebug("%s snapshot price=%.2f adx=%.1f vwap=%.2f z=%.2f", coin, snap.Price, snap.ADX, snap.VWAP, snap.ZScore)
	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
