// Package signal scores multi-timeframe market snapshots into trade
// sentiment. The engine is pure: it sees only a prepared Snapshot and
// returns a deterministic Result, so the scoring rules are testable
// without any exchange access.
package signal

import (
	"math"

	"nexus/internal/logging"
)

// Trend is the macro timeframe direction.
type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

// Cross is the most recent MACD line/signal relationship.
type Cross int

const (
	CrossNone Cross = iota
	CrossBullish
	CrossBearish
)

// CloudPosition locates price against the dual-band cloud.
type CloudPosition int

const (
	CloudInside CloudPosition = iota
	CloudAbove
	CloudBelow
)

// Label renders the trend for results and broadcasts. A gated or
// insufficient snapshot always reads as SIDEWAYS regardless of the
// macro direction.
func (t Trend) Label() string {
	switch t {
	case TrendUp:
		return TrendBullish
	case TrendDown:
		return TrendBearish
	default:
		return TrendSideways
	}
}

// Macro trend labels.
const (
	TrendBullish  = "BULLISH"
	TrendBearish  = "BEARISH"
	TrendSideways = "SIDEWAYS"
)

// Sentiment labels, strongest to weakest.
const (
	SentimentStrongBuy  = "STRONG_BUY"
	SentimentBuy        = "BUY"
	SentimentNeutral    = "NEUTRAL"
	SentimentSell       = "SELL"
	SentimentStrongSell = "STRONG_SELL"
	SentimentWait       = "WAIT"
)

// Snapshot is the condensed multi-timeframe view the engine scores.
type Snapshot struct {
	Coin  string
	Price float64

	// Sufficient is false when any timeframe had fewer candles than the
	// longest indicator lookback.
	Sufficient bool

	MacroTrend Trend   // higher timeframe direction
	ADX        float64 // meso trend strength
	VWAP       float64 // meso session VWAP
	CVD        float64 // cumulative volume delta, accumulation proxy
	ZScore     float64 // price z-score on the micro timeframe
	MACD       Cross
	Cloud      CloudPosition

	BidDepth float64 // top-of-book bid volume
	AskDepth float64 // top-of-book ask volume
}

// Result is the scored verdict for one coin.
type Result struct {
	Coin       string   `json:"coin"`
	Price      float64  `json:"price"`
	Score      int      `json:"score"`
	Sentiment  string   `json:"sentiment"`
	Confidence int      `json:"confidence"`
	MacroTrend string   `json:"macroTrend"`
	Reasons    []string `json:"reasons"`
}

const (
	scoreMin = -10
	scoreMax = 10
)

// Score evaluates a snapshot. adxThreshold gates directional scoring:
// below it the meso regime is treated as sideways and the engine returns
// WAIT with zero confidence.
func Score(s Snapshot, adxThreshold float64) Result {
	if !s.Sufficient {
		return Result{
			Coin:       s.Coin,
			Price:      s.Price,
			Sentiment:  SentimentWait,
			MacroTrend: TrendSideways,
			Reasons:    []string{"insufficient candle history"},
		}
	}

	if s.ADX < adxThreshold {
		return Result{
			Coin:       s.Coin,
			Price:      s.Price,
			Sentiment:  SentimentWait,
			MacroTrend: TrendSideways,
			Reasons:    []string{"SIDEWAYS regime: trend strength below threshold"},
		}
	}

	score := 0
	var reasons []string
	add := func(pts int, reason string) {
		score += pts
		reasons = append(reasons, reason)
	}

	switch s.MacroTrend {
	case TrendUp:
		add(2, "macro uptrend")
	case TrendDown:
		add(-2, "macro downtrend")
	}

	// VWAP interaction is read through the macro trend: a pullback to the
	// far side of VWAP with confirming volume flow is the strongest entry,
	// the same pullback without flow is a warning.
	switch s.MacroTrend {
	case TrendUp:
		switch {
		case s.Price < s.VWAP && s.CVD > 0:
			add(3, "pullback below VWAP with accumulation")
		case s.Price < s.VWAP:
			add(-1, "below VWAP without buy flow")
		case s.Price > s.VWAP:
			add(1, "holding above VWAP")
		}
	case TrendDown:
		switch {
		case s.Price > s.VWAP && s.CVD < 0:
			add(-3, "rally above VWAP with distribution")
		case s.Price > s.VWAP:
			add(1, "above VWAP without sell flow")
		case s.Price < s.VWAP:
			add(-1, "rejected below VWAP")
		}
	}

	switch {
	case s.ZScore > 2.5:
		add(-2, "overextended above mean")
	case s.ZScore < -2.5:
		add(2, "overextended below mean")
	}

	switch s.MACD {
	case CrossBullish:
		add(1, "MACD bullish crossover")
	case CrossBearish:
		add(-1, "MACD bearish crossover")
	}

	if depth := s.BidDepth + s.AskDepth; depth > 0 {
		frac := s.BidDepth / depth
		switch {
		case frac > 0.65:
			add(1, "order book bid-heavy")
		case frac < 0.35:
			add(-1, "order book ask-heavy")
		}
	}

	switch s.Cloud {
	case CloudAbove:
		add(1, "price above cloud")
	case CloudBelow:
		add(-1, "price below cloud")
	case CloudInside:
		reasons = append(reasons, "inside cloud: caution")
	}

	if score > scoreMax {
		score = scoreMax
	}
	if score < scoreMin {
		score = scoreMin
	}

	confidence := int(math.Round(math.Abs(float64(score)) / 9.0 * 100.0))
	if confidence > 99 {
		confidence = 99
	}

	sentiment := SentimentNeutral
	switch {
	case score >= 5:
		sentiment = SentimentStrongBuy
	case score >= 3:
		sentiment = SentimentBuy
	case score <= -5:
		sentiment = SentimentStrongSell
	case score <= -3:
		sentiment = SentimentSell
	}

	logging.Signal("%s score=%d sentiment=%s confidence=%d", s.Coin, score, sentiment, confidence)

	return Result{
		Coin:       s.Coin,
		Price:      s.Price,
		Score:      score,
		Sentiment:  sentiment,
		Confidence: confidence,
		MacroTrend: s.MacroTrend.Label(),
		Reasons:    reasons,
	}
}
