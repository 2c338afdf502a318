// Package background owns the server's periodic tasks: the market scan,
// the risk check, and the KPI heartbeat. Every task reads fresh state on
// each tick, logs failures, and keeps going until the context is done.
package background

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"nexus/internal/logging"
	"nexus/internal/market"
	"nexus/internal/signal"
	"nexus/internal/store"
	"nexus/internal/types"
)

// Options tunes the background tasks.
type Options struct {
	Coins        []string
	ScanInterval time.Duration
	ADXThreshold float64

	// StrongConfidence is the confidence at which a non-neutral signal
	// is worth a TRADING channel log.
	StrongConfidence int

	RiskInterval      time.Duration
	HeartbeatInterval time.Duration

	// MissionStale flags active missions untouched for this long.
	MissionStale time.Duration
}

// DefaultOptions returns the task defaults.
func DefaultOptions() Options {
	return Options{
		Coins:             []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"},
		ScanInterval:      5 * time.Minute,
		ADXThreshold:      20,
		StrongConfidence:  55,
		RiskInterval:      30 * time.Minute,
		HeartbeatInterval: 60 * time.Second,
		MissionStale:      6 * time.Hour,
	}
}

// Runner drives the tickers.
type Runner struct {
	market *market.Client
	store  *store.Store
	sink   types.Sink
	opts   Options

	// scanPaused gates the market scan; the gateway toggles it via the
	// SYSTEM:TRADING_START/STOP commands.
	scanPaused atomic.Bool
}

// NewRunner wires a Runner. Zero-valued intervals fall back to defaults.
func NewRunner(mc *market.Client, st *store.Store, sink types.Sink, opts Options) *Runner {
	def := DefaultOptions()
	if len(opts.Coins) == 0 {
		opts.Coins = def.Coins
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = def.ScanInterval
	}
	if opts.ADXThreshold <= 0 {
		opts.ADXThreshold = def.ADXThreshold
	}
	if opts.StrongConfidence <= 0 {
		opts.StrongConfidence = def.StrongConfidence
	}
	if opts.RiskInterval <= 0 {
		opts.RiskInterval = def.RiskInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = def.HeartbeatInterval
	}
	if opts.MissionStale <= 0 {
		opts.MissionStale = def.MissionStale
	}
	return &Runner{market: mc, store: st, sink: sink, opts: opts}
}

// SetScanning starts or pauses the market scan. The ticker keeps
// running; paused iterations do nothing.
func (r *Runner) SetScanning(on bool) {
	r.scanPaused.Store(!on)
	logging.Market("scan enabled=%v", on)
}

// Scanning reports whether the market scan is active.
func (r *Runner) Scanning() bool {
	return !r.scanPaused.Load()
}

// RunMarketScan scores every configured coin on a ticker and broadcasts
// MARKET_UPDATE events. Strong signals also land in the TRADING log.
func (r *Runner) RunMarketScan(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.ScanInterval)
	defer ticker.Stop()

	r.scanOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.scanOnce(ctx)
		}
	}
}

func (r *Runner) scanOnce(ctx context.Context) {
	if r.scanPaused.Load() {
		return
	}
	for _, coin := range r.opts.Coins {
		snap, err := r.market.BuildSnapshot(ctx, coin)
		if err != nil {
			logging.MarketWarn("scan %s: %v", coin, err)
			continue
		}
		res := signal.Score(snap, r.opts.ADXThreshold)

		r.sink.Broadcast(types.Event{
			Type:       "MARKET_UPDATE",
			Coin:       res.Coin,
			Price:      res.Price,
			Sentiment:  res.Sentiment,
			Confidence: res.Confidence,
			MacroTrend: res.MacroTrend,
			Reasons:    res.Reasons,
		})
		logging.Market("scan %s: %s score=%d conf=%d", coin, res.Sentiment, res.Score, res.Confidence)

		if r.isStrong(res) {
			r.sink.Log(string(types.DeptTrading), market.FormatResult(res), types.KindSystem, "")
		}
	}
}

// isStrong reports whether a scan result warrants an unsolicited log.
func (r *Runner) isStrong(res signal.Result) bool {
	switch res.Sentiment {
	case signal.SentimentNeutral, signal.SentimentWait:
		return false
	}
	return res.Confidence >= r.opts.StrongConfidence
}

// RunRiskCheck periodically flags weak departments and stale missions.
func (r *Runner) RunRiskCheck(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.RiskInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.riskOnce()
		}
	}
}

func (r *Runner) riskOnce() {
	reps, err := r.store.AllReputation()
	if err != nil {
		logging.KPIError("risk check: %v", err)
		return
	}
	for _, rep := range reps {
		if types.Mood(rep.Score) != types.MoodDefensive {
			continue
		}
		r.sink.Log(string(rep.Department),
			fmt.Sprintf("注意: %s の評価スコアが %d まで低下しています。", rep.Department, rep.Score),
			types.KindSystem, "")
	}

	for _, dept := range types.AllDepartments {
		ms, err := r.store.ActiveMission(string(dept))
		if err != nil {
			continue
		}
		if age := time.Since(ms.UpdatedAt); age > r.opts.MissionStale {
			r.sink.Log(ms.Channel,
				fmt.Sprintf("ミッション「%s」が %s 更新されていません。進捗を確認してください。",
					ms.Goal, age.Round(time.Hour)),
				types.KindSystem, "")
		}
	}
}

// RunKPIHeartbeat periodically re-broadcasts every KPI row so freshly
// connected dashboards converge without waiting for a tool call.
func (r *Runner) RunKPIHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reps, err := r.store.AllReputation()
			if err != nil {
				logging.KPIError("heartbeat: %v", err)
				continue
			}
			r.sink.Broadcast(types.Event{Type: "KPI_UPDATE", Data: reps})
		}
	}
}
