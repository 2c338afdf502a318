package background

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/market"
	"nexus/internal/store"
	"nexus/internal/types"
)

type recorderSink struct {
	mu     sync.Mutex
	events []types.Event
	logs   []types.LogEntry
}

func (s *recorderSink) Broadcast(evt types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recorderSink) Log(channel, msg string, kind types.LogKind, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, types.LogEntry{Channel: channel, Message: msg, Kind: kind})
}

func (s *recorderSink) eventsOf(kind string) []types.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Event
	for _, e := range s.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

// risingExchange serves steadily rising candles so every scan scores a
// bullish stack.
func risingExchange(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "[")
		for i := 0; i < limit; i++ {
			base := 100 + float64(i)*2
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `[%d,"%.2f","%.2f","%.2f","%.2f","%.2f",0,"0",0,"0","0","0"]`,
				1700000000000+int64(i)*60000, base, base+2.5, base-0.5, base+2, 100.0)
		}
		fmt.Fprint(w, "]")
	})
	mux.HandleFunc("/api/v3/depth", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"bids":[["100","8.0"]],"asks":[["101","2.0"]]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bg.db"))
	require.NoError(t, err)
	require.NoError(t, st.SeedReputation())
	t.Cleanup(func() { st.Close() })
	return st
}

func TestScanBroadcastsMarketUpdate(t *testing.T) {
	srv := risingExchange(t)
	sink := &recorderSink{}
	r := NewRunner(market.NewClient(srv.URL, 50), newStore(t), sink, Options{
		Coins:            []string{"BTCUSDT", "ETHUSDT"},
		StrongConfidence: 40,
	})

	r.scanOnce(context.Background())

	updates := sink.eventsOf("MARKET_UPDATE")
	require.Len(t, updates, 2)
	assert.Equal(t, "BTCUSDT", updates[0].Coin)
	assert.NotEmpty(t, updates[0].Sentiment)
	assert.NotEmpty(t, updates[0].MacroTrend)
	assert.NotEmpty(t, updates[0].Reasons)
}

func TestScanToggleGatesScan(t *testing.T) {
	srv := risingExchange(t)
	sink := &recorderSink{}
	r := NewRunner(market.NewClient(srv.URL, 50), newStore(t), sink, Options{
		Coins: []string{"BTCUSDT"},
	})
	require.True(t, r.Scanning(), "scan starts enabled")

	r.SetScanning(false)
	r.scanOnce(context.Background())
	assert.Empty(t, sink.eventsOf("MARKET_UPDATE"), "paused scan emits nothing")

	r.SetScanning(true)
	r.scanOnce(context.Background())
	assert.Len(t, sink.eventsOf("MARKET_UPDATE"), 1)
}

func TestScanSurvivesExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := &recorderSink{}
	r := NewRunner(market.NewClient(srv.URL, 50), newStore(t), sink, Options{})

	r.scanOnce(context.Background())
	assert.Empty(t, sink.events, "failed fetches produce no events")
}

func TestRiskCheckFlagsWeakDepartmentAndStaleMission(t *testing.T) {
	st := newStore(t)
	sink := &recorderSink{}

	// Drive TRADING into the defensive tier.
	for i := 0; i < 15; i++ {
		_, err := st.AdjustReputation(types.DeptTrading, -2)
		require.NoError(t, err)
	}
	require.NoError(t, st.CreateMission(types.Mission{
		ID: "m1", Channel: "DEV", Goal: "refactor the parser",
	}))

	srv := risingExchange(t)
	// A nanosecond threshold makes the freshly created mission stale.
	r := NewRunner(market.NewClient(srv.URL, 50), st, sink, Options{MissionStale: time.Nanosecond})
	time.Sleep(5 * time.Millisecond)
	r.riskOnce()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var sawScore, sawStale bool
	for _, l := range sink.logs {
		if l.Channel == "TRADING" && l.Kind == types.KindSystem {
			sawScore = true
		}
		if l.Channel == "DEV" && l.Kind == types.KindSystem {
			sawStale = true
		}
	}
	assert.True(t, sawScore, "defensive score flagged")
	assert.True(t, sawStale, "stale mission flagged")
}

func TestKPIHeartbeatBroadcastsAllRows(t *testing.T) {
	st := newStore(t)
	sink := &recorderSink{}
	srv := risingExchange(t)
	r := NewRunner(market.NewClient(srv.URL, 50), st, sink, Options{
		HeartbeatInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	err := r.RunKPIHeartbeat(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	updates := sink.eventsOf("KPI_UPDATE")
	require.NotEmpty(t, updates)
	rows, ok := updates[0].Data.([]types.Reputation)
	require.True(t, ok)
	assert.Len(t, rows, 4)
}
