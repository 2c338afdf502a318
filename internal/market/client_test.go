package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/signal"
)

// klinesJSON renders count rising candles in the exchange wire format.
func klinesJSON(count int, start float64) string {
	out := "["
	for i := 0; i < count; i++ {
		base := start + float64(i)
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`[%d,"%.2f","%.2f","%.2f","%.2f","%.2f",0,"0",0,"0","0","0"]`,
			1700000000000+int64(i)*60000, base, base+1, base-1, base+0.5, 100.0)
	}
	return out + "]"
}

func newExchange(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, klinesJSON(limit, 100))
	})
	mux.HandleFunc("/api/v3/depth", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"bids":[["100.0","3.0"],["99.9","2.0"]],"asks":[["100.1","1.0"]]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestKlinesParsing(t *testing.T) {
	srv := newExchange(t)
	c := NewClient(srv.URL, 50)

	candles, err := c.Klines(context.Background(), "BTCUSDT", "1m", 5)
	require.NoError(t, err)
	require.Len(t, candles, 5)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 101.0, candles[0].High)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 100.0, candles[0].Volume)
}

func TestDepthSumsLevels(t *testing.T) {
	srv := newExchange(t)
	c := NewClient(srv.URL, 50)

	bid, ask, err := c.Depth(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 5.0, bid)
	assert.Equal(t, 1.0, ask)
}

func TestBuildSnapshot(t *testing.T) {
	srv := newExchange(t)
	c := NewClient(srv.URL, 50)

	snap, err := c.BuildSnapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, snap.Sufficient)
	assert.Equal(t, "BTCUSDT", snap.Coin)
	assert.Equal(t, signal.TrendUp, snap.MacroTrend, "rising closes read as an uptrend")
	assert.Greater(t, snap.Price, 0.0)
	assert.Greater(t, snap.VWAP, 0.0)
	assert.Equal(t, 5.0, snap.BidDepth)
}

func TestBuildSnapshotInsufficientData(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, klinesJSON(3, 100))
	})
	mux.HandleFunc("/api/v3/depth", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bids":[],"asks":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, 50)
	snap, err := c.BuildSnapshot(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, snap.Sufficient)

	r := signal.Score(snap, 20)
	assert.Equal(t, signal.SentimentWait, r.Sentiment)
}

func TestExchangeErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50)
	_, err := c.Klines(context.Background(), "NOPE", "1m", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
