package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/tools"
	"nexus/internal/types"
)

// scriptedOracle replays a fixed sequence of responses.
type scriptedOracle struct {
	mu      sync.Mutex
	script  []*types.OracleResponse
	err     error
	calls   int
	sawDefs [][]types.ToolDefinition
}

func (o *scriptedOracle) Complete(ctx context.Context, prompt string) (string, error) {
	r, err := o.Converse(ctx, "", nil, nil)
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

func (o *scriptedOracle) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return o.Complete(ctx, prompt)
}

func (o *scriptedOracle) Converse(ctx context.Context, system string, history []types.Turn, defs []types.ToolDefinition) (*types.OracleResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.sawDefs = append(o.sawDefs, defs)
	if o.calls < len(o.script) {
		r := o.script[o.calls]
		o.calls++
		return r, nil
	}
	// Past the script the oracle narrates forever without finishing.
	o.calls++
	return &types.OracleResponse{Text: "引き続き状況を確認しています。"}, nil
}

// recorderSink captures logs and events.
type recorderSink struct {
	mu     sync.Mutex
	logs   []types.LogEntry
	events []types.Event
}

func (s *recorderSink) Broadcast(evt types.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recorderSink) Log(channel, msg string, kind types.LogKind, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, types.LogEntry{Channel: channel, Message: msg, Kind: kind, ImageURL: imageURL})
}

func (s *recorderSink) byKind(kind types.LogKind) []types.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.LogEntry
	for _, l := range s.logs {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// fakeKPI records deltas.
type fakeKPI struct {
	mu     sync.Mutex
	deltas []int
}

func (k *fakeKPI) AdjustReputation(dept types.Department, delta int) (types.Reputation, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.deltas = append(k.deltas, delta)
	return types.Reputation{Department: dept, Score: 50 + delta}, nil
}

func marketRegistry(t *testing.T, result string, execErr error) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:        "get_market_signal",
		Description: "scores a coin",
		Category:    tools.CategoryTrading,
		Weight:      4,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return result, execErr
		},
	})
	return reg
}

func toolCall(name string, args map[string]interface{}) *types.OracleResponse {
	return &types.OracleResponse{ToolCalls: []types.ToolCall{{ID: "c1", Name: name, Input: args}}}
}

func text(s string) *types.OracleResponse {
	return &types.OracleResponse{Text: s}
}

func TestMarketAnalysisEndToEnd(t *testing.T) {
	oracle := &scriptedOracle{script: []*types.OracleResponse{
		toolCall("get_market_signal", map[string]interface{}{"coin": "BTCUSDT"}),
		text("BTCは強い買いシグナルです。分析完了。"),
	}}
	sink := &recorderSink{}
	kpi := &fakeKPI{}
	loop := NewLoop(oracle, marketRegistry(t, "Signal: STRONG_BUY", nil), sink, kpi, DefaultConfig())

	loop.Run(context.Background(), "TRADING", types.DeptTrading, "sys", nil, "市場分析して")

	thinking := sink.byKind(types.KindThinking)
	require.Len(t, thinking, 1, "one thinking broadcast per dispatch")
	assert.Contains(t, thinking[0].Message, "get_market_signal")

	finals := sink.byKind(types.KindGemini)
	require.Len(t, finals, 1, "exactly one final broadcast")
	assert.Contains(t, finals[0].Message, "分析完了")

	require.Equal(t, []int{4}, kpi.deltas, "one KPI increment at the tool's weight")
}

func TestNeverFinalOracleTerminates(t *testing.T) {
	oracle := &scriptedOracle{} // narrates forever
	sink := &recorderSink{}
	cfg := Config{MaxTurns: 6, StallRetries: 2, StallKeywords: []string{"完了", "done"}}
	loop := NewLoop(oracle, tools.NewRegistry(), sink, &fakeKPI{}, cfg)

	done := make(chan struct{})
	go func() {
		loop.Run(context.Background(), "CENTRAL", types.DeptCentral, "sys", nil, "何かして")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not terminate")
	}

	finals := sink.byKind(types.KindGemini)
	require.Len(t, finals, 1, "exactly one final broadcast even when stalling")
	assert.LessOrEqual(t, oracle.calls, cfg.MaxTurns)
}

func TestStallRetryInjectsContinuation(t *testing.T) {
	oracle := &scriptedOracle{script: []*types.OracleResponse{
		text("現在の状況を確認しています。"),
		text("処理は順調です。完了しました。"),
	}}
	sink := &recorderSink{}
	loop := NewLoop(oracle, tools.NewRegistry(), sink, &fakeKPI{}, DefaultConfig())

	loop.Run(context.Background(), "DEV", types.DeptDev, "sys", nil, "やって")

	finals := sink.byKind(types.KindGemini)
	require.Len(t, finals, 1)
	assert.Contains(t, finals[0].Message, "完了")
	assert.Equal(t, 2, oracle.calls, "one stall retry then the real answer")
}

func TestFailingToolStillReachesFinalText(t *testing.T) {
	oracle := &scriptedOracle{script: []*types.OracleResponse{
		toolCall("get_market_signal", nil),
		text("データ取得に失敗しましたが調査は完了です。"),
	}}
	sink := &recorderSink{}
	kpi := &fakeKPI{}
	loop := NewLoop(oracle, marketRegistry(t, "", errors.New("exchange down")), sink, kpi, DefaultConfig())

	loop.Run(context.Background(), "TRADING", types.DeptTrading, "sys", nil, "分析して")

	finals := sink.byKind(types.KindGemini)
	require.Len(t, finals, 1)
	require.Equal(t, []int{-2}, kpi.deltas, "failure costs 2 points")
}

func TestUnknownToolFeedsErrorResult(t *testing.T) {
	oracle := &scriptedOracle{script: []*types.OracleResponse{
		toolCall("ghost_tool", nil),
		text("ツールが見つからなかったため終了します。"),
	}}
	sink := &recorderSink{}
	kpi := &fakeKPI{}
	loop := NewLoop(oracle, tools.NewRegistry(), sink, kpi, DefaultConfig())

	loop.Run(context.Background(), "DEV", types.DeptDev, "sys", nil, "やって")

	finals := sink.byKind(types.KindGemini)
	require.Len(t, finals, 1)
	require.Equal(t, []int{-2}, kpi.deltas)
}

func TestOracleFailureBroadcastsErrorAndFallback(t *testing.T) {
	oracle := &scriptedOracle{err: errors.New("all retries exhausted")}
	sink := &recorderSink{}
	loop := NewLoop(oracle, tools.NewRegistry(), sink, &fakeKPI{}, DefaultConfig())

	loop.Run(context.Background(), "DEV", types.DeptDev, "sys", nil, "やって")

	require.Len(t, sink.byKind(types.KindError), 1)
	require.Len(t, sink.byKind(types.KindGemini), 1, "fallback final still broadcast")
}

func TestBrowserImageSplitsIntoLogPayload(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:        "browser_screenshot",
		Description: "captures the page",
		Category:    tools.CategoryGeneral,
		Weight:      3,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "Screenshot captured.\n" + types.ImageMarker + "data:image/png;base64,AAAA", nil
		},
	})
	oracle := &scriptedOracle{script: []*types.OracleResponse{
		toolCall("browser_screenshot", nil),
		text("スクリーンショットを確認しました。完了。"),
	}}
	sink := &recorderSink{}
	loop := NewLoop(oracle, reg, sink, &fakeKPI{}, DefaultConfig())

	loop.Run(context.Background(), "DEV", types.DeptDev, "sys", nil, "画面を見せて")

	browserLogs := sink.byKind(types.KindBrowser)
	require.Len(t, browserLogs, 1)
	assert.Equal(t, "data:image/png;base64,AAAA", browserLogs[0].ImageURL)
}

func TestSameChannelSerialized(t *testing.T) {
	var mu sync.Mutex
	var order []string

	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:        "slow_tool",
		Description: "records entry and exit",
		Category:    tools.CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["id"].(string)
			mu.Lock()
			order = append(order, "start-"+id)
			mu.Unlock()
			time.Sleep(50 * time.Millisecond)
			mu.Lock()
			order = append(order, "end-"+id)
			mu.Unlock()
			return "ok", nil
		},
	})

	newOracle := func(id string) *scriptedOracle {
		return &scriptedOracle{script: []*types.OracleResponse{
			toolCall("slow_tool", map[string]interface{}{"id": id}),
			text("完了 " + id),
		}}
	}

	sink := &recorderSink{}
	oracle := &queueOracle{oracles: []*scriptedOracle{newOracle("a"), newOracle("b")}}
	loop := NewLoop(oracle, reg, sink, &fakeKPI{}, DefaultConfig())

	// Two commands on the same channel through the same loop instance.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Run(context.Background(), "DEV", types.DeptDev, "sys", nil, "やって")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 4)
	// Serialized execution never interleaves start/end pairs.
	assert.Equal(t, "start-", order[0][:6])
	assert.Equal(t, "end-"+order[0][6:], order[1])
}

// queueOracle hands each Run its own scripted oracle, in call order.
type queueOracle struct {
	mu      sync.Mutex
	oracles []*scriptedOracle
	next    int
}

func (q *queueOracle) pick() *scriptedOracle {
	q.mu.Lock()
	defer q.mu.Unlock()
	o := q.oracles[q.next%len(q.oracles)]
	if o.calls >= len(o.script) {
		q.next++
		o = q.oracles[q.next%len(q.oracles)]
	}
	return o
}

func (q *queueOracle) Complete(ctx context.Context, prompt string) (string, error) {
	return q.pick().Complete(ctx, prompt)
}

func (q *queueOracle) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return q.pick().CompleteWithSystem(ctx, system, prompt)
}

func (q *queueOracle) Converse(ctx context.Context, system string, history []types.Turn, defs []types.ToolDefinition) (*types.OracleResponse, error) {
	return q.pick().Converse(ctx, system, history, defs)
}

func TestLastTurnForcesAnswerWithoutTools(t *testing.T) {
	// The oracle requests tools forever; the final turn must be asked
	// without declarations and its text broadcast.
	script := make([]*types.OracleResponse, 0, 12)
	for i := 0; i < 12; i++ {
		script = append(script, toolCall("get_market_signal", nil))
	}
	oracle := &scriptedOracle{script: script}
	sink := &recorderSink{}
	cfg := Config{MaxTurns: 5, StallRetries: 2, StallKeywords: []string{"完了"}}
	loop := NewLoop(oracle, marketRegistry(t, "Signal: NEUTRAL", nil), sink, &fakeKPI{}, cfg)

	loop.Run(context.Background(), "TRADING", types.DeptTrading, "sys", nil, "分析して")

	require.Len(t, sink.byKind(types.KindGemini), 1)
	last := oracle.sawDefs[len(oracle.sawDefs)-1]
	assert.Nil(t, last, "final turn must run without tool declarations")
}

func TestSeedHistory(t *testing.T) {
	entries := []types.LogEntry{
		{Kind: types.KindUser, Message: "one"},
		{Kind: types.KindThinking, Message: "tool running"},
		{Kind: types.KindGemini, Message: "two"},
		{Kind: types.KindSystem, Message: "joined"},
		{Kind: types.KindBrowser, Message: "shot"},
		{Kind: types.KindUser, Message: "three"},
	}

	turns := SeedHistory(entries, 8)
	require.Len(t, turns, 3)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "model", turns[1].Role)
	assert.Equal(t, "three", turns[2].Content)

	// Window keeps the most recent turns.
	turns = SeedHistory(entries, 2)
	require.Len(t, turns, 2)
	assert.Equal(t, "two", turns[0].Content)
}
