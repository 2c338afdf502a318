// Package agent runs the tool-calling loop: it drives the oracle over a
// channel's conversation until the oracle produces a final answer or the
// turn budget runs out, dispatching tool calls through the registry and
// scoring the department's KPI as it goes.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"nexus/internal/logging"
	"nexus/internal/tools"
	"nexus/internal/types"
)

// KPIAdjuster applies a delta to a department score. The store satisfies
// this.
type KPIAdjuster interface {
	AdjustReputation(dept types.Department, delta int) (types.Reputation, error)
}

// Config tunes the loop.
type Config struct {
	// MaxTurns bounds oracle round-trips per command.
	MaxTurns int

	// StallRetries bounds forced continuations per command.
	StallRetries int

	// StallKeywords mark a plain text response as a genuine completion.
	StallKeywords []string
}

// DefaultConfig returns the loop defaults.
func DefaultConfig() Config {
	return Config{
		MaxTurns:      10,
		StallRetries:  2,
		StallKeywords: []string{"完了", "終了", "done", "complete"},
	}
}

// Loop drives one oracle conversation per inbound command. Commands on
// the same channel are serialized; different channels run concurrently.
type Loop struct {
	oracle   types.Oracle
	registry *tools.Registry
	sink     types.Sink
	kpi      KPIAdjuster
	cfg      Config

	// sems holds one buffered channel per conversation channel.
	sems sync.Map
}

// NewLoop wires a loop.
func NewLoop(o types.Oracle, reg *tools.Registry, sink types.Sink, kpi KPIAdjuster, cfg Config) *Loop {
	if cfg.MaxTurns < 5 {
		cfg.MaxTurns = DefaultConfig().MaxTurns
	}
	if len(cfg.StallKeywords) == 0 {
		cfg.StallKeywords = DefaultConfig().StallKeywords
	}
	return &Loop{oracle: o, registry: reg, sink: sink, kpi: kpi, cfg: cfg}
}

const continuePrompt = "ステータス報告は不要です。次のアクションを実行するか、完了したと明言してください。" +
	" (No status narration. Take the next action or state explicitly that you are done.)"

const fallbackFinal = "処理を完了しました。詳細はログを確認してください。"

// Run executes one command on a channel under the given department and
// system instruction. history seeds the conversation; the command is
// appended as the final user turn. Exactly one final gemini LOG is
// broadcast before Run returns.
func (l *Loop) Run(ctx context.Context, channel string, dept types.Department, system string, history []types.Turn, command string) {
	release := l.acquire(channel)
	defer release()

	turns := append(append([]types.Turn{}, history...), types.Turn{Role: "user", Content: command})
	toolSet := l.registry.ForDepartment(dept)
	defs := tools.Definitions(toolSet)

	stalls := 0
	logging.Agent("[%s/%s] loop start: %q (tools=%d budget=%d)", channel, dept, command, len(defs), l.cfg.MaxTurns)

	for turn := 0; turn < l.cfg.MaxTurns; turn++ {
		lastTurn := turn == l.cfg.MaxTurns-1

		callDefs := defs
		if lastTurn {
			// Budget exhausted: force a text answer.
			callDefs = nil
			turns = append(turns, types.Turn{Role: "user", Content: "ターン上限に達しました。これまでの結果を要約して最終回答を出してください。"})
		}

		resp, err := l.oracle.Converse(ctx, system, turns, callDefs)
		if err != nil {
			logging.AgentError("[%s/%s] oracle failed: %v", channel, dept, err)
			l.sink.Log(channel, fmt.Sprintf("オラクル呼び出しに失敗しました: %v", err), types.KindError, "")
			l.sink.Log(channel, fallbackFinal, types.KindGemini, "")
			return
		}

		if resp.HasToolCalls() && !lastTurn {
			for _, call := range resp.ToolCalls {
				turns = append(turns, l.dispatch(ctx, channel, dept, call)...)
			}
			continue
		}

		text := strings.TrimSpace(resp.Text)
		if text == "" {
			text = fallbackFinal
		}

		if !lastTurn && l.isStalled(text) && stalls < l.cfg.StallRetries && l.cfg.MaxTurns-turn-1 >= 2 {
			stalls++
			logging.Agent("[%s/%s] stall %d: forcing continuation", channel, dept, stalls)
			turns = append(turns,
				types.Turn{Role: "model", Content: text},
				types.Turn{Role: "user", Content: continuePrompt},
			)
			continue
		}

		l.sink.Log(channel, text, types.KindGemini, "")
		logging.Agent("[%s/%s] loop done after %d turns (%d stalls)", channel, dept, turn+1, stalls)
		return
	}

	l.sink.Log(channel, fallbackFinal, types.KindGemini, "")
	logging.Agent("[%s/%s] budget exhausted, fallback broadcast", channel, dept)
}

// dispatch runs one tool call and returns the turns to append: the model
// turn announcing the call and the function-result turn.
func (l *Loop) dispatch(ctx context.Context, channel string, dept types.Department, call types.ToolCall) []types.Turn {
	l.sink.Log(channel, fmt.Sprintf("%s を実行中...", call.Name), types.KindThinking, "")

	announce := types.Turn{Role: "model", Content: fmt.Sprintf("[tool_call] %s(%s)", call.Name, compactArgs(call.Input))}

	tool := l.registry.Get(call.Name)
	if tool == nil {
		result := fmt.Sprintf("Unknown tool: %s", call.Name)
		l.score(channel, dept, 2, false)
		return []types.Turn{announce, {Role: "function", ToolName: call.Name, Content: result, IsError: true}}
	}

	res, err := l.registry.ExecuteTool(ctx, tool, call.Input)
	result := res.Result
	if err != nil {
		result = fmt.Sprintf("Error: %v", err)
	}

	result, imageURL := splitImage(result)
	if imageURL != "" {
		l.sink.Log(channel, "ブラウザ画面を取得しました。", types.KindBrowser, imageURL)
	}

	success := err == nil && !looksLikeError(result)
	l.score(channel, dept, tool.SuccessDelta(), success)

	return []types.Turn{announce, {Role: "function", ToolName: call.Name, Content: result, IsError: !success}}
}

// score applies the KPI delta for one tool outcome and broadcasts the
// updated row.
func (l *Loop) score(channel string, dept types.Department, weight int, success bool) {
	delta := -2
	if success {
		delta = weight
	}
	rep, err := l.kpi.AdjustReputation(dept, delta)
	if err != nil {
		logging.AgentError("[%s] KPI adjust failed: %v", channel, err)
		return
	}
	l.sink.Broadcast(types.Event{Type: "KPI_UPDATE", Data: []types.Reputation{rep}})
}

func (l *Loop) isStalled(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range l.cfg.StallKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// acquire takes the channel's semaphore, creating it on first use.
func (l *Loop) acquire(channel string) func() {
	v, _ := l.sems.LoadOrStore(channel, make(chan struct{}, 1))
	sem := v.(chan struct{})
	sem <- struct{}{}
	return func() { <-sem }
}

// looksLikeError reports whether a tool result string reads as a failure.
func looksLikeError(result string) bool {
	return strings.HasPrefix(result, "Error:") || strings.Contains(result, "ERROR")
}

// splitImage separates an attached image data URL from tool text.
func splitImage(result string) (text, imageURL string) {
	idx := strings.Index(result, types.ImageMarker)
	if idx < 0 {
		return result, ""
	}
	return strings.TrimSpace(result[:idx]), strings.TrimSpace(result[idx+len(types.ImageMarker):])
}

func compactArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	if len(data) > 200 {
		return string(data[:200]) + "..."
	}
	return string(data)
}

// SeedHistory converts stored log rows into conversation turns. Only
// operator commands and oracle answers seed the prompt; system notices,
// thinking markers, and browser evidence are dropped.
func SeedHistory(entries []types.LogEntry, window int) []types.Turn {
	if window <= 0 {
		window = 8
	}

	turns := make([]types.Turn, 0, window)
	for _, e := range entries {
		switch e.Kind {
		case types.KindUser:
			turns = append(turns, types.Turn{Role: "user", Content: e.Message})
		case types.KindGemini:
			turns = append(turns, types.Turn{Role: "model", Content: e.Message})
		}
	}
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	return turns
}
