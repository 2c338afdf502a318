package types

import (
	"context"
)

// Turn is one prior conversation turn fed to the oracle. Role follows the
// Gemini convention: "user", "model", or "function" for tool-result turns.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Tool-result turns only.
	ToolName string `json:"tool_name,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

// ToolDefinition describes a tool the oracle may request.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the oracle.
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// OracleResponse is exactly one of: a tool request (len(ToolCalls) > 0) or
// plain text. The agent loop branches on that distinction and nothing else.
type OracleResponse struct {
	Text       string     `json:"text"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason,omitempty"`
}

// HasToolCalls reports whether the response is a tool request.
func (r *OracleResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Oracle is the external reasoning service, reduced to the request/response
// boundary the core needs. Implementations suspend the calling goroutine
// until resolved; retries and backoff live behind this interface.
type Oracle interface {
	// Complete sends a bare prompt and returns text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt under a system instruction.
	CompleteWithSystem(ctx context.Context, system, prompt string) (string, error)

	// Converse sends the full ordered history plus tool declarations and
	// returns the next oracle turn. History includes the new input as its
	// final turn; tool results are "function" role turns.
	Converse(ctx context.Context, system string, history []Turn, tools []ToolDefinition) (*OracleResponse, error)
}

// ImageMarker separates a tool's text output from an attached image data
// URL. The loop splits on it and moves the image into the LOG payload.
const ImageMarker = "@@IMAGE:"

// Event is one outbound gateway frame. Payload shape depends on Type.
type Event struct {
	Type    string      `json:"type"` // LOG, CHANNEL_SWITCH, KPI_UPDATE, MARKET_UPDATE, HISTORY_SYNC
	Channel string      `json:"channelId,omitempty"`
	Target  string      `json:"target,omitempty"` // CHANNEL_SWITCH destination
	Payload interface{} `json:"payload,omitempty"`
	Data    interface{} `json:"data,omitempty"`

	// MARKET_UPDATE flattened fields (frontend terminal contract).
	Coin       string   `json:"coin,omitempty"`
	Price      float64  `json:"price,omitempty"`
	Sentiment  string   `json:"sentiment,omitempty"`
	Confidence int      `json:"confidence,omitempty"`
	MacroTrend string   `json:"macroTrend,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
}

// LogPayload is the Payload of a LOG event.
type LogPayload struct {
	Message  string  `json:"msg"`
	Kind     LogKind `json:"type"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// Sink receives structured events. LOG events are both fanned out to
// listeners and durably appended; everything else is transient. The gateway
// hub is the production implementation; tests substitute a recorder.
type Sink interface {
	// Broadcast fans an event out to all connected listeners.
	Broadcast(evt Event)

	// Log persists a channel log entry and broadcasts it as a LOG event.
	Log(channel, msg string, kind LogKind, imageURL string)
}
