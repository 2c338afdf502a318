package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nexus/internal/agent"
	"nexus/internal/logging"
	"nexus/internal/store"
	"nexus/internal/tools"
	"nexus/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Any caller reaching the endpoint is trusted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	historyLimit = 50
)

// Routing decides a command's department and builds its system
// instruction. The persona package satisfies this.
type Routing interface {
	Route(ctx context.Context, command string) types.Department
}

// Composing builds the system instruction for a loop run.
type Composing interface {
	Compose(dept types.Department, channel string) string
}

// Scanning toggles the background market scan. The background runner
// satisfies this.
type Scanning interface {
	SetScanning(on bool)
}

// Options wires a Server.
type Options struct {
	Store    *store.Store
	Router   Routing
	Composer Composing
	Oracle   types.Oracle

	// Scanner, when set, receives the SYSTEM:TRADING_START/STOP toggle.
	Scanner Scanning

	// NewRegistry builds the tool set for a channel. Mission and browser
	// tools bind the channel at construction, so each channel gets its
	// own registry.
	NewRegistry func(channel string) *tools.Registry

	LoopConfig    agent.Config
	KPI           agent.KPIAdjuster
	HistoryWindow int

	Name      string
	Version   string
	StaticDir string
}

// Server is the HTTP surface: the WebSocket endpoint, health endpoints,
// and optional static file serving.
type Server struct {
	hub     *Hub
	opts    Options
	started time.Time

	// loops holds one agent loop per channel, created on first use.
	loops sync.Map
}

// NewServer returns a Server broadcasting through hub.
func NewServer(hub *Hub, opts Options) *Server {
	return &Server{hub: hub, opts: opts, started: time.Now()}
}

// Hub exposes the server's sink for background tasks.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"name":    s.opts.Name,
		"version": s.opts.Version,
		"clients": s.hub.ClientCount(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

// handleRoot serves the static frontend build when present, otherwise
// the status payload.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if s.opts.StaticDir != "" {
		if info, err := os.Stat(s.opts.StaticDir); err == nil && info.IsDir() {
			http.FileServer(http.Dir(s.opts.StaticDir)).ServeHTTP(w, r)
			return
		}
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.handleStatus(w, r)
}

// handleWS upgrades the connection and runs the read/write pumps. The
// channel comes from the path: /ws/{channel}, defaulting to CENTRAL.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	channel := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ws/"), "/")
	if channel == "" {
		channel = string(types.DeptCentral)
	}
	channel = strings.ToUpper(channel)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.GatewayError("upgrade failed: %v", err)
		return
	}

	c := newClient(channel, conn)
	s.hub.register(c)

	s.hub.sendTo(c, types.Event{
		Type:    "LOG",
		Channel: channel,
		Payload: types.LogPayload{
			Message: fmt.Sprintf("%s チャンネルに接続しました。", channel),
			Kind:    types.KindSystem,
		},
	})
	s.replayHistory(c)

	go s.writePump(c)
	s.readPump(c)
}

// replayHistory pushes the channel's recent rows to a new client only.
func (s *Server) replayHistory(c *client) {
	entries, err := s.opts.Store.RecentLogs(c.channel, historyLimit)
	if err != nil {
		logging.GatewayError("history replay for %s: %v", c.channel, err)
		return
	}
	if len(entries) == 0 {
		return
	}
	s.hub.sendTo(c, types.Event{Type: "HISTORY_SYNC", Channel: c.channel, Data: entries})
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.hub.unregister(c)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// inboundFrame is the union of everything a client may send.
type inboundFrame struct {
	Type    string      `json:"type"`
	Command string      `json:"command"`
	Text    string      `json:"text"`
	Image   string      `json:"image"`
	Coin    string      `json:"coin"`
	Side    string      `json:"side"`
	Size    interface{} `json:"size"`
}

func (s *Server) readPump(c *client) {
	defer s.hub.unregister(c)

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.hub.Log(c.channel, "解析できないメッセージを受信しました。", types.KindError, "")
			continue
		}
		s.handleFrame(c, frame)
	}
}

func (s *Server) handleFrame(c *client, frame inboundFrame) {
	switch {
	case frame.Type == "realtime-input":
		// Voice/vision passthrough frames carry no command; acknowledge
		// so the operator sees the frame arrived.
		logging.GatewayDebug("realtime-input on %s (text=%d image=%d bytes)",
			c.channel, len(frame.Text), len(frame.Image))
		msg := "リアルタイム入力を受信しました。"
		if t := strings.TrimSpace(frame.Text); t != "" {
			msg = fmt.Sprintf("リアルタイム入力を受信しました: %s", t)
		}
		s.hub.Log(c.channel, msg, types.KindSystem, "")

	case strings.EqualFold(frame.Type, "ORDER"):
		s.handleOrder(c, frame)

	case strings.TrimSpace(frame.Command) != "":
		cmd := strings.TrimSpace(frame.Command)
		if s.handleSystemCommand(c, cmd) {
			return
		}
		go s.runCommand(c.channel, cmd)

	default:
		logging.GatewayDebug("empty frame on %s ignored", c.channel)
	}
}

// handleSystemCommand intercepts control commands that never reach the
// agent loop. Returns true when the command was consumed.
func (s *Server) handleSystemCommand(c *client, cmd string) bool {
	switch strings.ToUpper(cmd) {
	case "SYSTEM:TRADING_START":
		if s.opts.Scanner != nil {
			s.opts.Scanner.SetScanning(true)
		}
		s.hub.Log(c.channel, "自動マーケットスキャンを開始しました。", types.KindSystem, "")
		return true
	case "SYSTEM:TRADING_STOP":
		if s.opts.Scanner != nil {
			s.opts.Scanner.SetScanning(false)
		}
		s.hub.Log(c.channel, "自動マーケットスキャンを停止しました。", types.KindSystem, "")
		return true
	}
	return false
}

// handleOrder validates and records a simulated order. Malformed input
// is rejected locally with a user-visible message and no state change.
func (s *Server) handleOrder(c *client, frame inboundFrame) {
	size, ok := numericSize(frame.Size)
	if !ok || size <= 0 {
		s.hub.Log(c.channel,
			fmt.Sprintf("注文を拒否しました: サイズが数値ではありません (%v)", frame.Size),
			types.KindError, "")
		return
	}
	coin := strings.ToUpper(strings.TrimSpace(frame.Coin))
	side := strings.ToUpper(strings.TrimSpace(frame.Side))
	if coin == "" || (side != "BUY" && side != "SELL") {
		s.hub.Log(c.channel, "注文を拒否しました: coin と side (BUY/SELL) が必要です。", types.KindError, "")
		return
	}
	s.hub.Log(c.channel,
		fmt.Sprintf("模擬注文を記録しました: %s %s %.4f", side, coin, size),
		types.KindSystem, "")
}

// numericSize accepts JSON numbers and numeric strings.
func numericSize(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// runCommand drives one command through routing, persona composition,
// and the channel's agent loop.
func (s *Server) runCommand(channel, command string) {
	ctx := context.Background()
	s.hub.Log(channel, command, types.KindUser, "")

	dept := s.opts.Router.Route(ctx, command)
	if string(dept) != channel {
		s.hub.Broadcast(types.Event{Type: "CHANNEL_SWITCH", Channel: channel, Target: string(dept)})
		s.hub.Log(channel, fmt.Sprintf("%s 部門が対応します。", dept), types.KindSystem, "")
	}

	system := s.opts.Composer.Compose(dept, channel)

	entries, err := s.opts.Store.RecentLogs(channel, historyLimit)
	if err != nil {
		logging.GatewayWarn("history seed for %s: %v", channel, err)
	}
	history := agent.SeedHistory(entries, s.opts.HistoryWindow)
	// The just-logged command row is re-appended by the loop.
	if n := len(history); n > 0 && history[n-1].Role == "user" && history[n-1].Content == command {
		history = history[:n-1]
	}

	s.loopFor(channel).Run(ctx, channel, dept, system, history, command)
}

// loopFor returns the channel's agent loop, building it on first use so
// channel-bound tools (mission, browser login) see their own channel.
func (s *Server) loopFor(channel string) *agent.Loop {
	if v, ok := s.loops.Load(channel); ok {
		return v.(*agent.Loop)
	}
	loop := agent.NewLoop(s.opts.Oracle, s.opts.NewRegistry(channel), s.hub, s.opts.KPI, s.opts.LoopConfig)
	actual, _ := s.loops.LoadOrStore(channel, loop)
	return actual.(*agent.Loop)
}
