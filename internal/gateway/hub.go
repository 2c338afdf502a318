// Package gateway is the WebSocket transport: it accepts client
// connections per channel, fans events out to every listener, persists
// LOG events, and turns inbound frames into agent loop runs.
package gateway

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nexus/internal/logging"
	"nexus/internal/store"
	"nexus/internal/types"
)

// sendBuffer bounds the per-client outbound queue. A client that falls
// this far behind is dropped rather than waited on.
const sendBuffer = 64

// client is one connected listener.
type client struct {
	id      string
	channel string
	conn    *websocket.Conn
	send    chan []byte
	once    sync.Once
}

func newClient(channel string, conn *websocket.Conn) *client {
	return &client{
		id:      uuid.NewString(),
		channel: channel,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
}

// enqueue queues a frame without blocking. Returns false when the
// client's buffer is full.
func (c *client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// Hub fans events out to connected clients and persists LOG events.
// It is the production types.Sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	store   *store.Store
}

// NewHub returns a Hub persisting LOG events to the given store.
func NewHub(s *store.Store) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		store:   s,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logging.Gateway("client %s connected on %s (%d online)", c.id, c.channel, n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.close()
		logging.Gateway("client %s disconnected (%d online)", c.id, n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans an event out to every connected client. Clients whose
// buffers are full are dropped so one slow reader cannot stall the rest.
func (h *Hub) Broadcast(evt types.Event) {
	frame, err := json.Marshal(evt)
	if err != nil {
		logging.GatewayError("marshal %s event: %v", evt.Type, err)
		return
	}

	h.mu.RLock()
	var dead []*client
	for c := range h.clients {
		if !c.enqueue(frame) {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		logging.GatewayWarn("client %s too slow, dropping", c.id)
		h.unregister(c)
	}
}

// Log appends a channel log row and broadcasts it as a LOG event. The
// broadcast happens even when persistence fails; history is best-effort,
// the live feed is not.
func (h *Hub) Log(channel, msg string, kind types.LogKind, imageURL string) {
	if _, err := h.store.AppendLog(channel, msg, kind, imageURL); err != nil {
		logging.GatewayError("persist log for %s: %v", channel, err)
	}
	h.Broadcast(types.Event{
		Type:    "LOG",
		Channel: channel,
		Payload: types.LogPayload{Message: msg, Kind: kind, ImageURL: imageURL},
	})
}

// sendTo queues a single event on one client only. Used for the connect
// greeting and history replay, which other listeners already have.
func (h *Hub) sendTo(c *client, evt types.Event) {
	frame, err := json.Marshal(evt)
	if err != nil {
		logging.GatewayError("marshal %s event: %v", evt.Type, err)
		return
	}
	if !c.enqueue(frame) {
		h.unregister(c)
	}
}
