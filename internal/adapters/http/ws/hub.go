// Package ws fans notifications out to websocket subscribers.
//
// Each connection subscribes to exactly one notification channel
// (event:<id> or display:<id>). Slow subscribers whose send buffer fills up
// are disconnected rather than allowed to block delivery.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Hub tracks subscribers per channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*client]struct{}
	total    int
	closed   bool

	upgrader websocket.Upgrader
	logger   logger.Logger
}

type client struct {
	id      string
	channel string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	once    sync.Once
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		channels: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name identifies the sink in metrics and logs.
func (h *Hub) Name() string { return "websocket" }

// Serve upgrades the request and subscribes the connection to channel.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, channel string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}
	c := &client{
		id:      uuid.NewString(),
		channel: channel,
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return conn.Close()
	}
	h.logger.Debug(r.Context(), "subscriber connected",
		logger.String("client_id", c.id), logger.String("channel", channel))

	go c.writePump()
	go c.readPump()
	return nil
}

// Deliver sends n to every subscriber of its channels without blocking.
func (h *Hub) Deliver(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam: matches the sink contract
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	var slow []*client
	h.mu.RLock()
	for _, ch := range n.Channels {
		for c := range h.channels[ch] {
			select {
			case c.send <- data:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn(ctx, "dropping slow subscriber",
			logger.String("client_id", c.id), logger.String("channel", c.channel))
		h.unregister(c)
	}
	return nil
}

// Count returns the number of subscribers of channel.
func (h *Hub) Count(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, set := range h.channels {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.channels[c.channel]
	if !ok {
		set = make(map[*client]struct{})
		h.channels[c.channel] = set
	}
	set[c] = struct{}{}
	h.total++
	metrics.UpdateWebsocketClients(h.total)
	return true
}

// unregister removes c and closes its send channel exactly once.
func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.channels[c.channel]; ok {
			if _, ok := set[c]; ok {
				delete(set, c)
				h.total--
			}
			if len(set) == 0 {
				delete(h.channels, c.channel)
			}
		}
		metrics.UpdateWebsocketClients(h.total)
		h.mu.Unlock()
		close(c.send)
	})
}

// readPump drains inbound frames so pongs and close frames are processed.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
