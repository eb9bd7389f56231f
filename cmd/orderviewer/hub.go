package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ViewerEvent is what browsers receive: the raw ordering event plus the
// fields the page groups by.
type ViewerEvent struct {
	Topic     string          `json:"topic"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp int64           `json:"timestamp"`
	Event     json.RawMessage `json:"event"`
}

type eventHeader struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// decodeEvent wraps a Kafka message value for the browser.
func decodeEvent(topic string, value []byte) (ViewerEvent, error) {
	var h eventHeader
	if err := json.Unmarshal(value, &h); err != nil {
		return ViewerEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if h.EventType == "" {
		return ViewerEvent{}, fmt.Errorf("decode event: missing eventType")
	}
	return ViewerEvent{
		Topic:     topic,
		EventType: h.EventType,
		SessionID: h.SessionID,
		Timestamp: h.Timestamp,
		Event:     json.RawMessage(value),
	}, nil
}

const (
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan ViewerEvent
}

// Hub fans events out to connected browsers. A client that falls behind
// is disconnected rather than slowing the others.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub(log zerolog.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

// Broadcast queues ev for every client.
func (h *Hub) Broadcast(ev ViewerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			h.log.Warn().Msg("Client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", n).Msg("Client connected")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	if removed {
		h.log.Info().Int("clients", n).Msg("Client disconnected")
	}
}

func (h *Hub) removeLocked(c *client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
}

// ServeHTTP upgrades the request and streams events until the browser
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan ViewerEvent, clientBuffer)}
	h.add(c)

	go h.writePump(c)

	// Keep connection alive, handle disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.log.Debug().Err(err).Msg("Write failed")
			h.remove(c)
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}
