// Package web exposes the manual-control surface over HTTP: REST endpoints
// for slider/picker/toggle events and capture triggers, and websocket feeds
// for preview frames and control state. It is an in-process adapter in front
// of the controls mapper and the capture synchronizer; it holds no control
// state of its own.
package web

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // room for JPEG preview frames
)

// MessageType indicates the websocket message format.
type MessageType int

const (
	// JSONMessage is a JSON-encoded message.
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (JPEG frames).
	BinaryMessage
)

// Message is one websocket broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// Hub fans broadcast messages out to every connected websocket client using
// the channel-based fan-out pattern. Slow clients are dropped rather than
// allowed to stall the feed.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub creates a hub. Call Run in a goroutine before serving clients.
func NewHub(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client connected", "hub", h.name, "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", "hub", h.name, "remaining", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
					h.logger.Warn("dropped slow ws client", "hub", h.name)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues a message for every client, dropping it if the hub is
// backed up.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping", "hub", h.name)
	}
}

// BroadcastJSON encodes and broadcasts v.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(Message{Type: JSONMessage, Data: data})
	return nil
}

// BroadcastBinary broadcasts raw bytes (preview frames).
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(Message{Type: BinaryMessage, Data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// client is one websocket connection with its write pump.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// serve registers the connection and blocks until it closes.
func (h *Hub) serve(conn *websocket.Conn) {
	c := &client{hub: h, conn: conn, send: make(chan Message, 64)}
	h.register <- c
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// Clients don't send messages; reading detects disconnects and
		// receives pongs.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			wsType := websocket.TextMessage
			if msg.Type == BinaryMessage {
				wsType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(wsType, msg.Data); err != nil {
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
