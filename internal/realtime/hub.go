// Package realtime pushes "something changed" signals to connected browsers
// over websockets.
//
// The channel is one-way and fire-and-forget: the server broadcasts a small
// event to every client, and clients react by re-polling the JSON endpoints
// (e.g. /api/notifications). Nothing is queued for offline clients and a
// client that cannot keep up is dropped.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventNotification tells clients to refresh their notifications.
const EventNotification = "notification"

// Event is the only message shape the server sends.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks connected clients and fans broadcasts out to them.
//
// HUB PATTERN:
// Only the Run goroutine touches the clients map. Everyone else talks to it
// through channels (register, unregister, broadcast), so the map needs no lock.
type Hub struct {
	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	count  atomic.Int64
	logger *slog.Logger
}

// NewHub creates a hub. Call Run in its own goroutine before serving clients.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.count.Store(0)
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("websocket client registered",
				slog.String("client_id", c.id.String()),
				slog.String("user_id", c.userID),
			)

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Buffer full: the client is too slow, let it go.
					h.logger.Warn("dropping slow websocket client", slog.String("client_id", c.id.String()))
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
	h.logger.Debug("websocket client unregistered", slog.String("client_id", c.id.String()))
}

// Broadcast sends an event of the given type to every connected client.
// It never blocks the caller: if the hub is backed up the event is dropped.
func (h *Hub) Broadcast(eventType string) {
	data, err := json.Marshal(Event{Type: eventType, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Error("encoding websocket event", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("websocket broadcast queue full, event dropped", slog.String("type", eventType))
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// join and leave hand a client to the Run loop, or give up if it has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
