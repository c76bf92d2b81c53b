package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event types pushed to clients
const (
	EventPredictionCreated   = "prediction_created"
	EventPredictionEvaluated = "prediction_evaluated"
)

// Event is the message written to every client
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	totalMessages int64
	metricsMu     sync.Mutex

	logger *logrus.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Register adds a client to the hub. Reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues an event for every client. Drops the event when the
// queue is full.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.WithField("type", event.Type).Warn("Broadcast buffer full, dropping event")
	}
}

// ClientCount returns the number of active clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// TotalMessages returns how many events reached at least one client
func (h *Hub) TotalMessages() int64 {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.totalMessages
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.logger.WithFields(logrus.Fields{
		"client_id": c.ID,
		"clients":   len(h.clients),
	}).Info("WebSocket client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		h.logger.WithFields(logrus.Fields{
			"client_id": c.ID,
			"clients":   len(h.clients),
		}).Info("WebSocket client disconnected")
	}
}

func (h *Hub) broadcastEvent(event Event) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.TrySend(event) {
			sent++
			continue
		}
		// slow client
		h.logger.WithField("client_id", c.ID).Warn("Client buffer full, disconnecting")
		go h.Unregister(c)
	}

	if sent > 0 {
		h.metricsMu.Lock()
		h.totalMessages++
		h.metricsMu.Unlock()
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
}
