package websocket

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBufferSize = 64
)

// Client is one WebSocket subscriber. Clients only listen; anything they
// send is read and discarded.
type Client struct {
	ID     string
	conn   *websocket.Conn
	Send   chan Event
	hub    *Hub
	logger logrus.FieldLogger
}

// NewClient creates a new client instance
func NewClient(id string, conn *websocket.Conn, hub *Hub, logger *logrus.Logger) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		Send:   make(chan Event, sendBufferSize),
		hub:    hub,
		logger: logger.WithField("client_id", id),
	}
}

// TrySend queues an event without blocking. Returns false if the buffer is full.
func (c *Client) TrySend(event Event) bool {
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// ReadPump drains the connection until it closes, then unregisters
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("Unexpected WebSocket close")
			}
			return
		}
	}
}

// WritePump pumps events from the hub to the connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case event, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.WithError(err).Warn("WebSocket write failed")
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
