package hub

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client is one WebSocket connection bound to a room. The resolved display
// name and rate-limit identity are connection-scoped session state owned
// here, never by the services.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	roomID string
	send   chan []byte

	sendMu sync.RWMutex
	closed bool

	mu          sync.RWMutex
	displayName string
}

// NewClient creates a Client bound to roomID.
func NewClient(h *Hub, conn *websocket.Conn, roomID string) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		roomID: roomID,
		send:   make(chan []byte, 256),
	}
}

// Run starts the client's pump goroutines.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) RoomID() string { return c.roomID }

// DisplayName returns the resolved name, empty until the join completed.
func (c *Client) DisplayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

func (c *Client) SetDisplayName(name string) {
	c.mu.Lock()
	c.displayName = name
	c.mu.Unlock()
}

// RateLimitKey identifies this connection's source for rate limiting.
// Empty disables per-sender limiting.
func (c *Client) RateLimitKey() string {
	if c.conn == nil {
		return ""
	}
	addr := c.conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// trySend delivers a payload to the write pump without blocking. Returns
// false when the client has been closed or its buffer is full.
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. The lock orders it
// against in-flight trySend calls, so none of them can hit a closed
// channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps frames from the WebSocket connection into the hub. It
// runs in its own goroutine and requests unregistration on exit.
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", RoomID: c.roomID, Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithField("room_id", c.roomID).Warn("Timeout sending unregister message to hub channel")
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("room_id", c.roomID)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		// Handled inline so one connection's frames are processed in
		// arrival order: a chat sent right after the join cannot
		// overtake it.
		c.hub.handleInbound(c, message)
	}
}

// WritePump pumps messages from the send channel to the WebSocket
// connection and keeps the connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel during unregister.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("room_id", c.roomID).WithError(err).Warn("Failed to write message to websocket")
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
