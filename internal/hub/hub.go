package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"anonchat/internal/domain"
	"anonchat/internal/service"
)

// WebSocket timing/size constants shared by hub and client.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Inbound event types accepted from clients.
const (
	eventJoin = "join"
	eventChat = "chat"
)

// ClientEvent is the JSON frame a client sends over the socket.
type ClientEvent struct {
	Type    string `json:"type"`
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content,omitempty"`
}

// HubMessage is the internal envelope moved over the hub's channel.
type HubMessage struct {
	Type   string // "register", "unregister"
	RoomID string
	Client *Client
}

// Hub maintains the per-room client sets and routes every socket event
// through the ChatService. All room state (occupancy, history, ownership)
// lives in the shared store; the hub only owns the live connections of
// this process.
type Hub struct {
	messageChan chan HubMessage

	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	chatService *service.ChatService
}

// NewHub creates a Hub instance.
func NewHub(chatService *service.ChatService) *Hub {
	if chatService == nil {
		panic("ChatService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		chatService: chatService,
	}
}

// Run drives the hub's event loop. It should run in its own goroutine and
// exits when the message channel is closed.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		default:
			log.Warnf("Received unknown hub message type: %s (room %s)", msg.Type, msg.RoomID)
		}
	}
	log.Info("Hub is shutting down")
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	roomID := client.RoomID()

	h.roomsMu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	h.roomsMu.Unlock()

	logrus.WithField("room_id", roomID).Info("Client registered to hub")
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "sender": client.DisplayName()})

	h.roomsMu.Lock()
	removed := false
	if roomClients, ok := h.rooms[roomID]; ok {
		if _, exists := roomClients[client]; exists {
			delete(roomClients, client)
			client.closeSend()
			removed = true
		}
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.roomsMu.Unlock()

	if !removed {
		return
	}
	logCtx.Info("Client unregistered from hub")

	// The leave event writes history and may reset ownership; run it off
	// the hub loop and broadcast the announcement to whoever remains.
	go h.handleDisconnect(roomID, client.DisplayName())
}

func (h *Hub) handleDisconnect(roomID, displayName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	leaveMsg, announced, err := h.chatService.Disconnect(ctx, roomID, displayName)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to process disconnect")
		return
	}
	if announced {
		h.Broadcast(roomID, leaveMsg)
	}
}

// handleInbound parses a raw client frame and routes it to the service.
// Called from the client's read pump, so frames from one connection are
// handled strictly in arrival order.
func (h *Hub) handleInbound(client *Client, raw []byte) {
	roomID := client.RoomID()
	logCtx := logrus.WithField("room_id", roomID)

	var event ClientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		logCtx.WithError(err).Warn("Dropping malformed client frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch event.Type {
	case eventJoin:
		joinMsg, err := h.chatService.Join(ctx, roomID, event.Sender)
		if err != nil {
			logCtx.WithError(err).Warn("Join failed")
			client.trySend(errorFrame("Failed to join room"))
			return
		}
		// The resolved display name is connection session state; the
		// core never stores it.
		client.SetDisplayName(joinMsg.Sender)
		h.Broadcast(roomID, joinMsg)

	case eventChat:
		sender := client.DisplayName()
		if sender == "" {
			client.trySend(errorFrame("Join the room before sending messages"))
			return
		}
		chatMsg, err := h.chatService.SendMessage(ctx, roomID, sender, event.Content, client.RateLimitKey())
		if err != nil {
			logCtx.WithError(err).Warn("Message rejected")
			client.trySend(errorFrame("Failed to send message"))
			return
		}
		h.Broadcast(roomID, chatMsg)

	default:
		logCtx.Warnf("Dropping client frame with unknown type: %s", event.Type)
	}
}

// Broadcast sends a message to every client connected to a room on this
// instance. Slow clients are skipped rather than allowed to stall the rest.
func (h *Hub) Broadcast(roomID string, msg domain.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to marshal broadcast message")
		return
	}

	h.roomsMu.RLock()
	roomClients := h.rooms[roomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		clientsToSend = append(clientsToSend, client)
	}
	h.roomsMu.RUnlock()

	for _, client := range clientsToSend {
		// trySend never touches a closed channel, so a client being
		// unregistered mid-broadcast is skipped, not a panic.
		if !client.trySend(payload) {
			logrus.WithField("room_id", roomID).Warn("Client closed or send buffer full during broadcast, skipping client")
		}
	}
}

func errorFrame(message string) []byte {
	payload, _ := json.Marshal(map[string]string{"type": "error", "message": message})
	return payload
}

// QueueMessage enqueues a hub message without blocking. Returns false if
// the hub queue is full.
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// Close stops the hub loop. Pending messages are drained first.
func (h *Hub) Close() {
	close(h.messageChan)
}
