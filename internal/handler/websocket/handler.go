package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"anonchat/internal/hub"
	"anonchat/internal/service"
)

// WebSocketHandler upgrades chat connections and hands them to the hub.
type WebSocketHandler struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a WebSocketHandler. allowedOrigin restricts
// the Origin header on upgrade requests; empty allows any origin.
func NewWebSocketHandler(h *hub.Hub, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// HandleConnection serves GET /ws/:roomId. After the upgrade the client's
// first frame is expected to be the join event; the client's read pump
// feeds every frame to the hub in arrival order.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	roomID := c.Param("roomId")
	if err := service.ValidateRoomID(roomID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logCtx := logrus.WithField("room_id", roomID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn, roomID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", RoomID: roomID, Client: client}) {
		logCtx.Error("Hub queue full, rejecting websocket connection")
		conn.Close()
		return
	}
	client.Run()
	logCtx.Info("WebSocket connection established")
}
