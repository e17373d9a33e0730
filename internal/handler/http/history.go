package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"anonchat/internal/service"
)

// HistoryHandler serves the room history endpoints.
type HistoryHandler struct {
	chatService *service.ChatService
	broadcaster Broadcaster
}

// NewHistoryHandler creates a HistoryHandler instance.
func NewHistoryHandler(chatService *service.ChatService, broadcaster Broadcaster) *HistoryHandler {
	if chatService == nil {
		panic("ChatService cannot be nil for HistoryHandler")
	}
	return &HistoryHandler{chatService: chatService, broadcaster: broadcaster}
}

// GetHistory handles GET /api/history/:roomId. Rooms with no retained
// history answer with an empty list.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	roomID := c.Param("roomId")
	history, err := h.chatService.History(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, history)
}

// DeleteHistory handles DELETE /api/history/:roomId. History removal is
// room deletion: it requires the owner token and purges all room keys.
func (h *HistoryHandler) DeleteHistory(c *gin.Context) {
	roomID := c.Param("roomId")
	token := c.GetHeader(OwnerTokenHeader)

	terminal, err := h.chatService.DeleteRoom(c.Request.Context(), roomID, token)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if h.broadcaster != nil {
		h.broadcaster.Broadcast(roomID, terminal)
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Room history deleted successfully."})
}
