package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"anonchat/internal/domain"
	"anonchat/internal/service"
)

// Broadcaster pushes a message to every connected client of a room. The
// websocket hub implements it; handlers stay testable without sockets.
type Broadcaster interface {
	Broadcast(roomID string, msg domain.Message)
}

// RoomHandler serves the room management endpoints: create, info, claim
// and delete.
type RoomHandler struct {
	roomService   *service.RoomService
	chatService   *service.ChatService
	broadcaster   Broadcaster
	inviteBaseURL string
}

// NewRoomHandler creates a RoomHandler instance.
func NewRoomHandler(roomService *service.RoomService, chatService *service.ChatService, broadcaster Broadcaster, inviteBaseURL string) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if chatService == nil {
		panic("ChatService cannot be nil for RoomHandler")
	}
	return &RoomHandler{
		roomService:   roomService,
		chatService:   chatService,
		broadcaster:   broadcaster,
		inviteBaseURL: inviteBaseURL,
	}
}

// OwnerTokenHeader carries the opaque owner token on deletion requests.
const OwnerTokenHeader = "X-Owner-Token"

type CreateRoomRequest struct {
	RoomName string `json:"roomName" binding:"required"`
}

type CreateRoomResponse struct {
	RoomID     string `json:"roomId"`
	RoomName   string `json:"roomName"`
	InviteLink string `json:"inviteLink"`
}

// CreateRoom handles POST /api/room/create.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: roomName is required")
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.RoomName)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, CreateRoomResponse{
		RoomID:     room.ID,
		RoomName:   room.Name,
		InviteLink: fmt.Sprintf("%s/?room=%s", h.inviteBaseURL, room.ID),
	})
}

// RoomInfo handles GET /api/room/:roomId/info, used by joiners following
// an invite link. Expired rooms still answer, with the unknown-room name.
func (h *RoomHandler) RoomInfo(c *gin.Context) {
	roomID := c.Param("roomId")
	name, err := h.roomService.GetRoomName(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, domain.Room{ID: roomID, Name: name})
}

// ClaimRoom handles POST /api/room/:roomId/claim. The first claimant per
// ownership epoch gets the owner token; everyone else gets guest status.
func (h *RoomHandler) ClaimRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	result, err := h.roomService.ClaimOwnership(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// DeleteRoom handles DELETE /api/room/:roomId. Requires the owner token
// and broadcasts the terminal notice to connected clients on success.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
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
	logrus.WithField("room_id", roomID).Info("Handler.DeleteRoom: room deleted")
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Room deleted successfully."})
}
