package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"anonchat/internal/domain"
	"anonchat/internal/repository"
)

// Announcement texts stored in history and broadcast to rooms.
const (
	joinedContent      = "joined the room."
	leftContent        = "left the room."
	slowDownContent    = "Slow down! You are typing too fast."
	roomDeletedContent = "Room has been deleted by the owner."
)

// ChatConfig carries the retention and rate-limit knobs of the coordinator.
type ChatConfig struct {
	HistoryLimit      int64
	HistoryTTL        time.Duration
	DeleteMarkerTTL   time.Duration
	MessageRateLimit  int
	MessageRateWindow time.Duration
}

// DefaultChatConfig returns the production defaults: 1000 retained entries,
// 1 hour of idle retention, a 3 second deletion window and 5 messages per
// 10 seconds per sender identity.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		HistoryLimit:      1000,
		HistoryTTL:        time.Hour,
		DeleteMarkerTTL:   3 * time.Second,
		MessageRateLimit:  5,
		MessageRateWindow: 10 * time.Second,
	}
}

// ChatService is the room lifecycle coordinator: it ties the registry,
// history and rate limiting together for the transport layer. It holds no
// state of its own between calls, so any number of instances may serve the
// same rooms concurrently.
type ChatService struct {
	stateRepo repository.StateRepository
	rooms     *RoomService
	filter    *FilterService
	cfg       ChatConfig
}

// NewChatService creates a ChatService instance.
func NewChatService(stateRepo repository.StateRepository, rooms *RoomService, filter *FilterService, cfg ChatConfig) *ChatService {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for ChatService")
	}
	if rooms == nil {
		panic("RoomService cannot be nil for ChatService")
	}
	if filter == nil {
		panic("FilterService cannot be nil for ChatService")
	}
	return &ChatService{
		stateRepo: stateRepo,
		rooms:     rooms,
		filter:    filter,
		cfg:       cfg,
	}
}

// SendMessage processes an inbound chat message: rate check, content
// sanitization, history append. The returned message is what the transport
// should broadcast. A rate-limited sender gets a synthetic system-authored
// notice back instead; that notice is never written to history.
func (s *ChatService) SendMessage(ctx context.Context, roomID, sender, content, rateLimitKey string) (domain.Message, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return domain.Message{}, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "sender": sender})

	if rateLimitKey != "" {
		limited, err := s.stateRepo.CheckRateLimit(ctx, "ratelimit:chat:"+rateLimitKey,
			s.cfg.MessageRateLimit, s.cfg.MessageRateWindow)
		if err != nil {
			logCtx.WithError(err).Error("Rate limit check failed")
			return domain.Message{}, ErrInternalServer
		}
		if limited {
			logCtx.Debug("Sender rate limited, returning synthetic notice")
			return domain.SystemMessage(domain.MessageTypeChat, slowDownContent), nil
		}
	}

	msg := domain.Message{
		Type:    domain.MessageTypeChat,
		Sender:  sender,
		Content: s.filter.Sanitize(content),
	}
	if err := s.pushHistory(ctx, roomID, msg); err != nil {
		logCtx.WithError(err).Error("Failed to append chat message to history")
		return domain.Message{}, ErrInternalServer
	}
	return msg, nil
}

// Join records a user entering a room: the display name is resolved
// (reserved or unusable names become a generated guest name, never a
// rejection), occupancy is incremented and a JOIN entry is appended. The
// transport keeps the resolved name, msg.Sender, in its own session state.
func (s *ChatService) Join(ctx context.Context, roomID, requestedName string) (domain.Message, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return domain.Message{}, err
	}

	name := s.resolveDisplayName(requestedName)
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "sender": name})

	if _, err := s.stateRepo.IncrementOccupancy(ctx, roomID); err != nil {
		logCtx.WithError(err).Error("Failed to increment occupancy")
		return domain.Message{}, ErrInternalServer
	}

	msg := domain.Message{
		Type:    domain.MessageTypeJoin,
		Sender:  name,
		Content: joinedContent,
	}
	if err := s.pushHistory(ctx, roomID, msg); err != nil {
		logCtx.WithError(err).Error("Failed to append join event to history")
		return domain.Message{}, ErrInternalServer
	}

	logCtx.Info("User joined room")
	return msg, nil
}

// Disconnect records a user leaving. While the room's deletion marker is
// live the whole call is a silent no-op: writing "left the room." into a
// history that is being purged would resurrect it as ghost history. The
// returned bool reports whether a leave event was produced for broadcast.
func (s *ChatService) Disconnect(ctx context.Context, roomID, sender string) (domain.Message, bool, error) {
	if roomID == "" || sender == "" {
		// Disconnect before a completed join carries no session state.
		return domain.Message{}, false, nil
	}
	if err := ValidateRoomID(roomID); err != nil {
		return domain.Message{}, false, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "sender": sender})

	deleting, err := s.stateRepo.IsRoomDeleting(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check deletion marker on disconnect")
		return domain.Message{}, false, ErrInternalServer
	}
	if deleting {
		return domain.Message{}, false, nil
	}

	msg := domain.Message{
		Type:    domain.MessageTypeLeave,
		Sender:  sender,
		Content: leftContent,
	}
	if err := s.pushHistory(ctx, roomID, msg); err != nil {
		logCtx.WithError(err).Error("Failed to append leave event to history")
		return domain.Message{}, false, ErrInternalServer
	}

	count, err := s.stateRepo.DecrementOccupancy(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to decrement occupancy")
		return domain.Message{}, false, ErrInternalServer
	}
	if count <= 0 {
		// Last occupant left: end the ownership epoch so the next joiner
		// becomes the new owner. Racing disconnects both reach this branch
		// harmlessly; the second DEL hits absent keys.
		if err := s.stateRepo.ResetOccupancy(ctx, roomID); err != nil {
			logCtx.WithError(err).Error("Failed to reset ownership for empty room")
			return domain.Message{}, false, ErrInternalServer
		}
		logCtx.Info("Room empty, ownership reset")
	}

	logCtx.Info("User left room")
	return msg, true, nil
}

// DeleteRoom purges a room on behalf of its owner. The deletion marker is
// set before any key is removed so concurrent disconnect handlers suppress
// their leave events. Deleting an already-deleted (or fully expired) room
// is a no-op that still yields the terminal notice, not an error.
func (s *ChatService) DeleteRoom(ctx context.Context, roomID, ownerToken string) (domain.Message, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return domain.Message{}, err
	}
	logCtx := logrus.WithField("room_id", roomID)
	terminal := domain.SystemMessage(domain.MessageTypeSystem, roomDeletedContent)

	deleting, err := s.stateRepo.IsRoomDeleting(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check deletion marker")
		return domain.Message{}, ErrInternalServer
	}
	if deleting {
		return terminal, nil
	}

	ok, err := s.rooms.VerifyOwner(ctx, roomID, ownerToken)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		if s.roomGone(ctx, roomID) {
			// Nothing left to delete and nothing to protect.
			return terminal, nil
		}
		logCtx.Warn("Room deletion denied: owner token mismatch")
		return domain.Message{}, ErrUnauthorized
	}

	if err := s.stateRepo.MarkRoomDeleting(ctx, roomID, s.cfg.DeleteMarkerTTL); err != nil {
		logCtx.WithError(err).Error("Failed to set deletion marker")
		return domain.Message{}, ErrInternalServer
	}
	if err := s.stateRepo.DeleteRoomKeys(ctx, roomID); err != nil {
		logCtx.WithError(err).Error("Failed to delete room keys")
		return domain.Message{}, ErrInternalServer
	}

	logCtx.Info("Room deleted by owner")
	return terminal, nil
}

// History returns the room's retained events in append order. Absent or
// expired history is an empty slice, never an error.
func (s *ChatService) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	history, err := s.stateRepo.GetHistory(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to get history")
		return nil, ErrInternalServer
	}
	return history, nil
}

func (s *ChatService) pushHistory(ctx context.Context, roomID string, msg domain.Message) error {
	return s.stateRepo.PushHistory(ctx, roomID, msg, s.cfg.HistoryLimit, s.cfg.HistoryTTL)
}

// resolveDisplayName sanitizes an acceptable requested name or substitutes
// a generated guest name for reserved/unusable ones.
func (s *ChatService) resolveDisplayName(requestedName string) string {
	if !s.filter.IsValidUsername(requestedName) {
		return guestName()
	}
	return s.filter.Sanitize(requestedName)
}

// guestName generates a harmless fallback display name.
func guestName() string {
	return "Guest_" + strconv.FormatInt(time.Now().UnixMilli()%10000, 10)
}

// roomGone reports whether nothing of the room remains in the store: no
// name, no owner, no history and no occupants. Only then is a failed owner
// check forgiven as deleting an already-gone room; a room whose name and
// owner keys expired ahead of a still-live history stays protected.
func (s *ChatService) roomGone(ctx context.Context, roomID string) bool {
	if _, err := s.stateRepo.GetRoomName(ctx, roomID); !errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if _, err := s.stateRepo.GetOwnerToken(ctx, roomID); !errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if history, err := s.stateRepo.GetHistory(ctx, roomID); err != nil || len(history) > 0 {
		return false
	}
	count, err := s.stateRepo.GetOccupancy(ctx, roomID)
	switch {
	case err == nil && count > 0:
		return false
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return false
	}
	return true
}
