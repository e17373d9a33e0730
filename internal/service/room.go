package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"anonchat/internal/domain"
	"anonchat/internal/repository"
)

// UnknownRoomName is returned for name lookups on absent or expired rooms.
// A missing name is never an error for anonymous ephemeral rooms.
const UnknownRoomName = "Unknown Room"

const maxCreateAttempts = 10

// RoomService handles room registry concerns: creation, name resolution,
// and the ownership claim/verify pair. All state lives in the injected
// StateRepository; the service itself is stateless.
type RoomService struct {
	stateRepo repository.StateRepository
	roomTTL   time.Duration
	ownerTTL  time.Duration
}

// NewRoomService creates a RoomService. roomTTL bounds the lifetime of the
// room name key, ownerTTL the lifetime of an unclaimed-then-claimed owner
// token; both refresh-free, so an idle room simply evaporates.
func NewRoomService(stateRepo repository.StateRepository, roomTTL, ownerTTL time.Duration) *RoomService {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for RoomService")
	}
	return &RoomService{
		stateRepo: stateRepo,
		roomTTL:   roomTTL,
		ownerTTL:  ownerTTL,
	}
}

// CreateRoom generates an unguessable room id and registers the room name
// under it. The name write is conditional (set-if-absent), so the
// vanishingly rare collision with a live room is detected and retried
// instead of silently renaming someone else's room.
func (s *RoomService) CreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyRoomName
	}

	logCtx := logrus.WithField("room_name", name)
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		roomID, err := GenerateRoomID()
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate room id")
			return nil, ErrInternalServer
		}

		created, err := s.stateRepo.SetRoomNameIfAbsent(ctx, roomID, name, s.roomTTL)
		if err != nil {
			logCtx.WithError(err).Error("Failed to register room name")
			return nil, ErrInternalServer
		}
		if created {
			logCtx.WithField("room_id", roomID).Info("Room created")
			return &domain.Room{ID: roomID, Name: name}, nil
		}
		logCtx.WithField("room_id", roomID).Warnf("Generated room id already in use, retrying (attempt %d)", attempt+1)
	}

	logCtx.Errorf("Failed to generate an unused room id after %d attempts", maxCreateAttempts)
	return nil, ErrInternalServer
}

// GetRoomName resolves a room id to its stored name. Absent or expired
// rooms resolve to UnknownRoomName rather than an error.
func (s *RoomService) GetRoomName(ctx context.Context, roomID string) (string, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return "", err
	}
	name, err := s.stateRepo.GetRoomName(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return UnknownRoomName, nil
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to get room name")
		return "", ErrInternalServer
	}
	return name, nil
}

// ClaimOwnership attempts the one-time ownership claim for a room. Exactly
// one caller per ownership epoch receives an owner token; everyone else is
// a guest. The claim is a single conditional write against the store, so
// two simultaneous first joiners cannot both win. Claims against a room
// that is mid-deletion fail closed to guest.
func (s *RoomService) ClaimOwnership(ctx context.Context, roomID string) (*domain.ClaimResult, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return nil, err
	}
	logCtx := logrus.WithField("room_id", roomID)

	deleting, err := s.stateRepo.IsRoomDeleting(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check deletion marker during claim")
		return nil, ErrInternalServer
	}
	if deleting {
		return &domain.ClaimResult{Role: domain.RoleGuest}, nil
	}

	token := uuid.NewString()
	won, err := s.stateRepo.ClaimOwner(ctx, roomID, token, s.ownerTTL)
	if err != nil {
		logCtx.WithError(err).Error("Failed to claim room ownership")
		return nil, ErrInternalServer
	}
	if !won {
		return &domain.ClaimResult{Role: domain.RoleGuest}, nil
	}

	logCtx.Info("Room ownership claimed")
	return &domain.ClaimResult{Role: domain.RoleOwner, Token: token}, nil
}

// VerifyOwner reports whether token matches the room's stored owner token.
// Comparison is constant-time; an unowned room never verifies.
func (s *RoomService) VerifyOwner(ctx context.Context, roomID, token string) (bool, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return false, err
	}
	stored, err := s.stateRepo.GetOwnerToken(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to get owner token")
		return false, ErrInternalServer
	}
	if token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}
