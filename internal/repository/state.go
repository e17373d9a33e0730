package repository

import (
	"context"
	"time"

	"anonchat/internal/domain"
)

// StateRepository defines every shared-state operation the services need,
// implemented against a key-value store (Redis). All mutable room state
// lives behind this interface; the services themselves hold nothing
// between calls, so any number of server instances can share one store.
type StateRepository interface {
	// === Room Registry ===

	// SetRoomNameIfAbsent stores the human-readable room name with the
	// given TTL, only if no name key exists yet for this room ID.
	// Returns true if this call created the key.
	SetRoomNameIfAbsent(ctx context.Context, roomID, name string, ttl time.Duration) (bool, error)

	// GetRoomName returns the stored room name, or ErrNotFound if the
	// name key is absent or has expired.
	GetRoomName(ctx context.Context, roomID string) (string, error)

	// === Ownership ===

	// ClaimOwner atomically sets the owner token for a room with the
	// given TTL, only if no owner exists. Returns true if this call won
	// the claim. This must be a single conditional write (SETNX); a
	// read-then-write here would race between simultaneous first joiners.
	ClaimOwner(ctx context.Context, roomID, token string, ttl time.Duration) (bool, error)

	// GetOwnerToken returns the current owner token, or ErrNotFound if
	// the room is unowned.
	GetOwnerToken(ctx context.Context, roomID string) (string, error)

	// === Occupancy ===

	// IncrementOccupancy atomically increments the room's occupant
	// counter and returns the new value.
	IncrementOccupancy(ctx context.Context, roomID string) (int64, error)

	// DecrementOccupancy atomically decrements the room's occupant
	// counter and returns the new value. The counter key may go
	// negative transiently; callers treat <= 0 as empty.
	DecrementOccupancy(ctx context.Context, roomID string) (int64, error)

	// GetOccupancy returns the current occupant count, or ErrNotFound
	// if no counter key exists for the room.
	GetOccupancy(ctx context.Context, roomID string) (int64, error)

	// ResetOccupancy deletes the occupancy and owner keys, ending the
	// current ownership epoch. Deleting already-absent keys is a no-op,
	// so racing disconnect handlers may both call this safely.
	ResetOccupancy(ctx context.Context, roomID string) error

	// === History ===

	// PushHistory appends a message to the room's history list, trims
	// the list to the newest `limit` entries and refreshes the list TTL.
	PushHistory(ctx context.Context, roomID string, msg domain.Message, limit int64, ttl time.Duration) error

	// GetHistory returns the room's history in append order. A missing
	// or expired history yields an empty slice, not an error.
	GetHistory(ctx context.Context, roomID string) ([]domain.Message, error)

	// === Deletion signaling ===

	// MarkRoomDeleting sets a short-lived tombstone key signalling that
	// the room is mid-deletion. Concurrent disconnect handlers observe
	// it and suppress their leave events.
	MarkRoomDeleting(ctx context.Context, roomID string, ttl time.Duration) error

	// IsRoomDeleting reports whether the deletion tombstone is live.
	IsRoomDeleting(ctx context.Context, roomID string) (bool, error)

	// DeleteRoomKeys removes the room's history, name, owner and
	// occupancy keys. Idempotent.
	DeleteRoomKeys(ctx context.Context, roomID string) error

	// === Rate limiting ===

	// CheckRateLimit increments the fixed-window counter for key and
	// reports whether the count now exceeds limit.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
