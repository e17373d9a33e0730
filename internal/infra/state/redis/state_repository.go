package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"anonchat/internal/domain"
	"anonchat/internal/repository"
)

// RedisStateRepository is the Redis implementation of repository.StateRepository.
//
// Key layout per room:
//
//	<prefix>room:<id>          history list (RPUSH / LTRIM / LRANGE)
//	<prefix>room:<id>:name     human-readable name, SETNX with TTL
//	<prefix>room:<id>:owner    owner token, SETNX with TTL
//	<prefix>room:<id>:count    occupancy counter, INCR / DECR
//	<prefix>room:<id>:deleting short-lived deletion tombstone
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository creates a RedisStateRepository instance.
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "ac:"
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) historyKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomNameKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:name", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) ownerKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:owner", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) occupancyKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:count", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) deletingKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:deleting", r.keyPrefix, roomID)
}

// --- Room Registry ---

// SetRoomNameIfAbsent stores the room name with a TTL, guarded by SETNX so
// an id collision with a live room cannot overwrite the existing name.
func (r *RedisStateRepository) SetRoomNameIfAbsent(ctx context.Context, roomID, name string, ttl time.Duration) (bool, error) {
	key := r.roomNameKey(roomID)
	created, err := r.client.SetNX(ctx, key, name, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to set room name for room %s on key %s: %w", roomID, key, err)
	}
	return created, nil
}

func (r *RedisStateRepository) GetRoomName(ctx context.Context, roomID string) (string, error) {
	key := r.roomNameKey(roomID)
	name, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis: failed to get room name for room %s from %s: %w", roomID, key, err)
	}
	return name, nil
}

// --- Ownership ---

// ClaimOwner performs the single conditional write that decides ownership.
// SETNX is atomic on the server, so exactly one of any number of racing
// claimants observes true.
func (r *RedisStateRepository) ClaimOwner(ctx context.Context, roomID, token string, ttl time.Duration) (bool, error) {
	key := r.ownerKey(roomID)
	won, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to claim owner for room %s on key %s: %w", roomID, key, err)
	}
	return won, nil
}

func (r *RedisStateRepository) GetOwnerToken(ctx context.Context, roomID string) (string, error) {
	key := r.ownerKey(roomID)
	token, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis: failed to get owner token for room %s from %s: %w", roomID, key, err)
	}
	return token, nil
}

// --- Occupancy ---

func (r *RedisStateRepository) IncrementOccupancy(ctx context.Context, roomID string) (int64, error) {
	key := r.occupancyKey(roomID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to increment occupancy for room %s on key %s: %w", roomID, key, err)
	}
	return count, nil
}

func (r *RedisStateRepository) DecrementOccupancy(ctx context.Context, roomID string) (int64, error) {
	key := r.occupancyKey(roomID)
	count, err := r.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to decrement occupancy for room %s on key %s: %w", roomID, key, err)
	}
	return count, nil
}

func (r *RedisStateRepository) GetOccupancy(ctx context.Context, roomID string) (int64, error) {
	key := r.occupancyKey(roomID)
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("redis: failed to get occupancy for room %s from %s: %w", roomID, key, err)
	}
	return count, nil
}

// ResetOccupancy deletes the occupancy and owner keys so the next joiner
// starts a fresh ownership epoch. DEL on absent keys is a no-op, which is
// what makes racing disconnect handlers safe here.
func (r *RedisStateRepository) ResetOccupancy(ctx context.Context, roomID string) error {
	err := r.client.Del(ctx, r.occupancyKey(roomID), r.ownerKey(roomID)).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to reset occupancy for room %s: %w", roomID, err)
	}
	return nil
}

// --- History ---

// PushHistory appends, trims and refreshes the history TTL in one pipeline.
// The three commands are not transactional; a crash between them leaves at
// worst a list with a stale TTL, which only expires slightly early.
func (r *RedisStateRepository) PushHistory(ctx context.Context, roomID string, msg domain.Message, limit int64, ttl time.Duration) error {
	key := r.historyKey(roomID)
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal message for history (room %s): %w", roomID, err)
	}
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, string(msgBytes))
	pipe.LTrim(ctx, key, -limit, -1)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to push message to history for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

func (r *RedisStateRepository) GetHistory(ctx context.Context, roomID string) ([]domain.Message, error) {
	key := r.historyKey(roomID)
	msgStrs, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get history for room %s from %s: %w", roomID, key, err)
	}
	messages := make([]domain.Message, 0, len(msgStrs))
	for _, msgStr := range msgStrs {
		var msg domain.Message
		if err := json.Unmarshal([]byte(msgStr), &msg); err == nil {
			messages = append(messages, msg)
		} else {
			logrus.Warnf("redis: failed to unmarshal history entry for room %s: %v, data: %s", roomID, err, msgStr)
		}
	}
	return messages, nil
}

// --- Deletion signaling ---

func (r *RedisStateRepository) MarkRoomDeleting(ctx context.Context, roomID string, ttl time.Duration) error {
	key := r.deletingKey(roomID)
	if err := r.client.Set(ctx, key, "true", ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set deletion marker for room %s on key %s: %w", roomID, key, err)
	}
	return nil
}

func (r *RedisStateRepository) IsRoomDeleting(ctx context.Context, roomID string) (bool, error) {
	key := r.deletingKey(roomID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check deletion marker for room %s on key %s: %w", roomID, key, err)
	}
	return n > 0, nil
}

func (r *RedisStateRepository) DeleteRoomKeys(ctx context.Context, roomID string) error {
	err := r.client.Del(ctx,
		r.historyKey(roomID),
		r.roomNameKey(roomID),
		r.ownerKey(roomID),
		r.occupancyKey(roomID),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to delete keys for room %s: %w", roomID, err)
	}
	return nil
}

// --- Rate limiting ---

// CheckRateLimit increments the window counter and refreshes its expiry in
// one pipeline, then compares against the limit. INCR itself is atomic;
// the pipeline just saves a round trip for the EXPIRE.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
