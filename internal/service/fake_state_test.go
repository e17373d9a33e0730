package service_test

import (
	"context"
	"sync"
	"time"

	"anonchat/internal/domain"
	"anonchat/internal/repository"
)

// fakeStateRepo is an in-memory StateRepository with the same atomicity
// semantics as the Redis implementation (set-if-absent, counters, list
// trim). TTLs are accepted but not aged out; tests that need expiry flip
// the state by hand.
type fakeStateRepo struct {
	mu        sync.Mutex
	names     map[string]string
	owners    map[string]string
	counts    map[string]int64
	histories map[string][]domain.Message
	deleting  map[string]bool
	rate      map[string]int
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{
		names:     make(map[string]string),
		owners:    make(map[string]string),
		counts:    make(map[string]int64),
		histories: make(map[string][]domain.Message),
		deleting:  make(map[string]bool),
		rate:      make(map[string]int),
	}
}

func (f *fakeStateRepo) SetRoomNameIfAbsent(_ context.Context, roomID, name string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.names[roomID]; exists {
		return false, nil
	}
	f.names[roomID] = name
	return true, nil
}

func (f *fakeStateRepo) GetRoomName(_ context.Context, roomID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.names[roomID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return name, nil
}

func (f *fakeStateRepo) ClaimOwner(_ context.Context, roomID, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, owned := f.owners[roomID]; owned {
		return false, nil
	}
	f.owners[roomID] = token
	return true, nil
}

func (f *fakeStateRepo) GetOwnerToken(_ context.Context, roomID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.owners[roomID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return token, nil
}

func (f *fakeStateRepo) IncrementOccupancy(_ context.Context, roomID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[roomID]++
	return f.counts[roomID], nil
}

func (f *fakeStateRepo) DecrementOccupancy(_ context.Context, roomID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[roomID]--
	return f.counts[roomID], nil
}

func (f *fakeStateRepo) GetOccupancy(_ context.Context, roomID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count, ok := f.counts[roomID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return count, nil
}

func (f *fakeStateRepo) ResetOccupancy(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, roomID)
	delete(f.owners, roomID)
	return nil
}

func (f *fakeStateRepo) PushHistory(_ context.Context, roomID string, msg domain.Message, limit int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := append(f.histories[roomID], msg)
	if int64(len(history)) > limit {
		history = history[int64(len(history))-limit:]
	}
	f.histories[roomID] = history
	return nil
}

func (f *fakeStateRepo) GetHistory(_ context.Context, roomID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.histories[roomID]
	out := make([]domain.Message, len(history))
	copy(out, history)
	return out, nil
}

func (f *fakeStateRepo) MarkRoomDeleting(_ context.Context, roomID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleting[roomID] = true
	return nil
}

func (f *fakeStateRepo) IsRoomDeleting(_ context.Context, roomID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleting[roomID], nil
}

func (f *fakeStateRepo) DeleteRoomKeys(_ context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.histories, roomID)
	delete(f.names, roomID)
	delete(f.owners, roomID)
	delete(f.counts, roomID)
	return nil
}

func (f *fakeStateRepo) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate[key]++
	return f.rate[key] > limit, nil
}

// expireDeletionMarker simulates the 3s tombstone TTL running out.
func (f *fakeStateRepo) expireDeletionMarker(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deleting, roomID)
}

func (f *fakeStateRepo) occupancy(roomID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[roomID]
}

func (f *fakeStateRepo) historyLen(roomID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.histories[roomID])
}
