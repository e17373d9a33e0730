package service_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"anonchat/internal/domain"
	"anonchat/internal/repository"
	"anonchat/internal/repository/mocks"
	"anonchat/internal/service"
)

func newRoomService(repo repository.StateRepository) *service.RoomService {
	return service.NewRoomService(repo, time.Hour, time.Hour)
}

func TestRoomService_CreateRoom_ThenGetRoomName(t *testing.T) {
	// Arrange
	repo := newFakeStateRepo()
	rooms := newRoomService(repo)
	ctx := context.Background()

	// Act
	room, err := rooms.CreateRoom(ctx, "Party")
	require.NoError(t, err)

	name, err := rooms.GetRoomName(ctx, room.ID)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "Party", name)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{8}$`), room.ID)
}

func TestRoomService_CreateRoom_EmptyName(t *testing.T) {
	repo := newFakeStateRepo()
	rooms := newRoomService(repo)

	_, err := rooms.CreateRoom(context.Background(), "   ")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrEmptyRoomName))
}

func TestRoomService_CreateRoom_RetriesOnIDCollision(t *testing.T) {
	// Arrange: the first generated id "collides" with a live room, the
	// second attempt succeeds.
	mockRepo := new(mocks.StateRepository)
	rooms := newRoomService(mockRepo)
	ctx := context.Background()

	mockRepo.On("SetRoomNameIfAbsent", ctx, mock.AnythingOfType("string"), "Party", time.Hour).
		Return(false, nil).Once()
	mockRepo.On("SetRoomNameIfAbsent", ctx, mock.AnythingOfType("string"), "Party", time.Hour).
		Return(true, nil).Once()

	// Act
	room, err := rooms.CreateRoom(ctx, "Party")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, room)
	mockRepo.AssertNumberOfCalls(t, "SetRoomNameIfAbsent", 2)
}

func TestRoomService_GetRoomName_UnknownRoomFallback(t *testing.T) {
	repo := newFakeStateRepo()
	rooms := newRoomService(repo)

	name, err := rooms.GetRoomName(context.Background(), "gone1234")

	assert.NoError(t, err)
	assert.Equal(t, service.UnknownRoomName, name)
}

func TestRoomService_GetRoomName_InvalidID(t *testing.T) {
	repo := newFakeStateRepo()
	rooms := newRoomService(repo)

	_, err := rooms.GetRoomName(context.Background(), "../etc/passwd")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInvalidRoomID))
}

func TestRoomService_ClaimOwnership_ExactlyOneWinner(t *testing.T) {
	// Arrange: N goroutines race for a fresh room; the conditional write
	// in the store admits exactly one owner.
	repo := newFakeStateRepo()
	rooms := newRoomService(repo)
	ctx := context.Background()
	const claimants = 32

	// Act
	var wg sync.WaitGroup
	results := make([]*domain.ClaimResult, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := rooms.ClaimOwnership(ctx, "abcd1234")
			assert.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	// Assert
	owners := 0
	for _, result := range results {
		require.NotNil(t, result)
		if result.Role == domain.RoleOwner {
			owners++
			assert.NotEmpty(t, result.Token)
		} else {
			assert.Equal(t, domain.RoleGuest, result.Role)
			assert.Empty(t, result.Token)
		}
	}
	assert.Equal(t, 1, owners, "exactly one concurrent claimant should win ownership")
}

func TestRoomService_ClaimOwnership_FailsClosedWhileDeleting(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.StateRepository)
	rooms := newRoomService(mockRepo)
	ctx := context.Background()

	mockRepo.On("IsRoomDeleting", ctx, "abcd1234").Return(true, nil).Once()

	// Act
	result, err := rooms.ClaimOwnership(ctx, "abcd1234")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGuest, result.Role)
	assert.Empty(t, result.Token)
	mockRepo.AssertNotCalled(t, "ClaimOwner", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_VerifyOwner(t *testing.T) {
	repo := newFakeStateRepo()
	rooms := newRoomService(repo)
	ctx := context.Background()

	claim, err := rooms.ClaimOwnership(ctx, "abcd1234")
	require.NoError(t, err)
	require.Equal(t, domain.RoleOwner, claim.Role)

	ok, err := rooms.VerifyOwner(ctx, "abcd1234", claim.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rooms.VerifyOwner(ctx, "abcd1234", "not-the-token")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unowned room never verifies, even with an empty token.
	ok, err = rooms.VerifyOwner(ctx, "other123", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoomService_VerifyOwner_StoreFailure(t *testing.T) {
	mockRepo := new(mocks.StateRepository)
	rooms := newRoomService(mockRepo)
	ctx := context.Background()

	mockRepo.On("GetOwnerToken", ctx, "abcd1234").
		Return("", errors.New("redis: connection refused")).Once()

	_, err := rooms.VerifyOwner(ctx, "abcd1234", "token")

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInternalServer))
}
