package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"anonchat/internal/domain"
	"anonchat/internal/repository/mocks"
	"anonchat/internal/service"
)

func newTestHub() (*Hub, *mocks.StateRepository) {
	repo := new(mocks.StateRepository)
	rooms := service.NewRoomService(repo, time.Hour, time.Hour)
	chat := service.NewChatService(repo, rooms, service.NewFilterService(), service.DefaultChatConfig())
	return NewHub(chat), repo
}

func recvPayload(t *testing.T, c *Client) domain.Message {
	t.Helper()
	select {
	case payload := <-c.send:
		var msg domain.Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	default:
		t.Fatal("expected a payload on the client send channel")
		return domain.Message{}
	}
}

func TestHub_BroadcastFanOut(t *testing.T) {
	h, _ := newTestHub()

	alice := NewClient(h, nil, "room1234")
	bob := NewClient(h, nil, "room1234")
	carol := NewClient(h, nil, "other567")
	h.registerClient(alice)
	h.registerClient(bob)
	h.registerClient(carol)

	sent := domain.Message{Type: domain.MessageTypeChat, Sender: "Alice", Content: "hello"}
	h.Broadcast("room1234", sent)

	assert.Equal(t, sent, recvPayload(t, alice))
	assert.Equal(t, sent, recvPayload(t, bob))
	assert.Empty(t, carol.send, "clients in other rooms must not receive the message")
}

func TestHub_BroadcastSkipsSlowClient(t *testing.T) {
	h, _ := newTestHub()

	slow := NewClient(h, nil, "room1234")
	fast := NewClient(h, nil, "room1234")
	h.registerClient(slow)
	h.registerClient(fast)

	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("backlog")
	}

	sent := domain.Message{Type: domain.MessageTypeChat, Sender: "Alice", Content: "hello"}
	h.Broadcast("room1234", sent)

	assert.Equal(t, sent, recvPayload(t, fast), "a stalled peer must not block delivery to others")
}

func TestHub_BroadcastToClosedClient_NoPanic(t *testing.T) {
	// A client being unregistered between the broadcast snapshot and the
	// send must be skipped, never a send on a closed channel.
	h, _ := newTestHub()

	client := NewClient(h, nil, "room1234")
	h.registerClient(client)
	h.unregisterClient(client)

	assert.NotPanics(t, func() {
		h.Broadcast("room1234", domain.Message{Type: domain.MessageTypeChat, Sender: "Alice", Content: "hello"})
	})
	assert.False(t, client.trySend([]byte("late")), "sends after close are rejected, not delivered")
}

func TestHub_BroadcastRacingUnregister_NoPanic(t *testing.T) {
	h, _ := newTestHub()

	const clients = 64
	all := make([]*Client, clients)
	for i := range all {
		all[i] = NewClient(h, nil, "room1234")
		h.registerClient(all[i])
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		msg := domain.Message{Type: domain.MessageTypeChat, Sender: "Alice", Content: "hello"}
		for i := 0; i < 500; i++ {
			h.Broadcast("room1234", msg)
		}
	}()
	for _, c := range all {
		h.unregisterClient(c)
	}
	<-done
}

func TestHub_InboundJoinThenChat_InOrder(t *testing.T) {
	// Frames from one connection are handled inline by its read pump, so
	// a chat right behind the join sees the resolved display name.
	h, repo := newTestHub()

	client := NewClient(h, nil, "room1234")
	h.registerClient(client)

	repo.On("IncrementOccupancy", mock.Anything, "room1234").Return(int64(1), nil).Once()
	repo.On("PushHistory", mock.Anything, "room1234", mock.AnythingOfType("domain.Message"), int64(1000), time.Hour).
		Return(nil).Twice()

	h.handleInbound(client, []byte(`{"type":"join","sender":"Alice"}`))
	require.Equal(t, "Alice", client.DisplayName())

	h.handleInbound(client, []byte(`{"type":"chat","content":"hello"}`))

	joined := recvPayload(t, client)
	assert.Equal(t, domain.MessageTypeJoin, joined.Type)
	assert.Equal(t, "Alice", joined.Sender)

	chatMsg := recvPayload(t, client)
	assert.Equal(t, domain.MessageTypeChat, chatMsg.Type)
	assert.Equal(t, "hello", chatMsg.Content)
	repo.AssertExpectations(t)
}

func TestHub_InboundChatBeforeJoin_Rejected(t *testing.T) {
	h, repo := newTestHub()

	client := NewClient(h, nil, "room1234")
	h.registerClient(client)

	h.handleInbound(client, []byte(`{"type":"chat","content":"hello"}`))

	select {
	case payload := <-client.send:
		assert.Contains(t, string(payload), "Join the room")
	default:
		t.Fatal("expected an error frame for a chat before the join")
	}
	repo.AssertNotCalled(t, "PushHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHub_UnregisterClosesAndPrunes(t *testing.T) {
	h, _ := newTestHub()

	client := NewClient(h, nil, "room1234")
	h.registerClient(client)
	h.unregisterClient(client)

	_, open := <-client.send
	assert.False(t, open, "send channel is closed on unregister")

	h.roomsMu.RLock()
	_, exists := h.rooms["room1234"]
	h.roomsMu.RUnlock()
	assert.False(t, exists, "empty rooms are removed from the map")

	// A second unregister for the same client must not close twice.
	h.unregisterClient(client)
}

func TestHub_QueueMessage_DropsWhenFull(t *testing.T) {
	h, _ := newTestHub()

	msg := HubMessage{Type: "register", RoomID: "room1234"}
	for i := 0; i < cap(h.messageChan); i++ {
		require.True(t, h.QueueMessage(msg))
	}
	assert.False(t, h.QueueMessage(msg), "a full queue drops instead of blocking")
}
