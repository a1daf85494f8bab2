package server

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readOne(t *testing.T, ch <-chan []byte) ServerMessage {
	t.Helper()
	select {
	case data := <-ch:
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("expected a queued message")
		return ServerMessage{}
	}
}

func assertEmpty(t *testing.T, ch <-chan []byte) {
	t.Helper()
	select {
	case data := <-ch:
		t.Fatalf("unexpected message %s", data)
	default:
	}
}

func TestConnectionManager_BroadcastReachesBoundConnections(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddConnection("a")
	b := cm.AddConnection("b")
	c := cm.AddConnection("c")

	cm.Bind("a", "room1")
	cm.Bind("b", "room1")
	cm.Bind("c", "room2")

	cm.Broadcast("room1", MsgGameState, GameRequest{GameID: "room1"})

	assert.Equal(t, MsgGameState, readOne(t, a).Type)
	assert.Equal(t, MsgGameState, readOne(t, b).Type)
	assertEmpty(t, c)
}

func TestConnectionManager_SendTo(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddConnection("a")
	b := cm.AddConnection("b")

	cm.SendTo("a", MsgPong, struct{}{})
	cm.SendTo("missing", MsgPong, struct{}{})

	assert.Equal(t, MsgPong, readOne(t, a).Type)
	assertEmpty(t, b)
}

func TestConnectionManager_BindMovesBetweenRooms(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddConnection("a")

	cm.Bind("a", "room1")
	cm.Bind("a", "room2")

	room, ok := cm.RoomOf("a")
	assert.True(t, ok)
	assert.Equal(t, "room2", room)

	cm.Broadcast("room1", MsgGameState, nil)
	assertEmpty(t, a)
}

func TestConnectionManager_Unbind(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddConnection("a")
	cm.Bind("a", "room1")

	cm.Unbind("a")

	_, ok := cm.RoomOf("a")
	assert.False(t, ok)
	cm.Broadcast("room1", MsgGameState, nil)
	assertEmpty(t, a)

	// Binding an unknown connection is a no-op.
	cm.Bind("ghost", "room1")
	_, ok = cm.RoomOf("ghost")
	assert.False(t, ok)
}

func TestConnectionManager_UnbindRoom(t *testing.T) {
	cm := NewConnectionManager()
	cm.AddConnection("a")
	cm.AddConnection("b")
	cm.AddConnection("c")
	cm.Bind("a", "room1")
	cm.Bind("b", "room1")
	cm.Bind("c", "room2")

	ids := cm.UnbindRoom("room1")
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, ok := cm.RoomOf("a")
	assert.False(t, ok)
	room, _ := cm.RoomOf("c")
	assert.Equal(t, "room2", room)

	assert.Empty(t, cm.UnbindRoom("room1"))
}

func TestConnectionManager_RemoveConnectionClosesQueue(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddConnection("a")
	cm.Bind("a", "room1")
	assert.Equal(t, 1, cm.Count())

	cm.RemoveConnection("a")

	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 0, cm.Count())
	assert.Empty(t, cm.UnbindRoom("room1"))

	// Removing twice is harmless.
	cm.RemoveConnection("a")
}

func TestConnectionManager_FullBufferDrops(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddConnection("a")

	for i := 0; i < sendBuffer+10; i++ {
		cm.SendTo("a", MsgPong, struct{}{})
	}

	assert.Len(t, a, sendBuffer)
}

func TestConnectionManager_MessageShape(t *testing.T) {
	cm := NewConnectionManager()
	a := cm.AddConnection("a")

	cm.SendTo("a", MsgError, ErrorMessage{Message: "nope", Code: "NOT_HOST"})

	data := <-a
	assert.JSONEq(t, `{"type":"error","payload":{"message":"nope","code":"NOT_HOST"}}`, string(data))
}
