package server

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

const sendBuffer = 64

type connection struct {
	id     string
	send   chan []byte
	roomID string
}

// ConnectionManager tracks open sockets and which room each one listens to.
// Messages are queued on a per-connection buffer; the socket's writer drains it.
type ConnectionManager struct {
	connections map[string]*connection         // connectionID → connection
	rooms       map[string]map[string]struct{} // roomID → connectionIDs
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*connection),
		rooms:       make(map[string]map[string]struct{}),
	}
}

// AddConnection registers id and returns the queue its writer must drain. The
// queue is closed by RemoveConnection.
func (cm *ConnectionManager) AddConnection(id string) <-chan []byte {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if old, ok := cm.connections[id]; ok {
		cm.unbindLocked(old)
		close(old.send)
	}
	c := &connection{id: id, send: make(chan []byte, sendBuffer)}
	cm.connections[id] = c
	return c.send
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.connections[id]
	if !ok {
		return
	}
	cm.unbindLocked(c)
	delete(cm.connections, id)
	close(c.send)
}

// Bind moves id into roomID's broadcast group.
func (cm *ConnectionManager) Bind(id, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.connections[id]
	if !ok {
		return
	}
	cm.unbindLocked(c)

	members, ok := cm.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		cm.rooms[roomID] = members
	}
	members[id] = struct{}{}
	c.roomID = roomID
}

func (cm *ConnectionManager) Unbind(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if c, ok := cm.connections[id]; ok {
		cm.unbindLocked(c)
	}
}

// UnbindRoom empties roomID's broadcast group and returns who was in it.
func (cm *ConnectionManager) UnbindRoom(roomID string) []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	members := cm.rooms[roomID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
		if c, ok := cm.connections[id]; ok {
			c.roomID = ""
		}
	}
	delete(cm.rooms, roomID)
	return ids
}

func (cm *ConnectionManager) unbindLocked(c *connection) {
	if c.roomID == "" {
		return
	}
	if members, ok := cm.rooms[c.roomID]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(cm.rooms, c.roomID)
		}
	}
	c.roomID = ""
}

// RoomOf returns the room id is bound to.
func (cm *ConnectionManager) RoomOf(id string) (string, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	c, ok := cm.connections[id]
	if !ok || c.roomID == "" {
		return "", false
	}
	return c.roomID, true
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// SendTo queues one message for a single connection.
func (cm *ConnectionManager) SendTo(id, msgType string, payload interface{}) {
	data, ok := encode(msgType, payload)
	if !ok {
		return
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if c, ok := cm.connections[id]; ok {
		cm.enqueue(c, msgType, data)
	}
}

// Broadcast queues one message for every connection bound to roomID.
func (cm *ConnectionManager) Broadcast(roomID, msgType string, payload interface{}) {
	data, ok := encode(msgType, payload)
	if !ok {
		return
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for id := range cm.rooms[roomID] {
		if c, ok := cm.connections[id]; ok {
			cm.enqueue(c, msgType, data)
		}
	}
}

// enqueue never blocks; a full buffer means the client stopped reading.
func (cm *ConnectionManager) enqueue(c *connection, msgType string, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn().Str("connection", c.id).Str("type", msgType).Msg("send buffer full, dropping message")
	}
}

func encode(msgType string, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(ServerMessage{Type: msgType, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal message")
		return nil, false
	}
	return data, true
}
