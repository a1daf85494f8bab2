package lobby

import (
	"slices"
	"strings"
	"sync"
)

// Registry maps room ids to live rooms. Creating a room is atomic, so concurrent
// callers acquiring the same unknown id always share one Room.
type Registry[S any] struct {
	mu    sync.RWMutex
	rooms map[string]*Room[S]
}

func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{
		rooms: make(map[string]*Room[S]),
	}
}

// Acquire returns the room for id, starting a new one if needed.
func (g *Registry[S]) Acquire(id string) *Room[S] {
	g.mu.RLock()
	r, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return r
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[id]; ok {
		return r
	}

	r = newRoom(id, g)
	g.rooms[id] = r
	go r.run()
	return r
}

func (g *Registry[S]) Get(id string) (*Room[S], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// Rooms returns the live rooms ordered by id.
func (g *Registry[S]) Rooms() []*Room[S] {
	g.mu.RLock()
	rooms := make([]*Room[S], 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room[S]) int {
		return strings.Compare(a.id, b.id)
	})
	return rooms
}

func (g *Registry[S]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Close stops every room. Queued operations fail with ErrRoomClosed.
func (g *Registry[S]) Close() {
	for _, r := range g.Rooms() {
		r.shutdown()
	}
}

// forget drops r unless the id has already been taken by a newer room.
func (g *Registry[S]) forget(r *Room[S]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.rooms[r.id]; ok && current == r {
		delete(g.rooms, r.id)
	}
}
