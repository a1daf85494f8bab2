package lobby

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomClosed      = errors.New("ROOM_CLOSED: Room is no longer active")
	ErrOperationFailed = errors.New("INTERNAL: Room operation failed")
)

// Tx is handed to every operation a Room runs. State is nil until an operation
// creates it; assigning a new pointer replaces the room's state.
type Tx[S any] struct {
	RoomID string
	State  *S
	evict  bool
}

// Evict closes the room once the current operation returns. Operations queued
// behind it fail with ErrRoomClosed.
func (tx *Tx[S]) Evict() {
	tx.evict = true
}

type job[S any] struct {
	fn   func(*Tx[S])
	done chan error
}

// Room serialises every operation on one piece of state through a single
// goroutine. Operations run in submission order, one at a time.
type Room[S any] struct {
	id       string
	registry *Registry[S]

	mu     sync.Mutex
	jobs   *queue.Queue
	closed bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once

	state *S
}

func newRoom[S any](id string, registry *Registry[S]) *Room[S] {
	return &Room[S]{
		id:       id,
		registry: registry,
		jobs:     queue.New(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

func (r *Room[S]) ID() string {
	return r.id
}

// Do queues fn and blocks until it has run. It must not be called from inside
// another operation of the same room.
func (r *Room[S]) Do(fn func(*Tx[S])) error {
	j := &job[S]{fn: fn, done: make(chan error, 1)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRoomClosed
	}
	r.jobs.Add(j)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}

	return <-j.done
}

func (r *Room[S]) next() *job[S] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs.Length() == 0 {
		return nil
	}
	return r.jobs.Remove().(*job[S])
}

func (r *Room[S]) run() {
	for {
		select {
		case <-r.stop:
			r.close()
			return
		case <-r.wake:
		}

		for j := r.next(); j != nil; j = r.next() {
			tx, err := r.apply(j)
			if err != nil {
				j.done <- err
				continue
			}
			r.state = tx.State

			// An evicted room is gone from the registry before its caller resumes.
			if tx.evict {
				r.close()
				j.done <- nil
				return
			}
			j.done <- nil
		}
	}
}

// apply runs one operation. A panicking operation fails with
// ErrOperationFailed and leaves the room running; neither its state swap nor
// its eviction takes effect.
func (r *Room[S]) apply(j *job[S]) (tx *Tx[S], err error) {
	tx = &Tx[S]{RoomID: r.id, State: r.state}
	defer func() {
		if v := recover(); v != nil {
			log.Error().Str("room", r.id).Interface("panic", v).Bytes("stack", debug.Stack()).
				Msg("room operation panicked")
			err = fmt.Errorf("%w: %v", ErrOperationFailed, v)
		}
	}()
	j.fn(tx)
	return tx, nil
}

// close rejects everything still queued and forgets the room.
func (r *Room[S]) close() {
	r.mu.Lock()
	r.closed = true
	pending := make([]*job[S], 0, r.jobs.Length())
	for r.jobs.Length() > 0 {
		pending = append(pending, r.jobs.Remove().(*job[S]))
	}
	r.mu.Unlock()

	for _, j := range pending {
		j.done <- ErrRoomClosed
	}

	r.registry.forget(r)
}

func (r *Room[S]) shutdown() {
	r.stopOnce.Do(func() { close(r.stop) })
}
