package store

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"
)

type opKind int

const (
	opSave opKind = iota
	opDelete
)

type op struct {
	kind opKind
	rec  Record
}

// Synchronizer writes room records behind the game. Save and Delete return
// immediately; a single worker applies them in order. When several writes for
// the same room are waiting only the newest is applied. Failures are logged and
// never surface to callers.
type Synchronizer struct {
	store   Store
	timeout time.Duration

	mu       sync.Mutex
	order    *queue.Queue // room ids in first-queued order
	pending  map[string]op
	inflight map[string]op
	progress chan struct{} // closed and replaced after every applied op

	wake chan struct{}
}

func NewSynchronizer(s Store, timeout time.Duration) *Synchronizer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Synchronizer{
		store:    s,
		timeout:  timeout,
		order:    queue.New(),
		pending:  make(map[string]op),
		inflight: make(map[string]op),
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Load returns the newest known record for roomID, consulting queued writes
// before the store.
func (s *Synchronizer) Load(ctx context.Context, roomID string) (*Record, error) {
	s.mu.Lock()
	o, ok := s.pending[roomID]
	if !ok {
		o, ok = s.inflight[roomID]
	}
	s.mu.Unlock()

	if ok {
		if o.kind == opDelete {
			return nil, ErrNotFound
		}
		rec := clone(o.rec)
		return &rec, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Load(ctx, roomID)
}

func (s *Synchronizer) Save(rec Record) {
	s.enqueue(rec.RoomID, op{kind: opSave, rec: clone(rec)})
}

func (s *Synchronizer) Delete(roomID string) {
	s.enqueue(roomID, op{kind: opDelete, rec: Record{RoomID: roomID}})
}

func (s *Synchronizer) enqueue(roomID string, o op) {
	s.mu.Lock()
	if _, queued := s.pending[roomID]; !queued {
		s.order.Add(roomID)
	}
	s.pending[roomID] = o
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Purge drops every queued write, waits for the one in flight and then removes
// every record from the store.
func (s *Synchronizer) Purge(ctx context.Context) error {
	s.mu.Lock()
	s.pending = make(map[string]op)
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.DeleteAll(ctx)
}

// Flush blocks until every queued write has been applied.
func (s *Synchronizer) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 && len(s.inflight) == 0 {
			s.mu.Unlock()
			return nil
		}
		progress := s.progress
		s.mu.Unlock()

		select {
		case <-progress:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run applies queued writes until ctx is done, then drains what is left.
func (s *Synchronizer) Run(ctx context.Context) error {
	for {
		s.drain()

		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case <-s.wake:
		}
	}
}

func (s *Synchronizer) drain() {
	for {
		roomID, o, ok := s.next()
		if !ok {
			return
		}
		s.apply(roomID, o)
	}
}

func (s *Synchronizer) next() (string, op, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.order.Length() > 0 {
		roomID := s.order.Remove().(string)
		o, ok := s.pending[roomID]
		if !ok {
			continue // purged
		}
		delete(s.pending, roomID)
		s.inflight[roomID] = o
		return roomID, o, true
	}
	return "", op{}, false
}

func (s *Synchronizer) apply(roomID string, o op) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch o.kind {
	case opSave:
		err = s.store.Save(ctx, o.rec)
	case opDelete:
		err = s.store.Delete(ctx, roomID)
	}
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("persistence write failed")
	}

	s.mu.Lock()
	delete(s.inflight, roomID)
	close(s.progress)
	s.progress = make(chan struct{})
	s.mu.Unlock()
}
