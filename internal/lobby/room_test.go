package lobby

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

type counter struct {
	n     int
	inOps int
	max   int
}

func TestRoom_RunsOperationsOneAtATime(t *testing.T) {
	reg := NewRegistry[counter]()
	defer reg.Close()

	room := reg.Acquire("ROOM")

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := room.Do(func(tx *Tx[counter]) {
				if tx.State == nil {
					tx.State = &counter{}
				}
				tx.State.inOps++
				if tx.State.inOps > tx.State.max {
					tx.State.max = tx.State.inOps
				}
				tx.State.n++
				tx.State.inOps--
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var got counter
	room.Do(func(tx *Tx[counter]) { got = *tx.State })
	assert.Equal(t, 200, got.n)
	assert.Equal(t, 1, got.max)
}

func TestRegistry_AcquireIsAtomic(t *testing.T) {
	reg := NewRegistry[counter]()
	defer reg.Close()

	rooms := make([]*Room[counter], 50)
	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.Acquire("SAME")
		}(i)
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestRoom_EvictForgetsRoomAndRejectsLaterWork(t *testing.T) {
	reg := NewRegistry[counter]()
	defer reg.Close()

	room := reg.Acquire("GONE")
	err := room.Do(func(tx *Tx[counter]) {
		tx.State = &counter{n: 1}
		tx.Evict()
	})
	assert.NoError(t, err)

	_, ok := reg.Get("GONE")
	assert.False(t, ok, "eviction completes before Do returns")

	err = room.Do(func(tx *Tx[counter]) {})
	assert.True(t, errors.Is(err, ErrRoomClosed))

	fresh := reg.Acquire("GONE")
	assert.NotSame(t, room, fresh)
	fresh.Do(func(tx *Tx[counter]) {
		assert.Nil(t, tx.State)
	})
}

func TestRoom_PanickingOperationFailsAlone(t *testing.T) {
	reg := NewRegistry[counter]()
	defer reg.Close()

	room := reg.Acquire("ROOM")
	require.NoError(t, room.Do(func(tx *Tx[counter]) { tx.State = &counter{n: 1} }))

	err := room.Do(func(tx *Tx[counter]) {
		tx.State = &counter{n: 99}
		tx.Evict()
		panic("boom")
	})
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Contains(t, err.Error(), "boom")

	_, ok := reg.Get("ROOM")
	assert.True(t, ok, "the room survives a panicking operation")

	var got counter
	require.NoError(t, room.Do(func(tx *Tx[counter]) { got = *tx.State }))
	assert.Equal(t, 1, got.n)
}

func TestRegistry_CloseStopsRooms(t *testing.T) {
	reg := NewRegistry[counter]()
	a := reg.Acquire("A")
	reg.Acquire("B")

	reg.Close()

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, timeout, tick)
	assert.ErrorIs(t, a.Do(func(tx *Tx[counter]) {}), ErrRoomClosed)
}

func TestRegistry_RoomsSortedByID(t *testing.T) {
	reg := NewRegistry[counter]()
	defer reg.Close()
	reg.Acquire("c")
	reg.Acquire("a")
	reg.Acquire("b")

	var ids []string
	for _, r := range reg.Rooms() {
		ids = append(ids, r.ID())
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
