package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(roomID, phase, state string) Record {
	return Record{
		RoomID:    roomID,
		Phase:     phase,
		State:     []byte(state),
		UpdatedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}
}

// testStore runs the behaviour every driver must share.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, record("R1", "waiting", `{"roomId":"R1"}`)))

		rec, err := s.Load(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, "R1", rec.RoomID)
		assert.Equal(t, "waiting", rec.Phase)
		assert.JSONEq(t, `{"roomId":"R1"}`, string(rec.State))
		assert.True(t, rec.UpdatedAt.Equal(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)))
	})

	t.Run("save overwrites", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, record("R1", "results", `{"roomId":"R1","phase":"results"}`)))

		rec, err := s.Load(ctx, "R1")
		require.NoError(t, err)
		assert.Equal(t, "results", rec.Phase)
		assert.JSONEq(t, `{"roomId":"R1","phase":"results"}`, string(rec.State))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "R1"))
		_, err := s.Load(ctx, "R1")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.NoError(t, s.Delete(ctx, "never-existed"))
	})

	t.Run("delete all", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, record("A", "waiting", `{}`)))
		require.NoError(t, s.Save(ctx, record("B", "waiting", `{}`)))

		require.NoError(t, s.DeleteAll(ctx))

		for _, id := range []string{"A", "B"} {
			_, err := s.Load(ctx, id)
			assert.ErrorIs(t, err, ErrNotFound)
		}
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestMemory_LoadReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, record("R", "waiting", `{"a":1}`)))

	rec, err := m.Load(ctx, "R")
	require.NoError(t, err)
	rec.State[0] = 'X'

	again, err := m.Load(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again.State))
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(context.Background(), Options{Driver: "sqlite"})
	assert.Error(t, err)
}
