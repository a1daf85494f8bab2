package server

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"investment-server/internal/lobby"
)

// Reaper evicts rooms nobody has touched for longer than the inactivity
// timeout. Evicted rooms are deleted from the store without a broadcast.
type Reaper struct {
	gm       *GameManager
	interval time.Duration
	timeout  time.Duration
}

func NewReaper(gm *GameManager, interval, timeout time.Duration) *Reaper {
	return &Reaper{gm: gm, interval: interval, timeout: timeout}
}

func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(r.gm.now()); n > 0 {
				log.Info().Int("rooms", n).Msg("reaped inactive rooms")
			}
		}
	}
}

// Sweep evicts every room inactive as of now and returns how many it evicted.
func (r *Reaper) Sweep(now time.Time) int {
	cutoff := now.Add(-r.timeout)
	evicted := 0

	for _, room := range r.gm.rooms.Rooms() {
		err := room.Do(func(t *tx) {
			// still being created by a join
			if t.State == nil {
				return
			}
			if !t.State.LastActivity.Before(cutoff) {
				return
			}

			log.Debug().Str("room", t.RoomID).Time("lastActivity", t.State.LastActivity).Msg("evicting inactive room")
			t.State = nil
			t.Evict()
			r.gm.sync.Delete(t.RoomID)
			r.gm.out.UnbindRoom(t.RoomID)
			evicted++
		})
		if err != nil && !errors.Is(err, lobby.ErrRoomClosed) {
			log.Error().Err(err).Str("room", room.ID()).Msg("failed to sweep room")
		}
	}
	return evicted
}
