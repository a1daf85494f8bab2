package server

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"investment-server/internal/investment"
	"investment-server/internal/lobby"
	"investment-server/internal/store"
)

// Broadcaster delivers messages to connections and tracks which room each
// connection listens to.
type Broadcaster interface {
	SendTo(connID, msgType string, payload interface{})
	Broadcast(roomID, msgType string, payload interface{})
	Bind(connID, roomID string)
	Unbind(connID string)
	UnbindRoom(roomID string) []string
	RoomOf(connID string) (string, bool)
}

type (
	Rooms = lobby.Registry[investment.Session]
	tx    = lobby.Tx[investment.Session]
)

// GameManager applies player actions to rooms. Every action runs on the room's
// own worker: validate, mutate, queue a save, then broadcast.
type GameManager struct {
	rooms  *Rooms
	sync   *store.Synchronizer
	out    Broadcaster
	now    func() time.Time
	maxTry int
}

func NewGameManager(rooms *Rooms, sync *store.Synchronizer, out Broadcaster) *GameManager {
	return &GameManager{
		rooms:  rooms,
		sync:   sync,
		out:    out,
		now:    time.Now,
		maxTry: 50,
	}
}

// JoinGame seats name in roomID under connection h, loading or creating the
// room as needed, and returns the room as the joiner sees it.
func (gm *GameManager) JoinGame(ctx context.Context, roomID, name string, h lobby.Handle) (investment.Snapshot, error) {
	id, err := investment.ValidateName(name)
	if err != nil {
		return investment.Snapshot{}, err
	}
	roomID, err = investment.NormalizeRoomID(roomID)
	if err != nil {
		return investment.Snapshot{}, err
	}

	// A connection switching rooms keeps its old seat until the new room has
	// accepted it.
	current, bound := gm.out.RoomOf(string(h))
	switching := bound && current != roomID

	// A room can close between Acquire and Do when its last player leaves or
	// the reaper evicts it; the next Acquire starts a fresh one.
	for attempt := 0; attempt < gm.maxTry; attempt++ {
		var (
			snap  investment.Snapshot
			opErr error
		)
		err := gm.rooms.Acquire(roomID).Do(func(t *tx) {
			if t.State == nil {
				t.State = gm.load(ctx, roomID)
			}
			s := t.State

			previous, err := s.Join(id, h)
			if err != nil {
				opErr = err
				if s.Empty() {
					t.Evict()
				}
				return
			}

			// A parked player who had submitted may complete the round.
			settled := s.AdvanceIfAllSubmitted()

			s.Touch(gm.now())
			gm.out.Bind(string(h), roomID)
			if previous != "" && previous != h {
				gm.out.Unbind(string(previous))
			}
			gm.save(s)

			snap = s.Snapshot()
			gm.out.Broadcast(roomID, MsgPlayerJoined, PlayerJoinedNotification{
				PlayerID:   string(h),
				PlayerName: string(id),
				IsHost:     s.IsHost(h),
				Reconnect:  previous != "",
			})
			gm.out.Broadcast(roomID, MsgGameState, snap)
			if settled {
				gm.settled(roomID, s)
			}

			log.Info().Str("room", roomID).Str("player", string(id)).Str("connection", string(h)).
				Int("players", s.Len()).Msg("player joined")
		})
		if errors.Is(err, lobby.ErrRoomClosed) {
			continue
		}
		if err != nil {
			return investment.Snapshot{}, err
		}
		if opErr == nil && switching {
			gm.leave(current, h)
		}
		return snap, opErr
	}

	return investment.Snapshot{}, lobby.ErrRoomClosed
}

// load restores roomID from the durable store or starts a fresh session. The
// in-memory session is authoritative, so a failed load is logged and ignored.
// Stored players are parked until they rejoin, since their connections died
// with the process that saved them.
func (gm *GameManager) load(ctx context.Context, roomID string) *investment.Session {
	rec, err := gm.sync.Load(ctx, roomID)
	if err == nil {
		s, err := investment.Restore(rec.State)
		if err == nil {
			s.DetachAll()
			log.Info().Str("room", roomID).Str("phase", string(s.Phase)).Int("parked", len(s.Away)).
				Msg("restored session from store")
			return s
		}
		log.Warn().Err(err).Str("room", roomID).Msg("discarding unreadable stored session")
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Str("room", roomID).Msg("failed to load session, starting fresh")
	}
	return investment.NewSession(roomID, gm.now())
}

func (gm *GameManager) save(s *investment.Session) {
	data, err := s.Marshal()
	if err != nil {
		log.Error().Err(err).Str("room", s.RoomID).Msg("failed to serialize session")
		return
	}
	gm.sync.Save(store.Record{
		RoomID:    s.RoomID,
		Phase:     string(s.Phase),
		State:     data,
		UpdatedAt: s.LastActivity,
	})
}

// withRoom runs fn on an existing room. An accepted mutation (nil error) is
// touched, saved and followed by a gameState broadcast.
func (gm *GameManager) withRoom(roomID string, h lobby.Handle, fn func(t *tx, s *investment.Session) error) error {
	roomID, err := gm.resolveRoom(roomID, h)
	if err != nil {
		return err
	}

	room, ok := gm.rooms.Get(roomID)
	if !ok {
		return investment.ErrRoomNotFound
	}

	var opErr error
	err = room.Do(func(t *tx) {
		if t.State == nil {
			opErr = investment.ErrRoomNotFound
			return
		}
		s := t.State
		if opErr = fn(t, s); opErr != nil {
			return
		}
		if t.State == nil {
			return // evicted
		}
		s.Touch(gm.now())
		gm.save(s)
		gm.out.Broadcast(roomID, MsgGameState, s.Snapshot())
	})
	if errors.Is(err, lobby.ErrRoomClosed) {
		return investment.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	return opErr
}

// resolveRoom falls back to the room the connection is bound to when the
// message did not name one.
func (gm *GameManager) resolveRoom(roomID string, h lobby.Handle) (string, error) {
	if roomID == "" {
		if bound, ok := gm.out.RoomOf(string(h)); ok {
			return bound, nil
		}
		return "", investment.ErrRoomNotFound
	}
	return investment.NormalizeRoomID(roomID)
}

func (gm *GameManager) AddCompany(roomID string, actor lobby.Handle, name string) error {
	return gm.withRoom(roomID, actor, func(t *tx, s *investment.Session) error {
		c, err := s.AddCompany(actor, name)
		if err != nil {
			return err
		}
		gm.out.Broadcast(t.RoomID, MsgCompanyAdded, CompanyAddedNotification{Company: *c})
		return nil
	})
}

func (gm *GameManager) DeleteCompany(roomID string, actor lobby.Handle, name string) error {
	return gm.withRoom(roomID, actor, func(t *tx, s *investment.Session) error {
		if err := s.DeleteCompany(actor, name); err != nil {
			return err
		}
		gm.out.Broadcast(t.RoomID, MsgCompanyDeleted, CompanyDeletedNotification{CompanyName: name})
		return nil
	})
}

func (gm *GameManager) StartInvestment(roomID string, actor lobby.Handle) error {
	return gm.withRoom(roomID, actor, func(t *tx, s *investment.Session) error {
		if err := s.StartInvestment(actor); err != nil {
			return err
		}
		gm.out.Broadcast(t.RoomID, MsgInvestmentStarted, InvestmentStartedNotification{GameID: t.RoomID})
		log.Info().Str("room", t.RoomID).Int("companies", len(s.Companies)).Msg("investment started")
		return nil
	})
}

func (gm *GameManager) SubmitInvestments(roomID string, h lobby.Handle, allocations map[string]float64) error {
	return gm.withRoom(roomID, h, func(t *tx, s *investment.Session) error {
		settled, err := s.Submit(h, allocations)
		if err != nil {
			return err
		}

		p, _ := s.Player(h)
		gm.out.Broadcast(t.RoomID, MsgPlayerSubmitted, PlayerSubmittedNotification{
			PlayerID:   string(h),
			PlayerName: string(p.Identity),
		})
		if settled {
			gm.settled(t.RoomID, s)
		}
		return nil
	})
}

func (gm *GameManager) settled(roomID string, s *investment.Session) {
	gm.out.Broadcast(roomID, MsgAllPlayersSubmitted, s.Snapshot())
	log.Info().Str("room", roomID).Int("players", s.Len()).Msg("round settled")
}

func (gm *GameManager) PlayerReady(roomID string, h lobby.Handle) error {
	return gm.withRoom(roomID, h, func(t *tx, s *investment.Session) error {
		allReady, err := s.MarkReady(h)
		if err != nil {
			return err
		}
		if allReady {
			gm.out.Broadcast(t.RoomID, MsgAllPlayersReady, GameRequest{GameID: t.RoomID})
		}
		return nil
	})
}

func (gm *GameManager) ResetGame(roomID string, actor lobby.Handle) error {
	return gm.withRoom(roomID, actor, func(t *tx, s *investment.Session) error {
		if err := s.Reset(actor, false); err != nil {
			return err
		}
		gm.out.Broadcast(t.RoomID, MsgGameReset, GameResetNotification{
			GameID:  t.RoomID,
			Message: "The host reset the game",
		})
		log.Info().Str("room", t.RoomID).Msg("game reset by host")
		return nil
	})
}

// KickPlayer removes target on behalf of the host. The target is told and
// stops receiving the room's broadcasts.
func (gm *GameManager) KickPlayer(roomID string, actor, target lobby.Handle) error {
	return gm.withRoom(roomID, actor, func(t *tx, s *investment.Session) error {
		d, err := s.Kick(actor, target)
		if err != nil {
			return err
		}

		gm.out.SendTo(string(target), MsgKickedFromGame, KickedFromGameNotification{
			GameID:  t.RoomID,
			Message: "You were removed from the game by the host",
		})
		gm.out.Unbind(string(target))
		gm.out.Broadcast(t.RoomID, MsgPlayerKicked, PlayerKickedNotification{
			PlayerID:   string(target),
			PlayerName: string(d.Member.Identity),
		})
		gm.afterDeparture(t, s, d)
		return nil
	})
}

func (gm *GameManager) ModifyInvestment(roomID string, actor, target lobby.Handle, company string, amount float64) error {
	return gm.withRoom(roomID, actor, func(t *tx, s *investment.Session) error {
		return s.ModifyInvestment(actor, target, company, amount)
	})
}

// Disconnect removes the player bound to h from its room. The last player
// leaving deletes the room.
func (gm *GameManager) Disconnect(h lobby.Handle) {
	roomID, ok := gm.out.RoomOf(string(h))
	gm.out.Unbind(string(h))
	if !ok {
		return
	}
	gm.leave(roomID, h)
}

// leave unseats h from roomID and tells the players left behind.
func (gm *GameManager) leave(roomID string, h lobby.Handle) {
	err := gm.withRoom(roomID, h, func(t *tx, s *investment.Session) error {
		d, ok := s.Leave(h)
		if !ok {
			return investment.ErrPlayerNotFound
		}

		gm.out.Broadcast(t.RoomID, MsgPlayerLeft, PlayerLeftNotification{
			PlayerID:    string(h),
			PlayerName:  string(d.Member.Identity),
			NewHostID:   promotedHandle(d),
			NewHostName: promotedName(d),
		})
		gm.afterDeparture(t, s, d)
		return nil
	})
	if err != nil && !errors.Is(err, investment.ErrPlayerNotFound) && !errors.Is(err, investment.ErrRoomNotFound) {
		log.Warn().Err(err).Str("room", roomID).Str("connection", string(h)).Msg("disconnect failed")
	}
}

// afterDeparture deletes an emptied room or re-checks whether the remaining
// players have all submitted.
func (gm *GameManager) afterDeparture(t *tx, s *investment.Session, d lobby.Departure) {
	if d.Empty {
		t.Evict()
		t.State = nil
		gm.sync.Delete(t.RoomID)
		gm.out.UnbindRoom(t.RoomID)
		log.Info().Str("room", t.RoomID).Msg("last player left, room deleted")
		return
	}

	if d.Promoted != nil {
		log.Info().Str("room", t.RoomID).Str("host", string(d.Promoted.Identity)).Msg("host role transferred")
	}
	if s.AdvanceIfAllSubmitted() {
		gm.settled(t.RoomID, s)
	}
}

// ResetAll clears every live room and purges the durable store. It returns how
// many rooms it reset.
func (gm *GameManager) ResetAll(ctx context.Context) (int, error) {
	reset := 0
	for _, room := range gm.rooms.Rooms() {
		err := room.Do(func(t *tx) {
			gm.out.Broadcast(t.RoomID, MsgGameReset, GameResetNotification{
				GameID:  t.RoomID,
				Message: "All games were reset by an operator",
			})
			gm.out.Broadcast(t.RoomID, MsgGameDeleted, GameDeletedNotification{GameID: t.RoomID})
			gm.out.UnbindRoom(t.RoomID)
			t.State = nil
			t.Evict()
		})
		switch {
		case errors.Is(err, lobby.ErrRoomClosed):
			// emptied or reaped since the listing
		case err != nil:
			log.Error().Err(err).Str("room", room.ID()).Msg("failed to reset room")
		default:
			reset++
		}
	}

	if err := gm.sync.Purge(ctx); err != nil {
		return reset, err
	}

	log.Warn().Int("rooms", reset).Msg("all games reset")
	return reset, nil
}

func promotedHandle(d lobby.Departure) string {
	if d.Promoted == nil {
		return ""
	}
	return string(d.Promoted.Handle)
}

func promotedName(d lobby.Departure) string {
	if d.Promoted == nil {
		return ""
	}
	return string(d.Promoted.Identity)
}
