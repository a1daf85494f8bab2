package investment

import (
	"errors"

	"investment-server/internal/lobby"
)

// Join seats a player under handle h. A returning identity keeps its record and
// carries its investment, ready and submitted state over to the new handle; that
// includes players parked by DetachAll.
func (s *Session) Join(id lobby.Identity, h lobby.Handle) (lobby.Handle, error) {
	create := s.newPlayer
	away, returning := s.Away[id]
	if returning {
		create = func(m lobby.Member) *Player {
			away.Player.Handle = m.Handle
			return away.Player
		}
	}

	_, previous, err := s.Attach(id, h, MaxPlayers, create)
	switch {
	case errors.Is(err, lobby.ErrRosterFull):
		return "", ErrRoomFull
	case errors.Is(err, lobby.ErrHandleTaken):
		return "", ErrAlreadyJoined
	case err != nil:
		return "", err
	}

	if returning {
		s.unpark(id, h)
	}
	if previous != "" && previous != h {
		s.rekey(previous, h)
	}
	return previous, nil
}

// DetachAll parks every seated player under its identity and empties the
// roster. Handles stored with a session belong to connections of an earlier
// process, so a restored room starts with nobody seated and nobody hosting;
// parked players get their record back when they rejoin under the same name.
func (s *Session) DetachAll() {
	if s.Empty() {
		return
	}
	if s.Away == nil {
		s.Away = make(map[lobby.Identity]*Absentee)
	}
	for _, p := range s.Members {
		s.Away[p.Identity] = &Absentee{
			Player:     p,
			Investment: s.Investments[p.Handle],
			Ready:      s.Ready.Has(p.Handle),
			Submitted:  s.Submitted.Has(p.Handle),
		}
	}

	s.Clear()
	s.Investments = make(map[lobby.Handle]map[string]float64)
	s.Ready = lobby.NewHandleSet()
	s.Submitted = lobby.NewHandleSet()
	if s.Phase == PhaseInvestment {
		s.recomputeTotals()
	}
}

// unpark moves the parked state of id over to h.
func (s *Session) unpark(id lobby.Identity, h lobby.Handle) {
	away := s.Away[id]
	delete(s.Away, id)

	if away.Investment != nil {
		s.Investments[h] = away.Investment
	}
	if away.Ready {
		s.Ready.Add(h)
	}
	if away.Submitted {
		s.Submitted.Add(h)
	}
	if s.Phase == PhaseInvestment {
		s.recomputeTotals()
	}
}

func (s *Session) newPlayer(m lobby.Member) *Player {
	return &Player{
		Member:          m,
		RemainingBudget: StartingBudget,
	}
}

func (s *Session) rekey(old, new lobby.Handle) {
	if inv, ok := s.Investments[old]; ok {
		s.Investments[new] = inv
		delete(s.Investments, old)
	}
	s.Ready.Rename(old, new)
	s.Submitted.Rename(old, new)
}

// Leave removes the player bound to h together with its investment record and
// set memberships. The host role fails over to the earliest remaining joiner.
func (s *Session) Leave(h lobby.Handle) (lobby.Departure, bool) {
	d, ok := s.Detach(h)
	if !ok {
		return lobby.Departure{}, false
	}

	delete(s.Investments, h)
	s.Ready.Remove(h)
	s.Submitted.Remove(h)
	if s.Phase == PhaseInvestment {
		s.recomputeTotals()
	}

	return d, true
}

// Kick removes target on behalf of the host.
func (s *Session) Kick(actor, target lobby.Handle) (lobby.Departure, error) {
	if !s.IsHost(actor) {
		return lobby.Departure{}, ErrNotHost
	}
	if actor == target {
		return lobby.Departure{}, ErrCannotKickSelf
	}

	d, ok := s.Leave(target)
	if !ok {
		return lobby.Departure{}, ErrPlayerNotFound
	}
	return d, nil
}
