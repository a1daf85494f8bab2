package investment

import "time"

// Snapshot is the full wire view of a session, safe to hand to other goroutines.
type Snapshot struct {
	RoomID               string                        `json:"gameId"`
	Phase                Phase                         `json:"phase"`
	Players              []PlayerView                  `json:"players"`
	Companies            []Company                     `json:"companies"`
	Investments          map[string]map[string]float64 `json:"investments"`
	ReadyConnections     []string                      `json:"readyConnections"`
	SubmittedConnections []string                      `json:"submittedConnections"`
	HostConnectionID     string                        `json:"hostConnectionId"`
	HostName             string                        `json:"hostName"`
	CurrentPlayerIndex   int                           `json:"currentPlayerIndex"`
	CurrentCompanyIndex  int                           `json:"currentCompanyIndex"`
	StartingBudget       float64                       `json:"startingBudget"`
	MaxPlayers           int                           `json:"maxPlayers"`
	LastActivity         time.Time                     `json:"lastActivity"`
}

type PlayerView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	RemainingBudget float64  `json:"remainingBudget"`
	FinalValue      *float64 `json:"finalValue"`
	IsHost          bool     `json:"isHost"`
	Ready           bool     `json:"ready"`
	Submitted       bool     `json:"submitted"`
}

func (s *Session) Snapshot() Snapshot {
	players := make([]PlayerView, len(s.Members))
	for i, p := range s.Members {
		var final *float64
		if p.FinalValue != nil {
			v := *p.FinalValue
			final = &v
		}
		players[i] = PlayerView{
			ID:              string(p.Handle),
			Name:            string(p.Identity),
			RemainingBudget: p.RemainingBudget,
			FinalValue:      final,
			IsHost:          s.IsHost(p.Handle),
			Ready:           s.Ready.Has(p.Handle),
			Submitted:       s.Submitted.Has(p.Handle),
		}
	}

	companies := make([]Company, len(s.Companies))
	for i, c := range s.Companies {
		companies[i] = *c
	}

	investments := make(map[string]map[string]float64, len(s.Investments))
	for h, alloc := range s.Investments {
		cp := make(map[string]float64, len(alloc))
		for name, amount := range alloc {
			cp[name] = amount
		}
		investments[string(h)] = cp
	}

	return Snapshot{
		RoomID:               s.RoomID,
		Phase:                s.Phase,
		Players:              players,
		Companies:            companies,
		Investments:          investments,
		ReadyConnections:     s.Ready.Strings(),
		SubmittedConnections: s.Submitted.Strings(),
		HostConnectionID:     string(s.HostHandle),
		HostName:             string(s.HostIdentity),
		CurrentPlayerIndex:   s.CurrentPlayerIndex,
		CurrentCompanyIndex:  s.CurrentCompanyIndex,
		StartingBudget:       StartingBudget,
		MaxPlayers:           MaxPlayers,
		LastActivity:         s.LastActivity,
	}
}
