package investment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"investment-server/internal/lobby"
)

const (
	StartingBudget  = 100000
	GrowthCap       = 30
	MaxPlayers      = 10
	MaxNameLength   = 50
	MaxRoomIDLength = 64
)

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseInvestment Phase = "investment"
	PhaseResults    Phase = "results"
)

type Player struct {
	lobby.Member
	RemainingBudget float64  `json:"remainingBudget"`
	FinalValue      *float64 `json:"finalValue,omitempty"` // Only set in results
}

func (p *Player) Seat() *lobby.Member { return &p.Member }

type Company struct {
	Name            string  `json:"name"`
	TotalInvestment float64 `json:"totalInvestment"`
	GrowthPercent   float64 `json:"growthPercent"`
}

// Absentee is a parked player together with its per-handle state.
type Absentee struct {
	Player     *Player            `json:"player"`
	Investment map[string]float64 `json:"investment,omitempty"`
	Ready      bool               `json:"ready,omitempty"`
	Submitted  bool               `json:"submitted,omitempty"`
}

// Session is one room's authoritative state. It is not safe for concurrent use;
// callers serialise access through the room's worker.
type Session struct {
	RoomID string `json:"roomId"`
	Phase  Phase  `json:"phase"`

	lobby.Roster[*Player] `json:"roster"`

	Companies []*Company `json:"companies"`

	// connection id -> company name -> amount
	Investments map[lobby.Handle]map[string]float64 `json:"investments"`

	Ready     lobby.HandleSet `json:"readyConnections"`
	Submitted lobby.HandleSet `json:"submittedConnections"`

	// Players parked by DetachAll, waiting to rejoin under the same name.
	Away map[lobby.Identity]*Absentee `json:"away,omitempty"`

	CurrentPlayerIndex  int `json:"currentPlayerIndex"`
	CurrentCompanyIndex int `json:"currentCompanyIndex"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

var _ lobby.Moderated = (*Session)(nil)

func NewSession(roomID string, now time.Time) *Session {
	return &Session{
		RoomID:       roomID,
		Phase:        PhaseWaiting,
		Companies:    []*Company{},
		Investments:  make(map[lobby.Handle]map[string]float64),
		Ready:        lobby.NewHandleSet(),
		Submitted:    lobby.NewHandleSet(),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Restore rebuilds a session from its stored JSON document.
func Restore(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	if s.RoomID == "" {
		return nil, fmt.Errorf("stored session has no room id")
	}
	if s.Phase == "" {
		s.Phase = PhaseWaiting
	}
	if s.Companies == nil {
		s.Companies = []*Company{}
	}
	if s.Investments == nil {
		s.Investments = make(map[lobby.Handle]map[string]float64)
	}
	if s.Ready == nil {
		s.Ready = lobby.NewHandleSet()
	}
	if s.Submitted == nil {
		s.Submitted = lobby.NewHandleSet()
	}
	return &s, nil
}

func (s *Session) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize session %s: %w", s.RoomID, err)
	}
	return data, nil
}

func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

func (s *Session) Empty() bool {
	return s.Len() == 0
}

// Player returns the player bound to h.
func (s *Session) Player(h lobby.Handle) (*Player, bool) {
	p, idx := s.ByHandle(h)
	return p, idx >= 0
}

func (s *Session) company(name string) (*Company, int) {
	for i, c := range s.Companies {
		if c.Name == name {
			return c, i
		}
	}
	return nil, -1
}

// ValidateName trims a display name and checks its length.
func ValidateName(name string) (lobby.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return lobby.Identity(name), nil
}

// NormalizeRoomID trims a room id and checks its length.
func NormalizeRoomID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrRoomIDEmpty
	}
	if utf8.RuneCountInString(id) > MaxRoomIDLength {
		return "", ErrRoomIDTooLong
	}
	return id, nil
}

func validateCompanyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrCompanyNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrCompanyNameTooLong
	}
	return name, nil
}
