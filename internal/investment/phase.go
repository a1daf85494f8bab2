package investment

import (
	"math"
	"strings"

	"investment-server/internal/lobby"
)

// StartInvestment opens the investment phase for a new round.
func (s *Session) StartInvestment(actor lobby.Handle) error {
	if !s.IsHost(actor) {
		return ErrNotHost
	}
	if s.Phase != PhaseWaiting {
		return phaseError("start investing", s.Phase)
	}

	s.Phase = PhaseInvestment
	s.CurrentPlayerIndex = 0
	s.CurrentCompanyIndex = 0
	s.Submitted = lobby.NewHandleSet()
	s.Investments = make(map[lobby.Handle]map[string]float64)

	for _, p := range s.Members {
		p.RemainingBudget = StartingBudget
		p.FinalValue = nil
	}
	for _, c := range s.Companies {
		c.TotalInvestment = 0
		c.GrowthPercent = 0
	}

	return nil
}

// Submit records h's one-shot allocation. It reports whether this submission
// completed the round and settled the session.
func (s *Session) Submit(h lobby.Handle, allocations map[string]float64) (settled bool, err error) {
	if s.Phase != PhaseInvestment {
		return false, phaseError("submit investments", s.Phase)
	}

	p, ok := s.Player(h)
	if !ok {
		return false, ErrPlayerNotFound
	}
	if s.Submitted.Has(h) {
		return false, ErrAlreadySubmitted
	}

	clean := make(map[string]float64, len(allocations))
	total := 0.0
	for name, amount := range allocations {
		name = strings.TrimSpace(name)
		if !validAmount(amount) {
			return false, ErrInvalidAmount
		}
		if _, idx := s.company(name); idx < 0 {
			return false, companyNotFound(name)
		}
		if amount == 0 {
			continue
		}
		clean[name] += amount
		total += amount
	}

	if total > StartingBudget {
		return false, ErrBudgetExceeded
	}

	s.Investments[h] = clean
	p.RemainingBudget = StartingBudget - total
	s.Submitted.Add(h)
	s.recomputeTotals()

	return s.AdvanceIfAllSubmitted(), nil
}

// AdvanceIfAllSubmitted settles the round once every seated player has
// submitted. It is the only way out of the investment phase other than a reset.
func (s *Session) AdvanceIfAllSubmitted() bool {
	if s.Phase != PhaseInvestment || s.Len() == 0 {
		return false
	}
	if s.Submitted.Len() != s.Len() {
		return false
	}
	s.settle()
	return true
}

// Reset returns the room to waiting and clears everything but the host
// identity. system skips the host check.
func (s *Session) Reset(actor lobby.Handle, system bool) error {
	if !system && !s.IsHost(actor) {
		return ErrNotHost
	}

	s.Phase = PhaseWaiting
	s.Clear()
	s.Away = nil
	s.Companies = []*Company{}
	s.Investments = make(map[lobby.Handle]map[string]float64)
	s.Ready = lobby.NewHandleSet()
	s.Submitted = lobby.NewHandleSet()
	s.CurrentPlayerIndex = 0
	s.CurrentCompanyIndex = 0

	return nil
}

func (s *Session) AddCompany(actor lobby.Handle, name string) (*Company, error) {
	if !s.IsHost(actor) {
		return nil, ErrNotHost
	}
	if s.Phase != PhaseWaiting && s.Phase != PhaseInvestment {
		return nil, phaseError("add companies", s.Phase)
	}

	name, err := validateCompanyName(name)
	if err != nil {
		return nil, err
	}
	if _, idx := s.company(name); idx >= 0 {
		return nil, ErrCompanyExists
	}

	c := &Company{Name: name}
	s.Companies = append(s.Companies, c)
	return c, nil
}

func (s *Session) DeleteCompany(actor lobby.Handle, name string) error {
	if !s.IsHost(actor) {
		return ErrNotHost
	}
	if s.Phase != PhaseWaiting {
		return phaseError("delete companies", s.Phase)
	}

	name = strings.TrimSpace(name)
	_, idx := s.company(name)
	if idx < 0 {
		return companyNotFound(name)
	}

	s.Companies = append(s.Companies[:idx], s.Companies[idx+1:]...)
	return nil
}

// MarkReady flags h as ready and reports whether every player now is.
func (s *Session) MarkReady(h lobby.Handle) (allReady bool, err error) {
	if _, ok := s.Player(h); !ok {
		return false, ErrPlayerNotFound
	}
	s.Ready.Add(h)
	return s.Ready.Len() == s.Len(), nil
}

// ModifyInvestment lets the host correct one allocation of a player who has
// already submitted. The player's total must stay within the starting budget.
func (s *Session) ModifyInvestment(actor, target lobby.Handle, company string, amount float64) error {
	if !s.IsHost(actor) {
		return ErrNotHost
	}
	if s.Phase != PhaseInvestment {
		return phaseError("modify investments", s.Phase)
	}

	p, ok := s.Player(target)
	if !ok {
		return ErrPlayerNotFound
	}
	allocations, ok := s.Investments[target]
	if !ok || !s.Submitted.Has(target) {
		return ErrNoInvestment
	}

	company = strings.TrimSpace(company)
	if _, idx := s.company(company); idx < 0 {
		return companyNotFound(company)
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}

	total := amount
	for name, a := range allocations {
		if name != company {
			total += a
		}
	}
	if total > StartingBudget {
		return ErrBudgetExceeded
	}

	if amount == 0 {
		delete(allocations, company)
	} else {
		allocations[company] = amount
	}
	p.RemainingBudget = StartingBudget - total
	s.recomputeTotals()

	return nil
}

// recomputeTotals refreshes each company's running total from the recorded
// allocations of seated players.
func (s *Session) recomputeTotals() {
	for _, c := range s.Companies {
		total := 0.0
		for _, p := range s.Members {
			total += s.Investments[p.Handle][c.Name]
		}
		c.TotalInvestment = total
	}
}

func validAmount(amount float64) bool {
	return amount >= 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}
