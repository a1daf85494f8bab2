package investment

import "investment-server/internal/lobby"

type Settlement struct {
	Companies   []Company
	FinalValues map[lobby.Handle]float64
}

// Settle computes company growth and every player's final value. It reads its
// inputs without modifying them and iterates in slice order, so the same inputs
// always produce bit-identical output.
//
// A company's growth is its share of all money invested, scaled to GrowthCap.
// Unallocated budget earns nothing.
func Settle(companies []Company, investments map[lobby.Handle]map[string]float64, players []lobby.Handle) Settlement {
	result := Settlement{
		Companies:   make([]Company, len(companies)),
		FinalValues: make(map[lobby.Handle]float64, len(players)),
	}

	if len(companies) == 0 {
		for _, h := range players {
			result.FinalValues[h] = StartingBudget
		}
		return result
	}

	grandTotal := 0.0
	for i, c := range companies {
		total := 0.0
		for _, h := range players {
			total += investments[h][c.Name]
		}
		result.Companies[i] = Company{Name: c.Name, TotalInvestment: total}
		grandTotal += total
	}

	for i := range result.Companies {
		if grandTotal > 0 {
			result.Companies[i].GrowthPercent = result.Companies[i].TotalInvestment / grandTotal * GrowthCap
		}
	}

	for _, h := range players {
		allocations := investments[h]
		value := 0.0
		allocated := 0.0
		for _, c := range result.Companies {
			amount := allocations[c.Name]
			if amount == 0 {
				continue
			}
			value += amount * (1 + c.GrowthPercent/100)
			allocated += amount
		}
		result.FinalValues[h] = value + (StartingBudget - allocated)
	}

	return result
}

// settle runs Settle over the session and moves it to results.
func (s *Session) settle() {
	companies := make([]Company, len(s.Companies))
	for i, c := range s.Companies {
		companies[i] = *c
	}

	handles := make([]lobby.Handle, len(s.Members))
	for i, p := range s.Members {
		handles[i] = p.Handle
	}

	result := Settle(companies, s.Investments, handles)

	for i, c := range s.Companies {
		c.TotalInvestment = result.Companies[i].TotalInvestment
		c.GrowthPercent = result.Companies[i].GrowthPercent
	}
	for _, p := range s.Members {
		v := result.FinalValues[p.Handle]
		p.FinalValue = &v
	}

	s.Phase = PhaseResults
}
