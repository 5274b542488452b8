package model

// SavingsProfile holds the savings obtained by delaying the charge start by
// d whole hours, for d = 0..Scenarios()-1. Positive values are savings,
// negative values mean the delay is worse than starting now.
type SavingsProfile struct {
	CostSavings     []float64 `json:"cost_savings"`
	EmissionSavings []float64 `json:"emission_savings"`
	HoursToCharge   float64   `json:"hours_to_charge"`
	BaselineCost    float64   `json:"baseline_cost"`
	BaselineEmitted float64   `json:"baseline_emissions"`
}

// Scenarios returns the number of evaluated delays.
func (p SavingsProfile) Scenarios() int { return len(p.CostSavings) }

// BestCostDelay returns the delay with the largest cost saving. Ties resolve
// to the earliest delay.
func (p SavingsProfile) BestCostDelay() int { return argmax(p.CostSavings) }

// BestEmissionDelay returns the delay with the largest emission saving.
func (p SavingsProfile) BestEmissionDelay() int { return argmax(p.EmissionSavings) }

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
