package eco

import "time"

// Record aggregates, per client and day, the savings the advice service
// reported as achievable by following its best delays.
type Record struct {
	ClientID         string    `json:"client_id"`
	Date             time.Time `json:"date"`
	Requests         int       `json:"requests"`
	EnergyKWh        float64   `json:"energy_kwh"`
	CostSaved        float64   `json:"cost_saved"`
	EmissionsAvoided float64   `json:"emissions_avoided"`
}

// CostPerKWh returns the saved cost per charged kWh, or 0 when nothing was
// charged.
func (r Record) CostPerKWh() float64 {
	if r.EnergyKWh == 0 {
		return 0
	}
	return r.CostSaved / r.EnergyKWh
}

// EmissionsPerKWh returns the avoided emissions per charged kWh.
func (r Record) EmissionsPerKWh() float64 {
	if r.EnergyKWh == 0 {
		return 0
	}
	return r.EmissionsAvoided / r.EnergyKWh
}
