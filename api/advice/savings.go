package advice

import (
	"net/http"
	"time"

	"github.com/kilianp07/smartcharge/core/metrics/eco"
)

type savingsDay struct {
	Date             string  `json:"date"`
	Requests         int     `json:"requests"`
	EnergyKWh        float64 `json:"energy_kwh"`
	CostSaved        float64 `json:"cost_saved"`
	EmissionsAvoided float64 `json:"emissions_avoided"`
	CostPerKWh       float64 `json:"cost_per_kwh"`
	EmissionsPerKWh  float64 `json:"emissions_per_kwh"`
}

// NewSavingsHandler exposes the daily savings of a client via
// GET /api/savings/{client}?from=&to=. The range defaults to the last 30 days.
func NewSavingsHandler(store eco.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		client := r.PathValue("client")
		if client == "" {
			http.NotFound(w, r)
			return
		}
		end, err := parseTime(r.URL.Query().Get("to"))
		if err != nil {
			http.Error(w, "invalid to: "+err.Error(), http.StatusBadRequest)
			return
		}
		if end.IsZero() {
			end = time.Now()
		}
		start, err := parseTime(r.URL.Query().Get("from"))
		if err != nil {
			http.Error(w, "invalid from: "+err.Error(), http.StatusBadRequest)
			return
		}
		if start.IsZero() {
			start = end.AddDate(0, 0, -30)
		}
		recs, err := store.Query(client, eco.Day(start), end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]savingsDay, len(recs))
		for i, rec := range recs {
			out[i] = savingsDay{
				Date:             rec.Date.Format("2006-01-02"),
				Requests:         rec.Requests,
				EnergyKWh:        rec.EnergyKWh,
				CostSaved:        rec.CostSaved,
				EmissionsAvoided: rec.EmissionsAvoided,
				CostPerKWh:       rec.CostPerKWh(),
				EmissionsPerKWh:  rec.EmissionsPerKWh(),
			}
		}
		writeJSON(w, http.StatusOK, out)
	})
}
