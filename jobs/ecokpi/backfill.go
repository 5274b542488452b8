// Package ecokpi rebuilds daily savings tallies from the advice history.
package ecokpi

import (
	"context"

	"github.com/kilianp07/smartcharge/core/advicelog"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/metrics/eco"
)

// Backfill adds every successful advice matching q to store and returns the
// number of records added. Clients without an id are tallied as
// "anonymous".
func Backfill(ctx context.Context, store eco.Store, history advicelog.Store, q advicelog.Query) (int, error) {
	q.Outcome = string(metrics.OutcomeOK)
	recs, err := history.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range recs {
		if r.Profile == nil || r.Profile.Scenarios() == 0 {
			continue
		}
		client := r.ClientID
		if client == "" {
			client = "anonymous"
		}
		rec := eco.Record{
			ClientID:         client,
			Date:             r.Timestamp,
			Requests:         1,
			EnergyKWh:        r.Job.EnergyNeeded(),
			CostSaved:        r.Profile.CostSavings[r.BestCostDelay],
			EmissionsAvoided: r.Profile.EmissionSavings[r.BestEmissionDelay],
		}
		if err := store.Add(rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
