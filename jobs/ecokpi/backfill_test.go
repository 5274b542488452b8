package ecokpi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/advicelog"
	"github.com/kilianp07/smartcharge/core/metrics/eco"
	"github.com/kilianp07/smartcharge/core/model"
)

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	history := advicelog.NewMemoryStore()
	day := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	profile := &model.SavingsProfile{CostSavings: []float64{0, 1.5, 2}, EmissionSavings: []float64{0, 40, 10}}
	job := model.ChargeJob{SoC: 50, BatteryKWh: 40, ChargingKW: 10}
	for _, r := range []advicelog.Record{
		{Timestamp: day, RequestID: "a", ClientID: "car", Outcome: "ok", Job: job, Profile: profile, BestCostDelay: 2, BestEmissionDelay: 1},
		{Timestamp: day.Add(time.Hour), RequestID: "b", ClientID: "car", Outcome: "ok", Job: job, Profile: profile, BestCostDelay: 2, BestEmissionDelay: 1},
		{Timestamp: day.Add(2 * time.Hour), RequestID: "c", Outcome: "ok", Job: job, Profile: profile, BestCostDelay: 2, BestEmissionDelay: 1},
		{Timestamp: day.Add(3 * time.Hour), RequestID: "d", ClientID: "car", Outcome: "infeasible", Job: job},
	} {
		require.NoError(t, history.Append(ctx, r))
	}

	store := eco.NewMemoryStore()
	n, err := Backfill(ctx, store, history, advicelog.Query{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := store.Query("car", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Requests)
	assert.InDelta(t, 40.0, recs[0].EnergyKWh, 1e-9)
	assert.InDelta(t, 4.0, recs[0].CostSaved, 1e-9)
	assert.InDelta(t, 80.0, recs[0].EmissionsAvoided, 1e-9)

	recs, err = store.Query("anonymous", day, day)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].Requests)
}
