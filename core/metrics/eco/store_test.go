package eco

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAggregatesPerDay(t *testing.T) {
	s := NewMemoryStore()
	d := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.Add(Record{ClientID: "car-1", Date: d, Requests: 1, EnergyKWh: 30, CostSaved: 2}))
	require.NoError(t, s.Add(Record{ClientID: "car-1", Date: d.Add(6 * time.Hour), Requests: 1, EnergyKWh: 10, CostSaved: 1, EmissionsAvoided: 500}))
	require.NoError(t, s.Add(Record{ClientID: "car-1", Date: d.Add(24 * time.Hour), Requests: 1}))
	require.NoError(t, s.Add(Record{ClientID: "car-2", Date: d, Requests: 1}))

	recs, err := s.Query("car-1", d, d)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Requests)
	assert.Equal(t, 3.0, recs[0].CostSaved)
	assert.Equal(t, Day(d), recs[0].Date)

	recs, err = s.Query("car-1", d, d.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Date.Before(recs[1].Date))
}

func TestRecordRatios(t *testing.T) {
	r := Record{EnergyKWh: 40, CostSaved: 4, EmissionsAvoided: 2000}
	assert.Equal(t, 0.1, r.CostPerKWh())
	assert.Equal(t, 50.0, r.EmissionsPerKWh())
	assert.Zero(t, Record{}.CostPerKWh())
	assert.Zero(t, Record{}.EmissionsPerKWh())
}
