package advicelog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
)

var t0 = time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC)

func record(id, client, outcome string, at time.Duration) Record {
	return Record{Timestamp: t0.Add(at), RequestID: id, ClientID: client, Outcome: outcome}
}

// exerciseStore runs the same scenario against every backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, record("r2", "car-1", "ok", time.Hour)))
	require.NoError(t, s.Append(ctx, record("r1", "car-1", "infeasible", 0)))
	require.NoError(t, s.Append(ctx, record("r3", "car-2", "ok", 2*time.Hour)))

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids(all))

	got, err := s.Query(ctx, Query{ClientID: "car-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids(got))

	got, err = s.Query(ctx, Query{Outcome: "ok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3"}, ids(got))

	got, err = s.Query(ctx, Query{Start: t0.Add(30 * time.Minute), End: t0.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, ids(got))

	got, err = s.Query(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3"}, ids(got))
}

func ids(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.RequestID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "advice.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "log", "advice.jsonl"), 1, 3, 0)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStoreReadsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advice.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 3, 0)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, record("old", "car-1", "ok", 0)))
	require.NoError(t, s.Rotate())
	require.NoError(t, s.Append(ctx, record("new", "car-1", "ok", time.Hour)))

	backups, err := filepath.Glob(filepath.Join(filepath.Dir(path), "advice-*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	got, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, ids(got))
}

func TestRotatingJSONLStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advice.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o644))
	s, err := NewRotatingJSONLStore(path, 1, 1, 0)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Append(context.Background(), record("r1", "", "ok", 0)))

	got, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(got))
}

func TestFromEventAndSink(t *testing.T) {
	price := make([]float64, model.ForecastHours)
	emission := make([]float64, model.ForecastHours)
	for i := range price {
		price[i] = float64(i)
		emission[i] = 100
	}
	fc, err := model.NewForecastWindow(price, emission)
	require.NoError(t, err)
	ev := metrics.AdviceEvent{
		RequestID: "r9",
		ClientID:  "car-3",
		Transport: "mqtt",
		Outcome:   metrics.OutcomeOK,
		Job:       model.ChargeJob{SoC: 20, BatteryKWh: 50, ChargingKW: 7, Departure: t0.Add(12 * time.Hour)},
		Forecast:  fc,
		Profile:   model.SavingsProfile{CostSavings: []float64{0, -1, 3}, EmissionSavings: []float64{0, 4, 1}, HoursToCharge: 5.7},
		Latency:   1500 * time.Microsecond,
		Time:      t0,
	}
	store := NewMemoryStore()
	require.NoError(t, Sink{Store: store}.RecordAdvice(ev))

	got, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, "ok", r.Outcome)
	assert.Equal(t, 2, r.BestCostDelay)
	assert.Equal(t, 1, r.BestEmissionDelay)
	assert.Equal(t, 1.5, r.LatencyMS)
	require.NotNil(t, r.Forecast)
	assert.Equal(t, price, r.Forecast.Price)

	refused := FromEvent(metrics.AdviceEvent{RequestID: "r10", Outcome: metrics.OutcomeInvalid, Error: "bad soc", Time: t0})
	assert.Nil(t, refused.Forecast)
	assert.Nil(t, refused.Profile)
	assert.Equal(t, "bad soc", refused.Error)
}

func TestConfig(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, "jsonl", c.Backend)
	assert.Equal(t, "advice.jsonl", c.Path)
	require.NoError(t, c.Validate())

	c = Config{Backend: "sqlite"}
	c.SetDefaults()
	assert.Equal(t, "advice.db", c.Path)

	assert.Error(t, Config{Backend: "postgres", Path: "x"}.Validate())

	s, err := New(Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "a.db")})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
