package advice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/profile"
	"github.com/kilianp07/smartcharge/core/scheduler"
)

var now = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

type recorder struct {
	mu        sync.Mutex
	events    []metrics.AdviceEvent
	forecasts []metrics.ForecastEvent
}

func (r *recorder) Publish(ev metrics.AdviceEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) RecordAdvice(metrics.AdviceEvent) error { return nil }

func (r *recorder) RecordForecast(ev metrics.ForecastEvent) error {
	r.forecasts = append(r.forecasts, ev)
	return nil
}

func flat(v float64) []float64 {
	s := make([]float64, model.HistoryHours)
	for i := range s {
		s[i] = v
	}
	return s
}

// cheaper after the first three hours
func staticForecast(t *testing.T) forecast.Static {
	t.Helper()
	price := flat(0.10)
	price[0], price[1], price[2] = 0.30, 0.30, 0.30
	w, err := model.NewForecastWindow(price, flat(200))
	require.NoError(t, err)
	return forecast.Static{Forecast: w}
}

func newAdvisor(t *testing.T, f forecast.Forecaster) (*Advisor, *recorder) {
	rec := &recorder{}
	a := NewAdvisor(f, WithPublisher(rec), WithSink(rec), WithClock(func() time.Time { return now }))
	return a, rec
}

func request() Request {
	return Request{
		ClientID:   "car-1",
		SoC:        50,
		BatteryKWh: 60,
		ChargingKW: 10,
		Departure:  now.Add(10 * time.Hour),
		Price:      flat(0.2),
		Emission:   flat(250),
	}
}

func TestAdviseServesProfile(t *testing.T) {
	a, rec := newAdvisor(t, staticForecast(t))
	resp, err := a.Advise(context.Background(), TransportHTTP, request())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, 8, resp.Profile.Scenarios())
	assert.Equal(t, 3.0, resp.HoursToCharge)
	assert.Equal(t, 3, resp.BestCostDelay)
	assert.Equal(t, 0, resp.BestEmissionDelay)
	assert.Len(t, resp.Forecast.Price, model.ForecastHours)
	assert.InDelta(t, (3*0.30+21*0.10)/24, resp.MeanPrice, 1e-9)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, metrics.OutcomeOK, ev.Outcome)
	assert.Equal(t, resp.RequestID, ev.RequestID)
	assert.Equal(t, "car-1", ev.ClientID)
	assert.Equal(t, TransportHTTP, ev.Transport)
	assert.Equal(t, model.ForecastHours, ev.Forecast.Len())
	require.Len(t, rec.forecasts, 1)
	assert.InDelta(t, resp.MeanPrice, rec.forecasts[0].MeanPrice, 1e-12)
}

func TestAdviseDepartureClock(t *testing.T) {
	a, _ := newAdvisor(t, staticForecast(t))
	req := request()
	req.Departure = time.Time{}
	req.DepartureClock = "6:00 AM"
	resp, err := a.Advise(context.Background(), TransportMQTT, req)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Hour), resp.Departure)
	assert.Equal(t, 8, resp.Profile.Scenarios())
}

func TestAdviseRefusals(t *testing.T) {
	cases := []struct {
		name    string
		model   forecast.Forecaster
		mutate  func(*Request)
		target  error
		outcome metrics.Outcome
	}{
		{"short history", nil, func(r *Request) { r.Price = r.Price[:23] }, model.ErrShapeMismatch, metrics.OutcomeInvalid},
		{"soc out of range", nil, func(r *Request) { r.SoC = 120 }, model.ErrInvalidJob, metrics.OutcomeInvalid},
		{"bad clock", nil, func(r *Request) { r.DepartureClock = "soon" }, model.ErrInvalidJob, metrics.OutcomeInvalid},
		{"no departure", nil, func(r *Request) { r.Departure = time.Time{} }, model.ErrInvalidJob, metrics.OutcomeInvalid},
		{"infeasible", nil, func(r *Request) { r.Departure = now.Add(2 * time.Hour) }, scheduler.ErrInfeasible, metrics.OutcomeInfeasible},
		{"untrained", forecast.Static{}, func(*Request) {}, forecast.ErrModelUninitialized, metrics.OutcomeUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.model
			if f == nil {
				f = staticForecast(t)
			}
			a, rec := newAdvisor(t, f)
			req := request()
			tc.mutate(&req)
			resp, err := a.Advise(context.Background(), TransportHTTP, req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.target)
			assert.NotEmpty(t, resp.RequestID)
			require.Len(t, rec.events, 1)
			assert.Equal(t, tc.outcome, rec.events[0].Outcome)
			assert.NotEmpty(t, rec.events[0].Error)
			assert.Zero(t, rec.events[0].Profile.Scenarios())
		})
	}
}

func TestAdviseCancelled(t *testing.T) {
	a, _ := newAdvisor(t, staticForecast(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Advise(ctx, TransportHTTP, request())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, metrics.OutcomeUnavailable, OutcomeOf(err))
}

func TestNewErrorBody(t *testing.T) {
	err := &scheduler.InfeasibleError{HoursToCharge: 3, HoursUntilDeparture: 2}
	b := NewErrorBody("req-1", err)
	assert.Equal(t, metrics.OutcomeInfeasible, b.Outcome)
	assert.InDelta(t, 1.0, b.DeficitHours, 1e-12)
	assert.Equal(t, "req-1", b.RequestID)

	b = NewErrorBody("", errors.New("boom"))
	assert.Equal(t, metrics.OutcomeError, b.Outcome)
	assert.Zero(t, b.DeficitHours)
}

func TestForecastWithoutModel(t *testing.T) {
	a := NewAdvisor(nil)
	_, err := a.Forecast(model.Window{})
	assert.ErrorIs(t, err, forecast.ErrModelUninitialized)
}

type failingProfiles struct{}

func (failingProfiles) Get(context.Context, string) (profile.Profile, error) {
	return profile.Profile{}, errors.New("disk on fire")
}

func TestAdviseFillsStoredProfile(t *testing.T) {
	store := profile.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), profile.Profile{ClientID: "car-1", BatteryKWh: 60, ChargingKW: 10, DepartureClock: "6:00 AM"}))
	rec := &recorder{}
	a := NewAdvisor(staticForecast(t), WithPublisher(rec), WithProfiles(store), WithClock(func() time.Time { return now }))

	resp, err := a.Advise(context.Background(), TransportHTTP, Request{ClientID: "car-1", SoC: 50, Price: flat(0.2), Emission: flat(250)})
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Hour), resp.Departure)
	assert.Equal(t, 3.0, resp.HoursToCharge)
	assert.Equal(t, 8, resp.Profile.Scenarios())
	require.Len(t, rec.events, 1)
	assert.Equal(t, 60.0, rec.events[0].Job.BatteryKWh)

	// explicit fields win over the stored ones
	req := Request{ClientID: "car-1", SoC: 50, ChargingKW: 20, Departure: now.Add(5 * time.Hour), Price: flat(0.2), Emission: flat(250)}
	resp, err = a.Advise(context.Background(), TransportHTTP, req)
	require.NoError(t, err)
	assert.Equal(t, 1.5, resp.HoursToCharge)
	assert.Equal(t, now.Add(5*time.Hour), resp.Departure)
}

func TestAdviseWithoutStoredProfile(t *testing.T) {
	a := NewAdvisor(staticForecast(t), WithProfiles(profile.NewMemoryStore()), WithClock(func() time.Time { return now }))
	_, err := a.Advise(context.Background(), TransportMQTT, Request{ClientID: "car-9", SoC: 50, Price: flat(0.2), Emission: flat(250)})
	require.ErrorIs(t, err, model.ErrInvalidJob)
	assert.Equal(t, metrics.OutcomeInvalid, OutcomeOf(err))
	assert.ErrorContains(t, err, "car-9")

	// complete requests never touch the store
	_, err = NewAdvisor(staticForecast(t), WithProfiles(failingProfiles{}), WithClock(func() time.Time { return now })).
		Advise(context.Background(), TransportHTTP, request())
	require.NoError(t, err)

	req := request()
	req.BatteryKWh = 0
	_, err = NewAdvisor(staticForecast(t), WithProfiles(failingProfiles{}), WithClock(func() time.Time { return now })).
		Advise(context.Background(), TransportHTTP, req)
	assert.Equal(t, metrics.OutcomeError, OutcomeOf(err))
}
