package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/config"
	coreadvice "github.com/kilianp07/smartcharge/core/advice"
	"github.com/kilianp07/smartcharge/core/advicelog"
	"github.com/kilianp07/smartcharge/core/forecast"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.HTTP.Addr = "off"
	cfg.AdviceLog.Backend = "memory"
	cfg.Forecaster.ModelPath = filepath.Join(t.TempDir(), "model.json")
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func flat(v float64) []float64 {
	s := make([]float64, model.HistoryHours)
	for i := range s {
		s[i] = v
	}
	return s
}

func staticForecaster(t *testing.T) forecast.Static {
	t.Helper()
	price := flat(0.1)
	price[0], price[1], price[2] = 0.3, 0.3, 0.3
	w, err := model.NewForecastWindow(price, flat(300))
	require.NoError(t, err)
	return forecast.Static{Forecast: w}
}

func request(client string) coreadvice.Request {
	return coreadvice.Request{
		ClientID:   client,
		SoC:        50,
		BatteryKWh: 60,
		ChargingKW: 10,
		Departure:  time.Now().Add(10*time.Hour + 30*time.Minute),
		Price:      flat(0.2),
		Emission:   flat(250),
	}
}

func startService(t *testing.T, svc *Service) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()
	return func() {
		cancel()
		require.NoError(t, <-errc)
		require.NoError(t, svc.Close())
	}
}

func TestServiceAdviceFeedsHistoryAndSavings(t *testing.T) {
	svc, err := New(testConfig(t), WithForecaster(staticForecaster(t)))
	require.NoError(t, err)
	stop := startService(t, svc)
	defer stop()
	require.Eventually(t, func() bool { return svc.bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	resp, err := svc.Advise(context.Background(), coreadvice.TransportHTTP, request("car-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, resp.BestCostDelay)

	_, err = svc.Advise(context.Background(), coreadvice.TransportHTTP, coreadvice.Request{ClientID: "car-1"})
	require.ErrorIs(t, err, model.ErrShapeMismatch)

	require.Eventually(t, func() bool {
		recs, err := svc.history.Query(context.Background(), advicelog.Query{ClientID: "car-1"})
		return err == nil && len(recs) == 2
	}, 2*time.Second, 10*time.Millisecond)
	recs, err := svc.history.Query(context.Background(), advicelog.Query{Outcome: string(coremetrics.OutcomeOK)})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, resp.RequestID, recs[0].RequestID)
	assert.Equal(t, 3, recs[0].BestCostDelay)

	require.Eventually(t, func() bool {
		days, err := svc.savings.Query("car-1", time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 0, 1))
		return err == nil && len(days) == 1 && days[0].Requests == 1
	}, 2*time.Second, 10*time.Millisecond)
	days, err := svc.savings.Query("car-1", time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 30.0, days[0].EnergyKWh, 1e-9)
	assert.InDelta(t, 6.0, days[0].CostSaved, 1e-9)
}

func TestServiceHTTPHandler(t *testing.T) {
	svc, err := New(testConfig(t), WithForecaster(staticForecaster(t)))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	h := svc.Handler()

	body, err := json.Marshal(request("car-2"))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/advice", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp coreadvice.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.Profile.Scenarios())

	req := request("car-2")
	req.Departure = time.Now().Add(time.Hour)
	body, err = json.Marshal(req)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/advice", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServiceHandleMQTT(t *testing.T) {
	svc, err := New(testConfig(t), WithForecaster(staticForecaster(t)))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	out := svc.HandleMQTT(context.Background(), "car-3", []byte("not json"))
	eb, ok := out.(coreadvice.ErrorBody)
	require.True(t, ok)
	assert.Equal(t, coremetrics.OutcomeInvalid, eb.Outcome)

	payload, err := json.Marshal(request("ignored"))
	require.NoError(t, err)
	out = svc.HandleMQTT(context.Background(), "car-3", payload)
	resp, ok := out.(coreadvice.Response)
	require.True(t, ok)
	assert.NotEmpty(t, resp.RequestID)

	req := request("")
	req.SoC = -1
	payload, err = json.Marshal(req)
	require.NoError(t, err)
	eb, ok = svc.HandleMQTT(context.Background(), "car-3", payload).(coreadvice.ErrorBody)
	require.True(t, ok)
	assert.Equal(t, coremetrics.OutcomeInvalid, eb.Outcome)
	assert.NotEmpty(t, eb.RequestID)
}

func TestServiceRunWithoutModel(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	err = svc.Run(context.Background())
	assert.ErrorIs(t, err, forecast.ErrModelUninitialized)
	assert.Equal(t, forecast.StateUntrained, svc.Holder.State())
}

func writeTrainingCSV(t *testing.T, hours int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,price,emission\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < hours; i++ {
		phase := 2 * math.Pi * float64(i%24) / 24
		fmt.Fprintf(&b, "%s,%.4f,%.4f\n", start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), 0.2+0.1*math.Sin(phase), 0.3+0.1*math.Cos(phase))
	}
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestServiceRunTrainsAndPersists(t *testing.T) {
	cfg := testConfig(t)
	cfg.Forecaster.TrainingData = writeTrainingCSV(t, 60)
	cfg.Forecaster.Training = forecast.TrainingConfig{HiddenUnits: 4, Activation: "tanh", Epochs: 2, BatchSize: 4, LearningRate: 0.01, Seed: 3}
	cfg.Forecaster.Training.SetDefaults()

	svc, err := New(cfg)
	require.NoError(t, err)
	stop := startService(t, svc)
	require.Eventually(t, func() bool { return svc.Holder.State() != forecast.StateUntrained }, 30*time.Second, 20*time.Millisecond)
	stop()

	assert.Equal(t, forecast.StateTrained, svc.Holder.State())
	_, err = os.Stat(cfg.Forecaster.ModelPath)
	require.NoError(t, err)
	m, err := forecast.Load(cfg.Forecaster.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, forecast.StateLoaded, m.State())
}

func TestTrainFromCSVRecordsEpochs(t *testing.T) {
	rec := &trainingRecorder{}
	cfg := forecast.TrainingConfig{HiddenUnits: 4, Activation: "tanh", Epochs: 3, BatchSize: 4, LearningRate: 0.01, Seed: 1}
	cfg.SetDefaults()
	m, hist, err := TrainFromCSV(context.Background(), writeTrainingCSV(t, 60), cfg, rec, nil)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Len(t, hist.TrainLoss, 3)
	require.Len(t, rec.epochs, 3)
	assert.Equal(t, hist.TrainLoss[2], rec.epochs[2].TrainLoss)

	_, _, err = TrainFromCSV(context.Background(), filepath.Join(t.TempDir(), "none.csv"), cfg, rec, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type trainingRecorder struct {
	coremetrics.NopSink
	epochs []coremetrics.TrainingEvent
}

func (r *trainingRecorder) RecordTraining(ev coremetrics.TrainingEvent) error {
	r.epochs = append(r.epochs, ev)
	return nil
}

func TestServiceRebuildsSavingsFromHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdviceLog.Backend = "jsonl"
	cfg.AdviceLog.Path = filepath.Join(t.TempDir(), "advice.jsonl")

	prev, err := advicelog.New(cfg.AdviceLog)
	require.NoError(t, err)
	profile := &model.SavingsProfile{CostSavings: []float64{0, 3}, EmissionSavings: []float64{0, 50}}
	require.NoError(t, prev.Append(context.Background(), advicelog.Record{
		Timestamp: time.Now().Add(-time.Hour), RequestID: "old", ClientID: "car-7", Outcome: "ok",
		Job:     model.ChargeJob{SoC: 50, BatteryKWh: 40, ChargingKW: 10},
		Profile: profile, BestCostDelay: 1, BestEmissionDelay: 1,
	}))
	require.NoError(t, prev.Close())

	svc, err := New(cfg, WithForecaster(staticForecaster(t)))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	days, err := svc.savings.Query("car-7", time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.InDelta(t, 3.0, days[0].CostSaved, 1e-9)
}

func TestServiceUsesStoredProfile(t *testing.T) {
	svc, err := New(testConfig(t), WithForecaster(staticForecaster(t)))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	short := fmt.Sprintf(`{"soc":50,"price":%s,"emission":%s}`, mustJSON(t, flat(0.2)), mustJSON(t, flat(250)))
	eb, ok := svc.HandleMQTT(context.Background(), "car-4", []byte(short)).(coreadvice.ErrorBody)
	require.True(t, ok)
	assert.Equal(t, coremetrics.OutcomeInvalid, eb.Outcome)

	clock := time.Now().Add(10 * time.Hour).Format("15:04")
	rr := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/clients/car-4/profile",
		strings.NewReader(`{"battery_kwh":60,"charging_kw":10,"departure_clock":"`+clock+`"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp, ok := svc.HandleMQTT(context.Background(), "car-4", []byte(short)).(coreadvice.Response)
	require.True(t, ok)
	assert.Equal(t, 3.0, resp.HoursToCharge)
	assert.True(t, resp.Departure.After(time.Now()))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
