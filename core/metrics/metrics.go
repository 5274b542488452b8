package metrics

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Outcome classifies how an advice request ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeInvalid     Outcome = "invalid"
	OutcomeInfeasible  Outcome = "infeasible"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeError       Outcome = "error"
)

// AdviceEvent describes one served (or refused) advice request. Forecast and
// Profile are zero unless Outcome is OutcomeOK.
type AdviceEvent struct {
	RequestID string
	ClientID  string
	Transport string
	Outcome   Outcome
	Job       model.ChargeJob
	Forecast  model.Window
	Profile   model.SavingsProfile
	Latency   time.Duration
	Error     string
	Time      time.Time
}

// MetricsSink records advice events.
type MetricsSink interface {
	RecordAdvice(ev AdviceEvent) error
}

// ForecastEvent captures one forecaster inference.
type ForecastEvent struct {
	MeanPrice float64
	Latency   time.Duration
	Time      time.Time
}

// ForecastRecorder is implemented by sinks tracking inference.
type ForecastRecorder interface {
	RecordForecast(ev ForecastEvent) error
}

// TrainingEvent is emitted after every training epoch.
type TrainingEvent struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64 // NaN when no validation pairs exist
	GradNorm  float64
	Duration  time.Duration
	Time      time.Time
}

// TrainingRecorder is implemented by sinks tracking training progress.
type TrainingRecorder interface {
	RecordTraining(ev TrainingEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordAdvice(AdviceEvent) error     { return nil }
func (NopSink) RecordForecast(ForecastEvent) error { return nil }
func (NopSink) RecordTraining(TrainingEvent) error { return nil }
