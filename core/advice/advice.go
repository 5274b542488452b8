// Package advice implements the charge advice use case shared by every
// transport: forecast the next day from the caller's history, then price
// each feasible start delay.
package advice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/monitoring"
	"github.com/kilianp07/smartcharge/core/profile"
	"github.com/kilianp07/smartcharge/core/scheduler"
)

// Transport names recorded on advice events.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
	TransportCLI  = "cli"
)

// Request is the wire form of an advice request. Departure is an RFC3339
// timestamp; DepartureClock ("8:30 AM", "20:30") takes precedence and is
// resolved to its next occurrence. A client with a stored profile may omit
// the battery, the charging rate and the departure.
type Request struct {
	ClientID       string    `json:"client_id,omitempty"`
	SoC            float64   `json:"soc"`
	BatteryKWh     float64   `json:"battery_kwh,omitempty"`
	ChargingKW     float64   `json:"charging_kw,omitempty"`
	Departure      time.Time `json:"departure"`
	DepartureClock string    `json:"departure_clock,omitempty"`
	Price          []float64 `json:"price"`
	Emission       []float64 `json:"emission"`
}

// needsProfile reports whether a vehicle field is missing.
func (r Request) needsProfile() bool {
	return r.BatteryKWh == 0 || r.ChargingKW == 0 || (r.Departure.IsZero() && r.DepartureClock == "")
}

// WithProfile fills the missing vehicle fields from p.
func (r Request) WithProfile(p profile.Profile) Request {
	if r.BatteryKWh == 0 {
		r.BatteryKWh = p.BatteryKWh
	}
	if r.ChargingKW == 0 {
		r.ChargingKW = p.ChargingKW
	}
	if r.Departure.IsZero() && r.DepartureClock == "" {
		r.DepartureClock = p.DepartureClock
	}
	return r
}

// Job resolves the request into a validated charge job.
func (r Request) Job(now time.Time) (model.ChargeJob, error) {
	dep := r.Departure
	if r.DepartureClock != "" {
		var err error
		if dep, err = model.NextDeparture(r.DepartureClock, now); err != nil {
			return model.ChargeJob{}, fmt.Errorf("%w: %v", model.ErrInvalidJob, err)
		}
	}
	job := model.ChargeJob{SoC: r.SoC, BatteryKWh: r.BatteryKWh, ChargingKW: r.ChargingKW, Departure: dep}
	if err := job.Validate(); err != nil {
		return model.ChargeJob{}, err
	}
	return job, nil
}

// Series is a serialised (price, emission) window.
type Series struct {
	Price    []float64 `json:"price"`
	Emission []float64 `json:"emission"`
}

// Response is the answer to a successful request.
type Response struct {
	RequestID         string               `json:"request_id"`
	GeneratedAt       time.Time            `json:"generated_at"`
	Departure         time.Time            `json:"departure"`
	Forecast          Series               `json:"forecast"`
	MeanPrice         float64              `json:"mean_price"`
	HoursToCharge     float64              `json:"hours_to_charge"`
	Profile           model.SavingsProfile `json:"profile"`
	BestCostDelay     int                  `json:"best_cost_delay"`
	BestEmissionDelay int                  `json:"best_emission_delay"`
}

// ErrorBody is the answer to a refused request.
type ErrorBody struct {
	RequestID    string          `json:"request_id,omitempty"`
	Outcome      metrics.Outcome `json:"outcome"`
	Error        string          `json:"error"`
	DeficitHours float64         `json:"deficit_hours,omitempty"`
}

// NewErrorBody describes err for the caller.
func NewErrorBody(requestID string, err error) ErrorBody {
	b := ErrorBody{RequestID: requestID, Outcome: OutcomeOf(err), Error: err.Error()}
	var inf *scheduler.InfeasibleError
	if errors.As(err, &inf) {
		b.DeficitHours = inf.Deficit()
	}
	return b
}

// OutcomeOf classifies an Advise error.
func OutcomeOf(err error) metrics.Outcome {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, model.ErrShapeMismatch), errors.Is(err, model.ErrInvalidJob):
		return metrics.OutcomeInvalid
	case errors.Is(err, scheduler.ErrInfeasible):
		return metrics.OutcomeInfeasible
	case errors.Is(err, forecast.ErrModelUninitialized),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}

// Publisher receives one event per handled request.
type Publisher interface {
	Publish(ev metrics.AdviceEvent)
}

// Profiles looks up stored client profiles.
type Profiles interface {
	Get(ctx context.Context, clientID string) (profile.Profile, error)
}

// Advisor serves advice requests against a forecaster.
type Advisor struct {
	model    forecast.Forecaster
	pub      Publisher
	sink     metrics.MetricsSink
	profiles Profiles
	log      logger.Logger
	now      func() time.Time
}

// Option customises an Advisor.
type Option func(*Advisor)

// WithPublisher fans every advice event out to p.
func WithPublisher(p Publisher) Option { return func(a *Advisor) { a.pub = p } }

// WithSink records inference timings in s when it implements
// metrics.ForecastRecorder.
func WithSink(s metrics.MetricsSink) Option { return func(a *Advisor) { a.sink = s } }

// WithProfiles completes requests of known clients from p.
func WithProfiles(p Profiles) Option { return func(a *Advisor) { a.profiles = p } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(a *Advisor) { a.log = logger.OrNop(l) } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(a *Advisor) { a.now = now } }

// NewAdvisor returns an advisor predicting with f.
func NewAdvisor(f forecast.Forecaster, opts ...Option) *Advisor {
	a := &Advisor{model: f, sink: metrics.NopSink{}, log: logger.NopLogger{}, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Advise answers req. The returned Response carries the request id even when
// err is non-nil.
func (a *Advisor) Advise(ctx context.Context, transport string, req Request) (Response, error) {
	start := a.now()
	resp := Response{RequestID: uuid.NewString(), GeneratedAt: start.UTC()}
	ev := metrics.AdviceEvent{RequestID: resp.RequestID, ClientID: req.ClientID, Transport: transport, Time: start}

	profile, fc, job, err := a.advise(ctx, req, start)
	ev.Job = job
	ev.Outcome = OutcomeOf(err)
	ev.Latency = a.now().Sub(start)
	if err != nil {
		ev.Error = err.Error()
		a.publish(ev)
		if ev.Outcome == metrics.OutcomeError {
			monitoring.Report(err, "advice", "advise")
			a.log.Errorf("advice %s failed: %v", resp.RequestID, err)
		} else {
			a.log.Warnf("advice %s refused (%s): %v", resp.RequestID, ev.Outcome, err)
		}
		return resp, err
	}
	ev.Forecast = fc
	ev.Profile = profile
	a.publish(ev)

	resp.Departure = job.Departure
	resp.Forecast = Series{Price: fc.Prices(), Emission: fc.Emissions()}
	resp.MeanPrice = fc.MeanPrice()
	resp.HoursToCharge = profile.HoursToCharge
	resp.Profile = profile
	resp.BestCostDelay = profile.BestCostDelay()
	resp.BestEmissionDelay = profile.BestEmissionDelay()
	a.log.Infof("advice %s served over %s: %d scenarios, best cost delay %dh", resp.RequestID, transport, profile.Scenarios(), resp.BestCostDelay)
	return resp, nil
}

func (a *Advisor) advise(ctx context.Context, req Request, now time.Time) (model.SavingsProfile, model.Window, model.ChargeJob, error) {
	history, err := model.NewHistoryWindow(req.Price, req.Emission)
	if err != nil {
		return model.SavingsProfile{}, model.Window{}, model.ChargeJob{}, err
	}
	if req, err = a.complete(ctx, req); err != nil {
		return model.SavingsProfile{}, model.Window{}, model.ChargeJob{}, err
	}
	job, err := req.Job(now)
	if err != nil {
		return model.SavingsProfile{}, model.Window{}, model.ChargeJob{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.SavingsProfile{}, model.Window{}, job, err
	}
	fc, err := a.Forecast(history)
	if err != nil {
		return model.SavingsProfile{}, model.Window{}, job, err
	}
	profile, err := scheduler.Schedule(job, fc, now)
	if err != nil {
		return model.SavingsProfile{}, model.Window{}, job, err
	}
	return profile, fc, job, nil
}

// complete fills the vehicle fields a request left out from the client's
// stored profile.
func (a *Advisor) complete(ctx context.Context, req Request) (Request, error) {
	if a.profiles == nil || req.ClientID == "" || !req.needsProfile() {
		return req, nil
	}
	p, err := a.profiles.Get(ctx, req.ClientID)
	if errors.Is(err, profile.ErrNotFound) {
		return req, fmt.Errorf("%w: no stored profile for client %q, send battery_kwh, charging_kw and a departure", model.ErrInvalidJob, req.ClientID)
	}
	if err != nil {
		return req, fmt.Errorf("load profile: %w", err)
	}
	return req.WithProfile(p), nil
}

// Forecast predicts the next day from history and records the inference.
func (a *Advisor) Forecast(history model.Window) (model.Window, error) {
	if a.model == nil {
		return model.Window{}, forecast.ErrModelUninitialized
	}
	start := time.Now()
	fc, err := a.model.Predict(history)
	if err != nil {
		return model.Window{}, err
	}
	if r, ok := a.sink.(metrics.ForecastRecorder); ok {
		ev := metrics.ForecastEvent{MeanPrice: fc.MeanPrice(), Latency: time.Since(start), Time: a.now()}
		if err := r.RecordForecast(ev); err != nil {
			a.log.Warnf("record forecast: %v", err)
		}
	}
	return fc, nil
}

func (a *Advisor) publish(ev metrics.AdviceEvent) {
	if a.pub != nil {
		a.pub.Publish(ev)
	}
}
