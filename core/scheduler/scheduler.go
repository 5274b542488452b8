package scheduler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// Horizon is the number of forecast hours available to the scheduler. Delays
// past it are never evaluated.
const Horizon = model.ForecastHours

// ErrInfeasible is returned when the job cannot finish before departure even
// when charging starts immediately.
var ErrInfeasible = errors.New("charge job infeasible")

// InfeasibleError carries the numbers behind an infeasible job.
type InfeasibleError struct {
	HoursToCharge       float64
	HoursUntilDeparture float64
}

// Deficit is the number of hours missing to complete the charge.
func (e *InfeasibleError) Deficit() float64 { return e.HoursToCharge - e.HoursUntilDeparture }

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("not enough time to charge before departure: need %.2fh, have %.2fh (short by %.2fh)",
		e.HoursToCharge, e.HoursUntilDeparture, e.Deficit())
}

// Unwrap lets errors.Is match ErrInfeasible.
func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// Schedule evaluates every feasible start delay d in [0, min(24, maxDelay+1))
// and returns the savings of each relative to starting now.
//
// Each scenario consumes ceil(hoursToCharge) hourly buckets at the full
// charging rate; the fractional last hour is not pro-rated. Buckets past the
// forecast horizon are not counted, so late scenarios can look cheaper than
// they are.
func Schedule(job model.ChargeJob, forecast model.Window, now time.Time) (model.SavingsProfile, error) {
	if err := job.Validate(); err != nil {
		return model.SavingsProfile{}, err
	}
	if forecast.Len() != Horizon {
		return model.SavingsProfile{}, &model.ShapeError{What: "forecast window", Rows: forecast.Len(), Cols: model.FeatureCount, WantRows: Horizon, WantCols: model.FeatureCount}
	}

	hoursToCharge := job.HoursToCharge()
	hoursUntilDeparture := job.Departure.Sub(now).Hours()
	maxDelay := math.Floor(hoursUntilDeparture - hoursToCharge)
	if maxDelay < 0 {
		return model.SavingsProfile{}, &InfeasibleError{HoursToCharge: hoursToCharge, HoursUntilDeparture: hoursUntilDeparture}
	}
	scenarios := Horizon
	if maxDelay+1 < float64(Horizon) {
		scenarios = int(maxDelay) + 1
	}
	buckets := int(math.Ceil(hoursToCharge))

	baseCost, baseEmitted := accumulate(forecast, job.ChargingKW, 0, buckets)
	p := model.SavingsProfile{
		CostSavings:     make([]float64, scenarios),
		EmissionSavings: make([]float64, scenarios),
		HoursToCharge:   hoursToCharge,
		BaselineCost:    baseCost,
		BaselineEmitted: baseEmitted,
	}
	for d := 0; d < scenarios; d++ {
		cost, emitted := accumulate(forecast, job.ChargingKW, d, buckets)
		p.CostSavings[d] = baseCost - cost
		p.EmissionSavings[d] = baseEmitted - emitted
	}
	return p, nil
}

// accumulate sums price and emission over buckets hours starting at delay,
// stopping at the forecast horizon.
func accumulate(fc model.Window, rateKW float64, delay, buckets int) (cost, emitted float64) {
	for h := 0; h < buckets; h++ {
		if delay+h >= fc.Len() {
			break
		}
		cost += fc.Price(delay+h) * rateKW
		emitted += fc.Emission(delay+h) * rateKW
	}
	return cost, emitted
}
