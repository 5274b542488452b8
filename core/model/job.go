package model

import (
	"fmt"
	"math"
	"time"
)

// ChargeJob describes one charging request.
type ChargeJob struct {
	SoC        float64   `json:"soc"`         // state of charge in percent [0,100]
	BatteryKWh float64   `json:"battery_kwh"` // usable battery capacity
	ChargingKW float64   `json:"charging_kw"` // constant charging rate
	Departure  time.Time `json:"departure"`
}

// Validate checks the job parameters are in range.
func (j ChargeJob) Validate() error {
	if !finite(j.SoC) || !finite(j.BatteryKWh) || !finite(j.ChargingKW) {
		return fmt.Errorf("%w: soc, capacity and rate must be finite", ErrInvalidJob)
	}
	if j.SoC < 0 || j.SoC > 100 {
		return fmt.Errorf("%w: soc %.2f outside [0,100]", ErrInvalidJob, j.SoC)
	}
	if j.BatteryKWh <= 0 {
		return fmt.Errorf("%w: battery capacity must be positive", ErrInvalidJob)
	}
	if j.ChargingKW <= 0 {
		return fmt.Errorf("%w: charging rate must be positive", ErrInvalidJob)
	}
	if j.Departure.IsZero() {
		return fmt.Errorf("%w: departure time is required", ErrInvalidJob)
	}
	return nil
}

// EnergyNeeded returns the kWh required to reach a full battery.
func (j ChargeJob) EnergyNeeded() float64 {
	return j.BatteryKWh * (100 - j.SoC) / 100
}

// HoursToCharge returns the possibly fractional charging duration.
func (j ChargeJob) HoursToCharge() float64 {
	return j.EnergyNeeded() / j.ChargingKW
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
