// Package scenarios replays YAML charge scenarios through the scheduler and
// compares the outcome with the recorded expectations.
package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/smartcharge/core/model"
)

// Epoch is the evaluation time of every scenario. Departures are relative
// to it.
var Epoch = time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)

type JobDef struct {
	SoC              float64 `yaml:"soc"`
	BatteryKWh       float64 `yaml:"battery_kwh"`
	ChargingKW       float64 `yaml:"charging_kw"`
	DepartureInHours float64 `yaml:"departure_in_hours"`
}

func (j JobDef) ToModel() model.ChargeJob {
	return model.ChargeJob{
		SoC:        j.SoC,
		BatteryKWh: j.BatteryKWh,
		ChargingKW: j.ChargingKW,
		Departure:  Epoch.Add(time.Duration(j.DepartureInHours * float64(time.Hour))),
	}
}

// CurveDef is a flat hourly curve with per-hour overrides.
type CurveDef struct {
	Base  float64         `yaml:"base"`
	Hours map[int]float64 `yaml:"hours,omitempty"`
}

func (c CurveDef) values() []float64 {
	v := make([]float64, model.ForecastHours)
	for h := range v {
		v[h] = c.Base
		if o, ok := c.Hours[h]; ok {
			v[h] = o
		}
	}
	return v
}

type ForecastDef struct {
	Price    CurveDef `yaml:"price"`
	Emission CurveDef `yaml:"emission"`
}

func (f ForecastDef) ToModel() (model.Window, error) {
	return model.NewForecastWindow(f.Price.values(), f.Emission.values())
}

type Expected struct {
	Scenarios         int  `yaml:"scenarios"`
	BestCostDelay     int  `yaml:"best_cost_delay"`
	BestEmissionDelay int  `yaml:"best_emission_delay"`
	Infeasible        bool `yaml:"infeasible,omitempty"`
}

type Scenario struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Job         JobDef      `yaml:"job"`
	Forecast    ForecastDef `yaml:"forecast"`
	Expected    Expected    `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
