package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/metrics/eco"
)

// EcoSink tallies the best achievable savings of each successful advice in
// an eco.Store and mirrors the daily totals as Prometheus gauges.
type EcoSink struct {
	store     eco.Store
	cost      *prometheus.GaugeVec
	emissions *prometheus.GaugeVec
	requests  *prometheus.GaugeVec
}

// NewEcoSink creates a sink with its gauges registered on reg.
func NewEcoSink(store eco.Store, reg prometheus.Registerer) (*EcoSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &EcoSink{
		store: store,
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_daily_cost_saving",
			Help: "Achievable cost saving per client and day",
		}, []string{"client_id", "day"}),
		emissions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_daily_emissions_avoided",
			Help: "Achievable emission saving per client and day",
		}, []string{"client_id", "day"}),
		requests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_daily_advice_requests",
			Help: "Successful advice requests per client and day",
		}, []string{"client_id", "day"}),
	}
	var err error
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.emissions, err = register(reg, s.emissions); err != nil {
		return nil, err
	}
	if s.requests, err = register(reg, s.requests); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordAdvice adds a successful advice to the day bucket of its client.
func (s *EcoSink) RecordAdvice(ev coremetrics.AdviceEvent) error {
	if ev.Outcome != coremetrics.OutcomeOK || ev.Profile.Scenarios() == 0 {
		return nil
	}
	client := ev.ClientID
	if client == "" {
		client = "anonymous"
	}
	rec := eco.Record{
		ClientID:         client,
		Date:             ev.Time,
		Requests:         1,
		EnergyKWh:        ev.Job.EnergyNeeded(),
		CostSaved:        ev.Profile.CostSavings[ev.Profile.BestCostDelay()],
		EmissionsAvoided: ev.Profile.EmissionSavings[ev.Profile.BestEmissionDelay()],
	}
	if err := s.store.Add(rec); err != nil {
		return err
	}
	day := eco.Day(ev.Time)
	recs, err := s.store.Query(client, day, day)
	if err != nil || len(recs) == 0 {
		return err
	}
	label := day.Format("2006-01-02")
	s.cost.WithLabelValues(client, label).Set(recs[0].CostSaved)
	s.emissions.WithLabelValues(client, label).Set(recs[0].EmissionsAvoided)
	s.requests.WithLabelValues(client, label).Set(float64(recs[0].Requests))
	return nil
}
