package metrics

import (
	"errors"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
)

// PromSink exposes advice, forecast and training metrics to Prometheus.
type PromSink struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	costSaving     prometheus.Gauge
	emissionSaving prometheus.Gauge
	bestDelay      *prometheus.GaugeVec
	inference      prometheus.Histogram
	meanPrice      prometheus.Gauge
	epochs         prometheus.Counter
	loss           *prometheus.GaugeVec
}

// NewPromSink registers the metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the metrics on reg. A nil registerer
// defaults to the global one. Collectors already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartcharge_advice_requests_total",
			Help: "Advice requests by transport and outcome",
		}, []string{"transport", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartcharge_advice_duration_seconds",
			Help:    "Time to compute an advice",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		costSaving: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartcharge_advice_best_cost_saving",
			Help: "Largest cost saving of the last successful advice",
		}),
		emissionSaving: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartcharge_advice_best_emission_saving",
			Help: "Largest emission saving of the last successful advice",
		}),
		bestDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_advice_best_delay_hours",
			Help: "Delay with the largest saving in the last successful advice",
		}, []string{"objective"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartcharge_forecast_duration_seconds",
			Help:    "Forecaster inference time",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		meanPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartcharge_forecast_mean_price",
			Help: "Mean price over the last forecast horizon",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartcharge_training_epochs_total",
			Help: "Completed training epochs",
		}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_training_loss",
			Help: "Mean squared error of the last epoch",
		}, []string{"set"}),
	}
	var err error
	if s.requests, err = register(reg, s.requests); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	if s.costSaving, err = register(reg, s.costSaving); err != nil {
		return nil, err
	}
	if s.emissionSaving, err = register(reg, s.emissionSaving); err != nil {
		return nil, err
	}
	if s.bestDelay, err = register(reg, s.bestDelay); err != nil {
		return nil, err
	}
	if s.inference, err = register(reg, s.inference); err != nil {
		return nil, err
	}
	if s.meanPrice, err = register(reg, s.meanPrice); err != nil {
		return nil, err
	}
	if s.epochs, err = register(reg, s.epochs); err != nil {
		return nil, err
	}
	if s.loss, err = register(reg, s.loss); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAdvice counts the request and, on success, updates the savings gauges.
func (s *PromSink) RecordAdvice(ev coremetrics.AdviceEvent) error {
	s.requests.WithLabelValues(ev.Transport, string(ev.Outcome)).Inc()
	s.latency.WithLabelValues(ev.Transport).Observe(ev.Latency.Seconds())
	if ev.Outcome != coremetrics.OutcomeOK || ev.Profile.Scenarios() == 0 {
		return nil
	}
	c, e := ev.Profile.BestCostDelay(), ev.Profile.BestEmissionDelay()
	s.costSaving.Set(ev.Profile.CostSavings[c])
	s.emissionSaving.Set(ev.Profile.EmissionSavings[e])
	s.bestDelay.WithLabelValues("cost").Set(float64(c))
	s.bestDelay.WithLabelValues("emission").Set(float64(e))
	return nil
}

// RecordForecast observes inference latency and the mean forecast price.
func (s *PromSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	s.inference.Observe(ev.Latency.Seconds())
	s.meanPrice.Set(ev.MeanPrice)
	return nil
}

// RecordTraining tracks epoch count and losses.
func (s *PromSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	s.epochs.Inc()
	s.loss.WithLabelValues("train").Set(ev.TrainLoss)
	if !math.IsNaN(ev.ValLoss) {
		s.loss.WithLabelValues("validation").Set(ev.ValLoss)
	}
	return nil
}
