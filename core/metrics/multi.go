package metrics

import "errors"

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink over sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAdvice forwards ev to every sink. All sinks are called; their errors
// are joined.
func (m *MultiSink) RecordAdvice(ev AdviceEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordAdvice(ev))
	}
	return errors.Join(errs...)
}

// RecordForecast forwards ev to sinks implementing ForecastRecorder.
func (m *MultiSink) RecordForecast(ev ForecastEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ForecastRecorder); ok {
			errs = append(errs, r.RecordForecast(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordTraining forwards ev to sinks implementing TrainingRecorder.
func (m *MultiSink) RecordTraining(ev TrainingEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(TrainingRecorder); ok {
			errs = append(errs, r.RecordTraining(ev))
		}
	}
	return errors.Join(errs...)
}
