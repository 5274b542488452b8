// Package metrics defines the observability events emitted by the advice
// service and the sinks that record them. Every sink implements MetricsSink;
// optional recorder interfaces (ForecastRecorder, TrainingRecorder) are
// detected with a type assertion so a sink only handles what it cares about.
// Sinks are built from configuration through the registry in factory.go and
// combined with NewMultiSink.
package metrics
