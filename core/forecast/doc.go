// Package forecast implements the sequence forecaster: an LSTM encoder that
// summarises the last 24 hours of (price, emission) and an LSTM decoder that
// expands the summary into the next 24 hours of both series.
//
// A Model moves through Untrained -> Trained (Fit) or Loaded (Load). Trained
// and Loaded models are equivalent for inference and are never mutated by
// Predict, so one model may serve concurrent requests. Holder is the
// process-wide slot the service initialises once at start-up.
//
// Inputs are raw magnitudes. Callers must scale training and inference data
// the same way or forecasts will be biased.
package forecast
