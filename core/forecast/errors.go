package forecast

import "errors"

// ErrModelUninitialized is returned when inference is attempted before a
// model was trained or loaded.
var ErrModelUninitialized = errors.New("forecast model not initialized")

// ErrBadArtifact is returned when a persisted model cannot be decoded.
var ErrBadArtifact = errors.New("invalid model artifact")

// ErrIncompatibleModel is returned when a model does not map a 24 hour
// history to a 24 hour forecast of price and emission.
var ErrIncompatibleModel = errors.New("model does not serve day-ahead windows")
