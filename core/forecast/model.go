package forecast

import (
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/smartcharge/core/model"
)

// State is the lifecycle position of a forecaster.
type State int

const (
	StateUntrained State = iota
	StateTrained
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateTrained:
		return "trained"
	case StateLoaded:
		return "loaded"
	default:
		return "untrained"
	}
}

// Forecaster maps a history window to a forecast window.
type Forecaster interface {
	Predict(history model.Window) (model.Window, error)
}

// Model is a trained sequence forecaster. Its parameters are read-only once
// Fit or Load returns.
type Model struct {
	cfg   TrainingConfig
	net   *seq2seq
	state State
}

// State reports whether the model was trained in-process or loaded.
func (m *Model) State() State {
	if m == nil || m.net == nil {
		return StateUntrained
	}
	return m.state
}

// Config returns the training configuration the model was built with.
func (m *Model) Config() TrainingConfig { return m.cfg }

// Predict returns the forecast for a (History, 2) window. Inference is
// deterministic.
func (m *Model) Predict(history model.Window) (model.Window, error) {
	if m.State() == StateUntrained {
		return model.Window{}, ErrModelUninitialized
	}
	y, err := m.PredictMatrix(history.Matrix())
	if err != nil {
		return model.Window{}, err
	}
	return model.WindowFromMatrix("forecast", y, m.cfg.Forecast)
}

// PredictMatrix maps a (History, Features) matrix to a (Forecast, Features)
// matrix. Any other input shape fails with model.ErrShapeMismatch.
func (m *Model) PredictMatrix(x mat.Matrix) (*mat.Dense, error) {
	if m.State() == StateUntrained {
		return nil, ErrModelUninitialized
	}
	r, c := x.Dims()
	if r != m.cfg.History || c != m.cfg.Features {
		return nil, &model.ShapeError{What: "history window", Rows: r, Cols: c, WantRows: m.cfg.History, WantCols: m.cfg.Features}
	}
	y, _ := m.net.forward(mat.DenseCopyOf(x))
	return y, nil
}
