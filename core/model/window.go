package model

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// HistoryHours is the number of observed hours fed to the forecaster.
	HistoryHours = 24
	// ForecastHours is the number of hours produced by the forecaster.
	ForecastHours = 24
	// FeatureCount is the number of series per time step (price, emission).
	FeatureCount = 2
)

// Column indices of the (rows, FeatureCount) matrices used across the module.
const (
	PriceCol    = 0
	EmissionCol = 1
)

// Window is an ordered run of hourly (price, emission) pairs. A history
// window holds the most recent observed hours, a forecast window the
// predicted upcoming hours. Windows are never mutated after construction.
type Window struct {
	price    []float64
	emission []float64
}

// NewWindow copies price and emission into a window of exactly rows hours.
func NewWindow(what string, price, emission []float64, rows int) (Window, error) {
	if len(price) != rows || len(emission) != rows {
		n := len(price)
		if len(emission) != rows {
			n = len(emission)
		}
		return Window{}, &ShapeError{What: what, Rows: n, Cols: FeatureCount, WantRows: rows, WantCols: FeatureCount}
	}
	w := Window{price: make([]float64, rows), emission: make([]float64, rows)}
	copy(w.price, price)
	copy(w.emission, emission)
	return w, nil
}

// NewHistoryWindow builds the 24 hour history window expected by the forecaster.
func NewHistoryWindow(price, emission []float64) (Window, error) {
	return NewWindow("history window", price, emission, HistoryHours)
}

// NewForecastWindow builds a 24 hour forecast window.
func NewForecastWindow(price, emission []float64) (Window, error) {
	return NewWindow("forecast window", price, emission, ForecastHours)
}

// WindowFromMatrix reads a (rows, FeatureCount) matrix into a window.
func WindowFromMatrix(what string, m mat.Matrix, rows int) (Window, error) {
	r, c := m.Dims()
	if r != rows || c != FeatureCount {
		return Window{}, &ShapeError{What: what, Rows: r, Cols: c, WantRows: rows, WantCols: FeatureCount}
	}
	w := Window{price: make([]float64, r), emission: make([]float64, r)}
	for i := 0; i < r; i++ {
		w.price[i] = m.At(i, PriceCol)
		w.emission[i] = m.At(i, EmissionCol)
	}
	return w, nil
}

// Len returns the number of hours in the window.
func (w Window) Len() int { return len(w.price) }

// Price returns the price at hour h.
func (w Window) Price(h int) float64 { return w.price[h] }

// Emission returns the carbon intensity at hour h.
func (w Window) Emission(h int) float64 { return w.emission[h] }

// Prices returns a copy of the price series.
func (w Window) Prices() []float64 { return append([]float64(nil), w.price...) }

// Emissions returns a copy of the emission series.
func (w Window) Emissions() []float64 { return append([]float64(nil), w.emission...) }

// MeanPrice is the average price over the window, 0 for an empty window.
func (w Window) MeanPrice() float64 {
	if len(w.price) == 0 {
		return 0
	}
	return stat.Mean(w.price, nil)
}

// Matrix returns the window as a fresh (Len, FeatureCount) matrix.
func (w Window) Matrix() *mat.Dense {
	if w.Len() == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(w.Len(), FeatureCount, nil)
	for i := range w.price {
		m.Set(i, PriceCol, w.price[i])
		m.Set(i, EmissionCol, w.emission[i])
	}
	return m
}
