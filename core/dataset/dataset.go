// Package dataset turns a time ordered (N, features) matrix into overlapping
// supervised (history, forecast) training pairs.
package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientData is returned when the series is too short to form a
// single training pair.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports how many rows were available and required.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d rows, need at least %d", e.Have, e.Need)
}

// Unwrap lets errors.Is match ErrInsufficientData.
func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// Pair is one supervised sample. X has history rows, Y has forecast rows.
type Pair struct {
	X *mat.Dense
	Y *mat.Dense
}

// Dataset is an ordered list of pairs. Pair i starts at row i of the source.
type Dataset struct {
	Pairs    []Pair
	History  int
	Forecast int
	Features int
}

// Build slides a window with stride 1 over data and returns every pair that
// fits inside the matrix: N-history-forecast+1 of them.
func Build(data mat.Matrix, history, forecast int) (*Dataset, error) {
	if history <= 0 || forecast <= 0 {
		return nil, fmt.Errorf("history and forecast must be positive, got %d and %d", history, forecast)
	}
	n, features := data.Dims()
	need := history + forecast
	if n < need {
		return nil, &InsufficientDataError{Have: n, Need: need}
	}
	count := n - need + 1
	ds := &Dataset{Pairs: make([]Pair, count), History: history, Forecast: forecast, Features: features}
	for i := 0; i < count; i++ {
		x := mat.NewDense(history, features, nil)
		x.Copy(rows(data, i, i+history))
		y := mat.NewDense(forecast, features, nil)
		y.Copy(rows(data, i+history, i+need))
		ds.Pairs[i] = Pair{X: x, Y: y}
	}
	return ds, nil
}

// Len returns the number of pairs.
func (d *Dataset) Len() int { return len(d.Pairs) }

// Split cuts the dataset chronologically: the first int(frac*Len) pairs go to
// train, the rest to validation. No shuffling happens. Pairs adjacent to the
// cut share rows across the boundary, a small leak that is accepted.
func (d *Dataset) Split(frac float64) (train, val *Dataset) {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	cut := int(frac * float64(len(d.Pairs)))
	train = &Dataset{Pairs: d.Pairs[:cut], History: d.History, Forecast: d.Forecast, Features: d.Features}
	val = &Dataset{Pairs: d.Pairs[cut:], History: d.History, Forecast: d.Forecast, Features: d.Features}
	return train, val
}

type slicer interface {
	Slice(i, k, j, l int) mat.Matrix
}

func rows(m mat.Matrix, from, to int) mat.Matrix {
	_, c := m.Dims()
	if s, ok := m.(slicer); ok {
		return s.Slice(from, to, 0, c)
	}
	out := mat.NewDense(to-from, c, nil)
	for i := from; i < to; i++ {
		for j := 0; j < c; j++ {
			out.Set(i-from, j, m.At(i, j))
		}
	}
	return out
}
