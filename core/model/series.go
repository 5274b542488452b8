package model

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// TimeSeriesPoint is one hourly observation.
type TimeSeriesPoint struct {
	Time     time.Time `json:"time"`
	Price    float64   `json:"price"`    // currency per kWh
	Emission float64   `json:"emission"` // gCO2eq per kWh
}

// Series is a time ordered run of hourly points.
type Series []TimeSeriesPoint

// Validate checks the hourly invariant: timestamps truncated to the hour,
// strictly increasing, without duplicates.
func (s Series) Validate() error {
	for i, p := range s {
		if !p.Time.Equal(p.Time.Truncate(time.Hour)) {
			return fmt.Errorf("point %d at %s is not aligned to the hour", i, p.Time.Format(time.RFC3339))
		}
		if i > 0 && !p.Time.After(s[i-1].Time) {
			return fmt.Errorf("point %d at %s does not follow %s", i, p.Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Matrix returns the series as an (N, FeatureCount) matrix ordered by time.
func (s Series) Matrix() *mat.Dense {
	if len(s) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(len(s), FeatureCount, nil)
	for i, p := range s {
		m.Set(i, PriceCol, p.Price)
		m.Set(i, EmissionCol, p.Emission)
	}
	return m
}

// Tail returns the last n points as a window.
func (s Series) Tail(n int) (Window, error) {
	if len(s) < n {
		return Window{}, &ShapeError{What: "series tail", Rows: len(s), Cols: FeatureCount, WantRows: n, WantCols: FeatureCount}
	}
	price := make([]float64, n)
	emission := make([]float64, n)
	for i, p := range s[len(s)-n:] {
		price[i] = p.Price
		emission[i] = p.Emission
	}
	return NewWindow("series tail", price, emission, n)
}
