package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/internal/series"
)

// historyFlags selects the observed hours fed to the forecaster, either a
// CSV whose last 24 hours are used or explicit comma separated values.
type historyFlags struct {
	file     string
	price    []float64
	emission []float64
}

func (h *historyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&h.file, "history", "", "hourly CSV; its last 24 hours are the model input")
	cmd.Flags().Float64SliceVar(&h.price, "price", nil, "24 comma separated observed prices")
	cmd.Flags().Float64SliceVar(&h.emission, "emission", nil, "24 comma separated observed emissions")
}

func (h historyFlags) set() bool { return h.file != "" || len(h.price) > 0 || len(h.emission) > 0 }

// window returns the history and the first hour following it.
func (h historyFlags) window(now time.Time) (model.Window, time.Time, error) {
	if h.file != "" {
		s, err := series.LoadFile(h.file)
		if err != nil {
			return model.Window{}, time.Time{}, err
		}
		w, err := s.Tail(model.HistoryHours)
		if err != nil {
			return model.Window{}, time.Time{}, err
		}
		return w, s[len(s)-1].Time.Add(time.Hour), nil
	}
	w, err := model.NewHistoryWindow(h.price, h.emission)
	if err != nil {
		return model.Window{}, time.Time{}, err
	}
	return w, now.Truncate(time.Hour).Add(time.Hour), nil
}

// loadForecast reads the first 24 hours of an hourly CSV as a forecast.
func loadForecast(path string) (model.Window, time.Time, error) {
	s, err := series.LoadFile(path)
	if err != nil {
		return model.Window{}, time.Time{}, err
	}
	if len(s) < model.ForecastHours {
		return model.Window{}, time.Time{}, &model.ShapeError{What: "forecast file", Rows: len(s), Cols: model.FeatureCount, WantRows: model.ForecastHours, WantCols: model.FeatureCount}
	}
	w, err := s[:model.ForecastHours].Tail(model.ForecastHours)
	if err != nil {
		return model.Window{}, time.Time{}, err
	}
	return w, s[0].Time, nil
}

// parseDeparture accepts an RFC3339 timestamp or a wall clock time.
func parseDeparture(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := model.NextDeparture(v, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", model.ErrInvalidJob, err)
	}
	return t, nil
}

func parseNow(v string) (time.Time, error) {
	if v == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, v)
}
