package forecast

import "github.com/kilianp07/smartcharge/core/model"

// Static returns the same forecast for every history window. It is useful
// in tests and for replaying an externally produced forecast.
type Static struct {
	Forecast model.Window
}

// Predict validates the history shape and returns the configured forecast.
func (s Static) Predict(history model.Window) (model.Window, error) {
	if history.Len() != model.HistoryHours {
		return model.Window{}, &model.ShapeError{What: "history window", Rows: history.Len(), Cols: model.FeatureCount, WantRows: model.HistoryHours, WantCols: model.FeatureCount}
	}
	if s.Forecast.Len() == 0 {
		return model.Window{}, ErrModelUninitialized
	}
	return s.Forecast, nil
}
