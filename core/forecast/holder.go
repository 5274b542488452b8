package forecast

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"

	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

// TrainFunc produces a model when no artifact is available.
type TrainFunc func(ctx context.Context) (*Model, error)

// Holder owns the process-wide model. It is initialised once at start-up
// with Set or LoadOrTrain and then only read, so Predict needs no lock.
type Holder struct {
	current atomic.Pointer[Model]
	log     logger.Logger
}

// NewHolder returns an empty (untrained) holder.
func NewHolder(log logger.Logger) *Holder {
	return &Holder{log: logger.OrNop(log)}
}

// Set installs m as the serving model. Models that do not serve day-ahead
// windows are rejected.
func (h *Holder) Set(m *Model) error {
	if m != nil {
		if err := m.cfg.CheckServing(); err != nil {
			return err
		}
	}
	h.current.Store(m)
	return nil
}

// Model returns the serving model or nil.
func (h *Holder) Model() *Model { return h.current.Load() }

// State reports the lifecycle state of the serving model.
func (h *Holder) State() State { return h.current.Load().State() }

// Predict forecasts with the serving model.
func (h *Holder) Predict(history model.Window) (model.Window, error) {
	m := h.current.Load()
	if m == nil {
		return model.Window{}, ErrModelUninitialized
	}
	return m.Predict(history)
}

// LoadOrTrain loads the artifact at path. When the file does not exist it
// calls train, persists the result to path and installs it.
func (h *Holder) LoadOrTrain(ctx context.Context, path string, train TrainFunc) error {
	m, err := Load(path)
	if err == nil {
		if err := h.Set(m); err != nil {
			return fmt.Errorf("model %s: %w", path, err)
		}
		h.log.Infof("loaded forecaster from %s", path)
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load model %s: %w", path, err)
	}
	if train == nil {
		return fmt.Errorf("no model at %s: %w", path, ErrModelUninitialized)
	}
	h.log.Infof("no forecaster at %s, training", path)
	m, err = train(ctx)
	if err != nil {
		return fmt.Errorf("train model: %w", err)
	}
	if err := m.cfg.CheckServing(); err != nil {
		return fmt.Errorf("train model: %w", err)
	}
	if err := m.Save(path); err != nil {
		return fmt.Errorf("save model %s: %w", path, err)
	}
	h.log.Infof("saved forecaster to %s", path)
	return h.Set(m)
}
