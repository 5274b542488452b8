package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/internal/series"
)

// TrainFromCSV fits a forecaster on the hourly series stored at path. Every
// epoch is forwarded to sink when it implements metrics.TrainingRecorder.
func TrainFromCSV(ctx context.Context, path string, cfg forecast.TrainingConfig, sink metrics.MetricsSink, log logger.Logger) (*forecast.Model, forecast.History, error) {
	log = logger.OrNop(log)
	s, err := series.LoadFile(path)
	if err != nil {
		return nil, forecast.History{}, fmt.Errorf("load training data: %w", err)
	}
	log.Infof("training on %d hourly points from %s", len(s), path)
	opts := []forecast.FitOption{forecast.WithLogger(log)}
	if rec, ok := sink.(metrics.TrainingRecorder); ok {
		opts = append(opts, forecast.WithEpochHook(func(st forecast.EpochStats) {
			ev := metrics.TrainingEvent{
				Epoch:     st.Epoch,
				TrainLoss: st.TrainLoss,
				ValLoss:   st.ValLoss,
				GradNorm:  st.GradNorm,
				Duration:  st.Duration,
				Time:      time.Now(),
			}
			if err := rec.RecordTraining(ev); err != nil {
				log.Warnf("record epoch %d: %v", st.Epoch, err)
			}
		}))
	}
	return forecast.Fit(ctx, s.Matrix(), cfg, opts...)
}

// trainFunc adapts TrainFromCSV for forecast.Holder.LoadOrTrain. It returns
// nil when no training data is configured.
func trainFunc(cfg forecast.Config, sink metrics.MetricsSink, log logger.Logger) forecast.TrainFunc {
	if cfg.TrainingData == "" {
		return nil
	}
	return func(ctx context.Context) (*forecast.Model, error) {
		m, _, err := TrainFromCSV(ctx, cfg.TrainingData, cfg.Training, sink, log)
		return m, err
	}
}
