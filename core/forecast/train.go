package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/smartcharge/core/dataset"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

// History holds the per-epoch loss curves. ValLoss is empty when the split
// leaves no validation pairs.
type History struct {
	TrainLoss []float64 `json:"train_loss"`
	ValLoss   []float64 `json:"val_loss"`
	// Stopped is true when early stopping ended training before Epochs.
	Stopped bool `json:"stopped"`
}

// EpochStats is passed to epoch hooks after every epoch.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64 // NaN without validation data
	GradNorm  float64
	Duration  time.Duration
}

// FitOption customises Fit.
type FitOption func(*fitOptions)

type fitOptions struct {
	log   logger.Logger
	hooks []func(EpochStats)
}

// WithLogger logs one line per epoch.
func WithLogger(l logger.Logger) FitOption {
	return func(o *fitOptions) { o.log = logger.OrNop(l) }
}

// WithEpochHook registers a callback invoked after each epoch.
func WithEpochHook(h func(EpochStats)) FitOption {
	return func(o *fitOptions) { o.hooks = append(o.hooks, h) }
}

// Fit trains a forecaster on an (N, Features) time ordered matrix. Pairs are
// built with a stride of 1 and split chronologically. Cancelling ctx aborts
// training between mini-batches and no model is returned.
func Fit(ctx context.Context, data mat.Matrix, cfg TrainingConfig, opts ...FitOption) (*Model, History, error) {
	o := fitOptions{log: logger.NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, History{}, err
	}
	n, cols := data.Dims()
	if cols != cfg.Features {
		return nil, History{}, &model.ShapeError{What: "training series", Rows: n, Cols: cols, WantRows: n, WantCols: cfg.Features}
	}
	ds, err := dataset.Build(data, cfg.History, cfg.Forecast)
	if err != nil {
		return nil, History{}, err
	}
	train, val := ds.Split(cfg.Split)
	if train.Len() == 0 {
		need := cfg.History + cfg.Forecast - 1 + int(math.Ceil(1/cfg.Split))
		return nil, History{}, fmt.Errorf("training split: %w", &dataset.InsufficientDataError{Have: n, Need: need})
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	net, err := newSeq2Seq(cfg, rng)
	if err != nil {
		return nil, History{}, err
	}
	ps := net.params()
	opt := newAdam(cfg.LearningRate, ps)
	o.log.Infof("training on %d pairs, validating on %d", train.Len(), val.Len())

	order := make([]int, train.Len())
	for i := range order {
		order[i] = i
	}
	var hist History
	best := math.Inf(1)
	stale := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		if cfg.shuffle() {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		var total, norm float64
		for b := 0; b < len(order); b += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, hist, err
			}
			end := min(b+cfg.BatchSize, len(order))
			weight := 1 / float64(end-b)
			net.zeroGrad()
			for _, idx := range order[b:end] {
				p := train.Pairs[idx]
				total += net.accumulate(p.X, p.Y, weight)
			}
			norm = clipGlobalNorm(ps, cfg.ClipNorm)
			opt.step(ps)
		}
		trainLoss := total / float64(len(order))
		valLoss := evaluate(net, val)
		hist.TrainLoss = append(hist.TrainLoss, trainLoss)
		if !math.IsNaN(valLoss) {
			hist.ValLoss = append(hist.ValLoss, valLoss)
		}
		stats := EpochStats{Epoch: epoch, TrainLoss: trainLoss, ValLoss: valLoss, GradNorm: norm, Duration: time.Since(start)}
		o.log.Debugw("epoch done", map[string]any{"epoch": epoch, "loss": trainLoss, "val_loss": valLoss, "grad_norm": norm})
		for _, h := range o.hooks {
			h(stats)
		}
		if math.IsNaN(trainLoss) || math.IsInf(trainLoss, 0) {
			return nil, hist, fmt.Errorf("training diverged at epoch %d", epoch)
		}
		if cfg.Patience > 0 && !math.IsNaN(valLoss) {
			if valLoss < best {
				best, stale = valLoss, 0
			} else if stale++; stale >= cfg.Patience {
				o.log.Infof("early stopping at epoch %d, best val loss %.6f", epoch, best)
				hist.Stopped = true
				break
			}
		}
	}
	last := hist.TrainLoss[len(hist.TrainLoss)-1]
	o.log.Infof("training finished after %d epochs, loss %.6f", len(hist.TrainLoss), last)
	return &Model{cfg: cfg, net: net, state: StateTrained}, hist, nil
}

func evaluate(net *seq2seq, ds *dataset.Dataset) float64 {
	if ds.Len() == 0 {
		return math.NaN()
	}
	var total float64
	for _, p := range ds.Pairs {
		total += net.loss(p.X, p.Y)
	}
	return total / float64(ds.Len())
}
