package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/smartcharge/core/model"
)

// TrainingConfig holds the architecture and optimiser settings.
type TrainingConfig struct {
	History      int     `json:"history" yaml:"history"`
	Forecast     int     `json:"forecast" yaml:"forecast"`
	Features     int     `json:"features" yaml:"features"`
	HiddenUnits  int     `json:"hidden_units" yaml:"hidden_units"`
	Activation   string  `json:"activation" yaml:"activation"`
	Epochs       int     `json:"epochs" yaml:"epochs"`
	BatchSize    int     `json:"batch_size" yaml:"batch_size"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Split        float64 `json:"split" yaml:"split"`
	Seed         uint64  `json:"seed" yaml:"seed"`
	// Shuffle reorders training batches every epoch. The train/validation
	// split itself is always chronological.
	Shuffle *bool `json:"shuffle,omitempty" yaml:"shuffle,omitempty"`
	// Patience stops training after that many epochs without validation
	// improvement. 0 disables early stopping.
	Patience int `json:"patience" yaml:"patience"`
	// ClipNorm rescales the global gradient norm. 0 disables clipping.
	ClipNorm float64 `json:"clip_norm" yaml:"clip_norm"`
}

// DefaultTrainingConfig mirrors the reference model: 64 relu units, Adam
// with lr 0.001, 100 epochs of batch 32 and an 80/20 split.
func DefaultTrainingConfig() TrainingConfig {
	c := TrainingConfig{}
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values.
func (c *TrainingConfig) SetDefaults() {
	if c.History == 0 {
		c.History = model.HistoryHours
	}
	if c.Forecast == 0 {
		c.Forecast = model.ForecastHours
	}
	if c.Features == 0 {
		c.Features = model.FeatureCount
	}
	if c.HiddenUnits == 0 {
		c.HiddenUnits = 64
	}
	if c.Activation == "" {
		c.Activation = "relu"
	}
	if c.Epochs == 0 {
		c.Epochs = 100
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.001
	}
	if c.Split == 0 {
		c.Split = 0.8
	}
	if c.Shuffle == nil {
		t := true
		c.Shuffle = &t
	}
}

// Validate checks ranges.
func (c TrainingConfig) Validate() error {
	if c.History <= 0 || c.Forecast <= 0 || c.Features <= 0 {
		return fmt.Errorf("history, forecast and features must be positive")
	}
	if c.HiddenUnits <= 0 {
		return fmt.Errorf("hidden_units must be positive")
	}
	if _, err := parseActivation(c.Activation); err != nil {
		return err
	}
	if c.Epochs <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf("epochs and batch_size must be positive")
	}
	if !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0) {
		return fmt.Errorf("learning_rate must be positive and finite, got %v", c.LearningRate)
	}
	if !(c.Split > 0 && c.Split <= 1) {
		return fmt.Errorf("split must be in (0,1], got %v", c.Split)
	}
	if c.Patience < 0 || !(c.ClipNorm >= 0) || math.IsInf(c.ClipNorm, 0) {
		return fmt.Errorf("patience and clip_norm must not be negative, got %d and %v", c.Patience, c.ClipNorm)
	}
	return nil
}

// CheckServing reports whether a model built from c fits the advice windows.
// Fit accepts other shapes; only day-ahead models can be served.
func (c TrainingConfig) CheckServing() error {
	if c.History != model.HistoryHours || c.Forecast != model.ForecastHours || c.Features != model.FeatureCount {
		return fmt.Errorf("%w: history %d, forecast %d, features %d (want %d, %d, %d)", ErrIncompatibleModel,
			c.History, c.Forecast, c.Features, model.HistoryHours, model.ForecastHours, model.FeatureCount)
	}
	return nil
}

func (c TrainingConfig) shuffle() bool { return c.Shuffle == nil || *c.Shuffle }

// Config is the forecaster section of the service configuration.
type Config struct {
	// ModelPath is where the trained artifact is persisted.
	ModelPath string `json:"model_path"`
	// TrainingData is the CSV used when no artifact exists yet.
	TrainingData string         `json:"training_data"`
	Training     TrainingConfig `json:"training"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.ModelPath == "" {
		c.ModelPath = "model.json"
	}
	c.Training.SetDefaults()
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("forecaster.model_path is required")
	}
	if err := c.Training.Validate(); err != nil {
		return err
	}
	return c.Training.CheckServing()
}

// LoadTrainingConfig loads a TrainingConfig from a JSON or YAML file.
func LoadTrainingConfig(path string) (TrainingConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return TrainingConfig{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeTrainingConfig(f, ext)
}

// DecodeTrainingConfig reads from r and applies defaults to the result.
func DecodeTrainingConfig(r io.Reader, format string) (TrainingConfig, error) {
	var cfg TrainingConfig
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", format)
	}
	cfg.SetDefaults()
	return cfg, cfg.Validate()
}
