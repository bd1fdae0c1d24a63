// Package datamodule - Lifecycle glue between the landmark datasets, the
// dataloaders, and an external training orchestrator.
package datamodule

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cspine-ai/go-landmark/transforms"
)

// Config holds the data pipeline knobs. Scalar fields load from YAML;
// transform pipelines are supplied programmatically.
type Config struct {
	// DataRoot is the directory holding annotated studies.
	DataRoot string `yaml:"data_root"`
	// TrainSplit and TestSplit are the two-way partition ratios.
	TrainSplit float64 `yaml:"train_split"`
	TestSplit  float64 `yaml:"test_split"`
	// TrainBatchSize and TestBatchSize are the configured batch sizes
	// before any per-device adjustment.
	TrainBatchSize int `yaml:"train_batch_size"`
	TestBatchSize  int `yaml:"test_batch_size"`
	// NumWorkers is the dataloader worker count per split.
	NumWorkers int `yaml:"num_workers"`
	// PinMemory pre-faults batch memory in the dataloaders.
	PinMemory bool `yaml:"pin_memory"`
	// HeatmapSigma is the Gaussian blob width of rendered labels, in
	// heatmap pixels. Zero uses the default.
	HeatmapSigma float32 `yaml:"heatmap_sigma"`

	// TrainTransforms and TestTransforms are optional augmentation
	// pipelines; nil falls back to the model-input resize.
	TrainTransforms transforms.Compose `yaml:"-"`
	TestTransforms  transforms.Compose `yaml:"-"`
}

// DefaultConfig mirrors the pipeline defaults: a 90/10 split, batch sizes
// 32/64, four workers.
func DefaultConfig() Config {
	return Config{
		TrainSplit:     0.9,
		TestSplit:      0.1,
		TrainBatchSize: 32,
		TestBatchSize:  64,
		NumWorkers:     4,
	}
}

// LoadConfig reads a YAML config file over the defaults.
//
// Arguments:
//   - path: Path to the YAML file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if reading or decoding fails.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "datamodule: read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "datamodule: parse config %s", path)
	}
	return cfg, nil
}

// Validate reports configuration errors that would otherwise surface deep
// inside setup.
func (c Config) Validate() error {
	if c.DataRoot == "" {
		return errors.New("datamodule: data_root is required")
	}
	if c.TrainBatchSize <= 0 {
		return errors.Errorf("datamodule: train_batch_size must be positive, got %d", c.TrainBatchSize)
	}
	if c.TestBatchSize <= 0 {
		return errors.Errorf("datamodule: test_batch_size must be positive, got %d", c.TestBatchSize)
	}
	if c.NumWorkers < 0 {
		return errors.Errorf("datamodule: num_workers must not be negative, got %d", c.NumWorkers)
	}
	sum := c.TrainSplit + c.TestSplit
	if sum < 0.999 || sum > 1.001 {
		return errors.Errorf("datamodule: split ratios sum to %v, want 1", sum)
	}
	return nil
}
