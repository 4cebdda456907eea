package main

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// trainConfig carries the hyperparameters for one training run. Zero values
// in a config file fall back to the defaults, so partial files work.
type trainConfig struct {
	Name string `yaml:"name"`

	Steps       int `yaml:"steps"`
	BatchSize   int `yaml:"batch_size"`
	DatasetSize int `yaml:"dataset_size"`

	EncodingDims int `yaml:"encoding_dims"`
	HiddenSize   int `yaml:"hidden_size"`
	Features     int `yaml:"features"`

	GeneratorLR     float64 `yaml:"generator_lr"`
	DiscriminatorLR float64 `yaml:"discriminator_lr"`

	// Balance controller constants.
	InitK  float64 `yaml:"init_k"`
	Lambda float64 `yaml:"lambda"`
	Gamma  float64 `yaml:"gamma"`

	// Step decay of the discriminator learning rate. A zero step size keeps
	// the rate constant.
	LRStepSize int     `yaml:"lr_step_size"`
	LRGamma    float64 `yaml:"lr_gamma"`

	Seed int64 `yaml:"seed"`
}

func defaultTrainConfig() trainConfig {
	return trainConfig{
		Name:            "boundary-equilibrium-demo",
		Steps:           200,
		BatchSize:       32,
		DatasetSize:     512,
		EncodingDims:    16,
		HiddenSize:      64,
		Features:        32,
		GeneratorLR:     0.001,
		DiscriminatorLR: 0.001,
		InitK:           0.0,
		Lambda:          0.001,
		Gamma:           0.75,
		LRStepSize:      0,
		LRGamma:         0.5,
		Seed:            42,
	}
}

// loadTrainConfig reads a YAML config file over the defaults.
func loadTrainConfig(path string) (trainConfig, error) {
	config := defaultTrainConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config yaml: %w", err)
	}
	return config, nil
}

func (c trainConfig) validate() error {
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.DatasetSize < c.BatchSize {
		return fmt.Errorf("dataset size %d is smaller than batch size %d", c.DatasetSize, c.BatchSize)
	}
	if c.EncodingDims <= 0 || c.HiddenSize <= 0 || c.Features <= 0 {
		return fmt.Errorf("model dimensions must be positive, got encoding %d, hidden %d, features %d",
			c.EncodingDims, c.HiddenSize, c.Features)
	}
	if c.GeneratorLR <= 0 || c.DiscriminatorLR <= 0 {
		return fmt.Errorf("learning rates must be positive, got generator %g, discriminator %g",
			c.GeneratorLR, c.DiscriminatorLR)
	}
	return nil
}
