package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration. Flags in cmd/server override
// whatever the YAML file provides.
type Config struct {
	Addr          string  `yaml:"addr"`
	DatasetPath   string  `yaml:"dataset_path"`
	ModelPath     string  `yaml:"model_path"`
	TrainFraction float64 `yaml:"train_fraction"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:          ":5050",
		DatasetPath:   "data/smart_grid_dataset.csv",
		ModelPath:     "model/forecast_model.json",
		TrainFraction: 0.8,
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
