package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":5050", cfg.Addr)
	assert.Equal(t, 0.8, cfg.TrainFraction)
	assert.NotEmpty(t, cfg.DatasetPath)
	assert.NotEmpty(t, cfg.ModelPath)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
dataset_path: /data/grid.csv
train_fraction: 0.75
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "/data/grid.csv", cfg.DatasetPath)
	assert.Equal(t, 0.75, cfg.TrainFraction)
	// Unset keys keep their defaults.
	assert.Equal(t, "model/forecast_model.json", cfg.ModelPath)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
