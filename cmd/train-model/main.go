package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"load_forecaster/internal/features"
	"load_forecaster/internal/forecast"
	"load_forecaster/internal/ingest"
	"load_forecaster/internal/predictor"
)

func main() {
	datasetPath := flag.String("dataset", "data/smart_grid_dataset.csv", "path to smart grid dataset CSV")
	outputPath := flag.String("output", "model/forecast_model.json", "path to write model artifact JSON")
	trainFraction := flag.Float64("train-fraction", 0.8, "fraction of ordered rows used for training")
	epochs := flag.Int("epochs", 200, "training epochs")
	lr := flag.Float64("lr", 0.001, "learning rate")
	batchSize := flag.Int("batch-size", 64, "mini-batch size")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	f, err := os.Open(*datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening dataset: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	parser := &ingest.SmartGridParser{}
	readings, err := parser.Parse(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Parsed %d readings\n", len(readings))

	// Same pipeline and split the server uses at startup. The test slice
	// trained against here is the exact slice evaluated at serving time.
	engineered := features.Engineer(readings)
	train, test, err := features.Split(engineered, *trainFraction)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error splitting dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Engineered %d rows: %d train, %d test\n", len(engineered), len(train), len(test))

	cfg := predictor.TrainConfig{
		LearningRate: *lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		BatchSize:    *batchSize,
		Epochs:       *epochs,
	}

	fmt.Printf("Training network (%d epochs, lr=%g, batch=%d)...\n", cfg.Epochs, cfg.LearningRate, cfg.BatchSize)
	p, losses := predictor.Train(train, cfg, *seed)
	if len(losses) > 0 {
		fmt.Printf("Final training loss: %.6f (RMSE %.4f kW normalized)\n",
			losses[len(losses)-1], math.Sqrt(losses[len(losses)-1]))
	}

	// Held-out accuracy, same formulas the server reports.
	cache, err := forecast.Evaluate(p.Predict, test, len(train))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error evaluating model: %v\n", err)
		os.Exit(1)
	}
	m := cache.Metrics
	fmt.Printf("Held-out: MAE=%.4f kW  RMSE=%.4f kW  R2=%.4f\n", m.MAE, m.RMSE, m.R2)

	data, err := p.Save()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error serializing model: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outputPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Model saved to %s\n", *outputPath)
}
