package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"load_forecaster/internal/api"
	"load_forecaster/internal/config"
	"load_forecaster/internal/features"
	"load_forecaster/internal/forecast"
	"load_forecaster/internal/ingest"
	"load_forecaster/internal/model"
	"load_forecaster/internal/predictor"
	"load_forecaster/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	datasetPath := flag.String("dataset", "", "path to smart grid dataset CSV (overrides config)")
	modelPath := flag.String("model", "", "path to model artifact JSON (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *datasetPath != "" {
		cfg.DatasetPath = *datasetPath
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}

	// Load model artifact
	log.Printf("Loading model from %s...", cfg.ModelPath)
	loadPredictor, err := predictor.LoadFile(cfg.ModelPath)
	if err != nil {
		log.Fatalf("Failed to load model: %v (run cmd/train-model first)", err)
	}

	// Load dataset
	log.Printf("Loading dataset from %s...", cfg.DatasetPath)
	readings, tr, err := loadDataset(cfg.DatasetPath, &ingest.SmartGridParser{})
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Data loaded: %d readings, %s to %s", len(readings),
		tr.Start.Format("2006-01-02"), tr.End.Format("2006-01-02"))

	// The serving pipeline must match training exactly: same feature
	// engineering, same ordered split. Anything else silently skews the
	// evaluation metrics.
	engineered := features.Engineer(readings)
	train, test, err := features.Split(engineered, cfg.TrainFraction)
	if err != nil {
		log.Fatalf("Failed to split dataset: %v", err)
	}
	log.Printf("Engineered %d rows: %d train, %d test", len(engineered), len(train), len(test))

	// One-shot batch inference; all queries read this immutable cache.
	cache, err := forecast.Evaluate(loadPredictor.Predict, test, len(train))
	if err != nil {
		log.Fatalf("Failed to evaluate model: %v", err)
	}
	m := cache.Metrics
	log.Printf("Model evaluated: MAE=%.4f RMSE=%.4f R2=%.4f", m.MAE, m.RMSE, m.R2)

	engine := forecast.NewEngine(cache)

	// Routes
	handler := api.New(engine, time.Now)
	router := handler.Router()

	hub := ws.NewHub()
	router.Handle("/ws", ws.NewHandler(hub, engine, tr, time.Now))

	log.Printf("Starting server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatal(err)
	}
}

// loadDataset parses the dataset CSV and returns its readings and time range.
func loadDataset(path string, parser ingest.Parser) ([]model.Reading, model.TimeRange, error) {
	var tr model.TimeRange

	f, err := os.Open(path)
	if err != nil {
		return nil, tr, err
	}
	defer f.Close()

	readings, err := parser.Parse(f)
	if err != nil {
		return nil, tr, err
	}
	if len(readings) == 0 {
		return nil, tr, fmt.Errorf("dataset contains no parseable readings")
	}

	tr.Start = readings[0].Timestamp
	tr.End = readings[len(readings)-1].Timestamp
	return readings, tr, nil
}
