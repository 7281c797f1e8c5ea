package forecast

import (
	"fmt"
	"math"

	"load_forecaster/internal/model"
)

// PredictFunc is the opaque model capability: one engineered feature
// vector in, one forecast power value (kW) out.
type PredictFunc func(model.FeatureVector) float64

// Metrics summarizes model accuracy over the held-out test partition.
type Metrics struct {
	MAE       float64
	RMSE      float64
	R2        float64 // clamped to >= 0 for display
	TrainSize int
	TestSize  int
}

// Cache holds the batch inference result over the test partition. It is
// built exactly once during startup and never mutated afterwards, so all
// aggregation queries can read it concurrently without locking.
type Cache struct {
	Records []model.PredictionRecord
	Metrics Metrics
}

// Evaluate runs batch inference over the ordered test partition and
// computes summary metrics. trainSize is reported alongside so callers
// can surface the full split shape.
//
// An unavailable model or an empty test partition is an initialization
// error: the service must not start with a partially built cache.
func Evaluate(predict PredictFunc, test []model.FeatureVector, trainSize int) (*Cache, error) {
	if predict == nil {
		return nil, fmt.Errorf("model predict capability is unavailable")
	}
	if len(test) == 0 {
		return nil, fmt.Errorf("test partition is empty")
	}

	records := make([]model.PredictionRecord, len(test))
	for i, fv := range test {
		records[i] = model.PredictionRecord{
			FeatureVector: fv,
			PredictedKW:   predict(fv),
		}
	}

	n := float64(len(records))

	var absSum, sqSum, actualSum float64
	for _, r := range records {
		diff := r.PowerKW - r.PredictedKW
		absSum += math.Abs(diff)
		sqSum += diff * diff
		actualSum += r.PowerKW
	}
	actualMean := actualSum / n

	var ssTot float64
	for _, r := range records {
		d := r.PowerKW - actualMean
		ssTot += d * d
	}

	// R² below zero means the model loses to a constant-mean baseline;
	// it is floored at 0 for display rather than reported negative.
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - sqSum/ssTot
	}
	if r2 < 0 {
		r2 = 0
	}

	return &Cache{
		Records: records,
		Metrics: Metrics{
			MAE:       absSum / n,
			RMSE:      math.Sqrt(sqSum / n),
			R2:        r2,
			TrainSize: trainSize,
			TestSize:  len(records),
		},
	}, nil
}
