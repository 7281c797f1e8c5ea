package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"load_forecaster/internal/model"
)

// NumFeatures is the width of the encoded input vector.
const NumFeatures = 14

// Normalization holds per-feature and target z-score parameters.
type Normalization struct {
	FeatureMean []float64 `json:"feature_mean"`
	FeatureStd  []float64 `json:"feature_std"`
	PowerMean   float64   `json:"power_mean"`
	PowerStd    float64   `json:"power_std"`
}

// SavedModel is the JSON-serializable model artifact.
type SavedModel struct {
	Net           *Net          `json:"network"`
	Normalization Normalization `json:"normalization"`
}

// LoadPredictor predicts power consumption (kW) for one 15-minute interval
// from an engineered feature vector.
type LoadPredictor struct {
	net  *Net
	norm Normalization
}

// EncodeFeatures flattens a feature vector into the model's input order.
// The order is part of the model artifact contract: a trained network is
// only valid against inputs encoded identically.
func EncodeFeatures(fv model.FeatureVector) []float64 {
	return []float64{
		fv.Voltage,
		fv.Current,
		fv.ReactivePower,
		fv.PowerFactor,
		float64(fv.Hour),
		float64(fv.DayOfWeek),
		float64(fv.Month),
		float64(fv.IsWeekend),
		fv.PowerLag1,
		fv.PowerLag2,
		fv.PowerLag4,
		fv.RollMean1h,
		fv.RollStd1h,
		fv.RollMax1h,
	}
}

// ComputeNormalization computes z-score parameters over training vectors.
func ComputeNormalization(fvs []model.FeatureVector) Normalization {
	n := float64(len(fvs))
	norm := Normalization{
		FeatureMean: make([]float64, NumFeatures),
		FeatureStd:  make([]float64, NumFeatures),
	}

	var powerSum float64
	for _, fv := range fvs {
		for i, v := range EncodeFeatures(fv) {
			norm.FeatureMean[i] += v
		}
		powerSum += fv.PowerKW
	}
	for i := range norm.FeatureMean {
		norm.FeatureMean[i] /= n
	}
	norm.PowerMean = powerSum / n

	var powerVar float64
	featVar := make([]float64, NumFeatures)
	for _, fv := range fvs {
		for i, v := range EncodeFeatures(fv) {
			d := v - norm.FeatureMean[i]
			featVar[i] += d * d
		}
		dp := fv.PowerKW - norm.PowerMean
		powerVar += dp * dp
	}
	for i := range featVar {
		norm.FeatureStd[i] = sqrtOrOne(featVar[i] / n)
	}
	norm.PowerStd = sqrtOrOne(powerVar / n)

	return norm
}

func (nm Normalization) encode(fv model.FeatureVector) []float64 {
	x := EncodeFeatures(fv)
	for i := range x {
		x[i] = (x[i] - nm.FeatureMean[i]) / nm.FeatureStd[i]
	}
	return x
}

// Train fits a predictor on the (ordered) training partition and returns
// it along with per-epoch losses.
func Train(train []model.FeatureVector, cfg TrainConfig, seed uint64) (*LoadPredictor, []float64) {
	rng := rand.New(rand.NewPCG(seed, 0))
	norm := ComputeNormalization(train)

	X := make([][]float64, len(train))
	Y := make([][]float64, len(train))
	for i, fv := range train {
		X[i] = norm.encode(fv)
		Y[i] = []float64{(fv.PowerKW - norm.PowerMean) / norm.PowerStd}
	}

	net := NewNet([]int{NumFeatures, 32, 16, 1}, rng)
	losses := net.Train(X, Y, cfg, rng)

	return &LoadPredictor{net: net, norm: norm}, losses
}

// Predict returns the forecast power consumption in kW.
func (p *LoadPredictor) Predict(fv model.FeatureVector) float64 {
	normPred := p.net.Forward(p.norm.encode(fv))[0]
	return normPred*p.norm.PowerStd + p.norm.PowerMean
}

// Norm returns the normalization parameters used during training.
func (p *LoadPredictor) Norm() Normalization {
	return p.norm
}

// Save serializes the model artifact to JSON.
func (p *LoadPredictor) Save() ([]byte, error) {
	m := SavedModel{
		Net:           p.net,
		Normalization: p.norm,
	}
	return json.MarshalIndent(m, "", "  ")
}

// Load deserializes a model artifact from JSON.
func Load(data []byte) (*LoadPredictor, error) {
	var m SavedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Net == nil || len(m.Net.Layers) == 0 {
		return nil, fmt.Errorf("model artifact has no network layers")
	}
	if len(m.Normalization.FeatureMean) != NumFeatures || len(m.Normalization.FeatureStd) != NumFeatures {
		return nil, fmt.Errorf("model artifact normalization width mismatch: want %d features", NumFeatures)
	}
	return &LoadPredictor{net: m.Net, norm: m.Normalization}, nil
}

// LoadFile reads and deserializes a model artifact.
func LoadFile(path string) (*LoadPredictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}
	p, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("parsing model artifact %s: %w", path, err)
	}
	return p, nil
}

// sqrtOrOne guards against a zero std collapsing the z-score to ±Inf.
func sqrtOrOne(variance float64) float64 {
	std := math.Sqrt(variance)
	if std < 1e-10 {
		return 1
	}
	return std
}
