package features

import (
	"fmt"
	"math"

	"load_forecaster/internal/model"
)

// warmup is the number of leading readings with an incomplete lag/rolling
// window. power_lag_4 and the 4-interval rolling window both need 4 prior
// readings, so exactly the first 4 rows are undefined.
const warmup = 4

// window is the trailing rolling window length: 1 hour of 15-minute intervals.
const window = 4

// Engineer derives a feature vector per reading, preserving order.
// Readings must be sorted by timestamp ascending at 15-minute spacing;
// the lag/rolling arithmetic is positional and invalid otherwise.
// The first 4 readings are dropped (incomplete windows), so the result
// has len(readings)-4 rows. Fewer than 5 readings yield an empty result.
func Engineer(readings []model.Reading) []model.FeatureVector {
	if len(readings) <= warmup {
		return nil
	}

	out := make([]model.FeatureVector, 0, len(readings)-warmup)
	for i := warmup; i < len(readings); i++ {
		r := readings[i]
		dow := model.DayOfWeek(r.Timestamp)

		weekend := 0
		if model.IsWeekendDay(dow) {
			weekend = 1
		}

		mean, std, max := rollingStats(readings, i)

		out = append(out, model.FeatureVector{
			Timestamp:     r.Timestamp,
			Voltage:       r.Voltage,
			Current:       r.Current,
			ReactivePower: r.ReactivePower,
			PowerFactor:   r.PowerFactor,
			Hour:          r.Timestamp.Hour(),
			DayOfWeek:     dow,
			Month:         int(r.Timestamp.Month()),
			IsWeekend:     weekend,
			PowerLag1:     readings[i-1].PowerKW,
			PowerLag2:     readings[i-2].PowerKW,
			PowerLag4:     readings[i-4].PowerKW,
			RollMean1h:    mean,
			RollStd1h:     std,
			RollMax1h:     max,
			PowerKW:       r.PowerKW,
		})
	}
	return out
}

// rollingStats computes mean, sample standard deviation and max of the
// trailing window ending at (and including) readings[i].
func rollingStats(readings []model.Reading, i int) (mean, std, max float64) {
	var sum float64
	max = math.Inf(-1)
	for j := i - window + 1; j <= i; j++ {
		v := readings[j].PowerKW
		sum += v
		if v > max {
			max = v
		}
	}
	mean = sum / window

	var ss float64
	for j := i - window + 1; j <= i; j++ {
		d := readings[j].PowerKW - mean
		ss += d * d
	}
	std = math.Sqrt(ss / (window - 1))
	return mean, std, max
}

// Split partitions an ordered feature sequence at floor(n*trainFraction)
// into train and test slices, preserving order. There is deliberately no
// shuffling: a random split would leak future intervals into training.
func Split(fvs []model.FeatureVector, trainFraction float64) (train, test []model.FeatureVector, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, fmt.Errorf("train fraction must be in (0,1), got %g", trainFraction)
	}
	if len(fvs) < 10 {
		return nil, nil, fmt.Errorf("need at least 10 engineered rows to split, got %d", len(fvs))
	}

	cut := int(math.Floor(float64(len(fvs)) * trainFraction))
	return fvs[:cut], fvs[cut:], nil
}
