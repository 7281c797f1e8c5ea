package model

import "time"

// Reading is one row of the smart grid dataset: electrical measurements
// sampled every 15 minutes, ordered by timestamp ascending.
type Reading struct {
	Timestamp     time.Time
	Voltage       float64 // V
	Current       float64 // A
	ReactivePower float64 // kVAR
	PowerFactor   float64
	PowerKW       float64 // power consumption, kW
}

// FeatureVector is a Reading augmented with causally-valid predictors.
// Lag and rolling fields reference only the current and earlier readings,
// so a vector is defined only once 4 prior readings exist.
type FeatureVector struct {
	Timestamp     time.Time
	Voltage       float64
	Current       float64
	ReactivePower float64
	PowerFactor   float64

	Hour      int // 0-23
	DayOfWeek int // Monday=0 .. Sunday=6
	Month     int // 1-12
	IsWeekend int // 1 if DayOfWeek in {5,6}

	PowerLag1 float64 // power 1 interval (15 min) earlier
	PowerLag2 float64
	PowerLag4 float64 // 1 hour earlier

	RollMean1h float64 // trailing 4-interval window, inclusive of current
	RollStd1h  float64 // sample (n-1) standard deviation
	RollMax1h  float64

	PowerKW float64 // target: power consumption of this interval
}

// PredictionRecord pairs a held-out feature vector with the model's
// forecast for it. Built once at startup, never mutated afterwards.
type PredictionRecord struct {
	FeatureVector
	PredictedKW float64
}

// TimeRange is an inclusive [Start, End] span of reading timestamps.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// dayLabels is indexed by Monday=0 day-of-week.
var dayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// DayOfWeek converts a time.Time to Monday=0..Sunday=6 numbering.
// Go's time.Weekday starts at Sunday=0, which would shift every
// day-of-week bucket by one.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekendDay reports whether a Monday=0 day-of-week is Saturday or Sunday.
func IsWeekendDay(dow int) bool {
	return dow == 5 || dow == 6
}

// DayLabel returns the short weekday name for a Monday=0 day-of-week.
func DayLabel(dow int) string {
	return dayLabels[dow]
}
