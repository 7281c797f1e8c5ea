package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"load_forecaster/internal/model"
)

// Engine answers read-only aggregation queries over an immutable cache.
// Every query recomputes from the cached table, so results for the same
// asOf date are byte-identical across calls.
type Engine struct {
	cache *Cache
}

func NewEngine(cache *Cache) *Engine {
	return &Engine{cache: cache}
}

// Metrics returns the model accuracy summary computed at startup.
func (e *Engine) Metrics() Metrics {
	return e.cache.Metrics
}

// HourlyPoint is one hour of the recent actual-vs-predicted profile.
// Actual/Predicted are nil when the window had no record for that hour;
// callers must distinguish "no data" from "zero load".
type HourlyPoint struct {
	Hour      int      `json:"hour"`
	Label     string   `json:"label"`
	Actual    *float64 `json:"actual"`
	Predicted *float64 `json:"predicted"`
}

// NextDayPoint is one hour of tomorrow's forecast profile. Confidence is
// a display heuristic (fixed base modulated by hour), not a statistical
// interval. Missing hours report 0, feeding displays that expect bars.
type NextDayPoint struct {
	Hour       int     `json:"hour"`
	Label      string  `json:"label"`
	Predicted  float64 `json:"predicted"`
	Confidence int     `json:"confidence"`
}

// DayForecast is one day of the 7-day peak/average outlook.
type DayForecast struct {
	Date          string   `json:"date"`
	DayLabel      string   `json:"dayLabel"`
	PeakPredicted *float64 `json:"peakPredicted"`
	AvgPredicted  *float64 `json:"avgPredicted"`
	IsWeekend     bool     `json:"isWeekend"`
}

// DailyPeakRow aggregates one calendar date of the test partition.
type DailyPeakRow struct {
	Date       string   `json:"date"`
	PeakKW     *float64 `json:"peakKW"`
	PeakPredKW *float64 `json:"peakPredKW"`
	AvgKW      *float64 `json:"avgKW"`
	AvgPredKW  *float64 `json:"avgPredKW"`
}

// PeakStats summarizes the predicted and actual load across the cache.
type PeakStats struct {
	MaxPredKW *float64 `json:"maxPredKW"`
	AvgPredKW *float64 `json:"avgPredKW"`
	MinPredKW *float64 `json:"minPredKW"`
	MaxActKW  *float64 `json:"maxActKW"`
	AvgActKW  *float64 `json:"avgActKW"`
}

// HistogramBucket is one fixed load band and its record count.
type HistogramBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// PeakInterval is one of the highest predicted 15-minute intervals, with
// the contextual electrical readings for explainability.
type PeakInterval struct {
	Time        string   `json:"time"`
	ActualKW    *float64 `json:"actualKW"`
	PredictedKW *float64 `json:"predictedKW"`
	Voltage     *float64 `json:"voltage"`
	Current     *float64 `json:"current"`
	PowerFactor *float64 `json:"powerFactor"`
}

// PeakAnalysis is the full /peak payload.
type PeakAnalysis struct {
	DailyPeak []DailyPeakRow    `json:"dailyPeak"`
	Stats     PeakStats         `json:"stats"`
	Histogram []HistogramBucket `json:"histogram"`
	Top10     []PeakInterval    `json:"top10"`
}

// recentWindow is 24 hours of 15-minute intervals.
const recentWindow = 96

// confidenceBase anchors the next-day confidence heuristic.
const confidenceBase = 88

// HourlyProfile groups the last 24h of test records (96 intervals) by
// hour-of-day and reports mean actual and mean predicted per hour.
func (e *Engine) HourlyProfile() ([]HourlyPoint, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	records := e.cache.Records
	if len(records) > recentWindow {
		records = records[len(records)-recentWindow:]
	}

	var actualSum, predSum [24]float64
	var counts [24]int
	for _, r := range records {
		actualSum[r.Hour] += r.PowerKW
		predSum[r.Hour] += r.PredictedKW
		counts[r.Hour]++
	}

	profile := make([]HourlyPoint, 24)
	for h := 0; h < 24; h++ {
		p := HourlyPoint{Hour: h, Label: hourLabel(h)}
		if counts[h] > 0 {
			p.Actual = Round4(actualSum[h] / float64(counts[h]))
			p.Predicted = Round4(predSum[h] / float64(counts[h]))
		}
		profile[h] = p
	}
	return profile, nil
}

// NextDayProfile estimates tomorrow's load by proxy-matching the test
// records sharing tomorrow's day-of-week. When no record matches, the
// full cache is used instead — a deliberate policy, not a bug, that
// silently widens the proxy for sparse datasets. The per-hour estimate
// is the median predicted value, which resists outliers better than the
// mean for this forward-looking view.
func (e *Engine) NextDayProfile(asOf time.Time) ([]NextDayPoint, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	tomorrowDow := model.DayOfWeek(asOf.AddDate(0, 0, 1))

	rows := e.matchDayOfWeek(tomorrowDow)
	if len(rows) == 0 {
		rows = e.cache.Records // fallback
	}

	perHour := make([][]float64, 24)
	for _, r := range rows {
		perHour[r.Hour] = append(perHour[r.Hour], r.PredictedKW)
	}

	profile := make([]NextDayPoint, 24)
	for h := 0; h < 24; h++ {
		predicted := 0.0
		if len(perHour[h]) > 0 {
			if m := Round4(median(perHour[h])); m != nil {
				predicted = *m
			}
		}
		profile[h] = NextDayPoint{
			Hour:       h,
			Label:      hourLabel(h),
			Predicted:  predicted,
			Confidence: confidenceBase + h%4,
		}
	}
	return profile, nil
}

// WeeklyForecast reports, for each of the 7 days after asOf, the peak and
// average predicted load of test records sharing that day-of-week. A
// day-of-week absent from the cache reports 0 for both values.
func (e *Engine) WeeklyForecast(asOf time.Time) ([]DayForecast, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	forecast := make([]DayForecast, 0, 7)
	for i := 1; i <= 7; i++ {
		day := asOf.AddDate(0, 0, i)
		dow := model.DayOfWeek(day)

		var peak, avg float64
		if rows := e.matchDayOfWeek(dow); len(rows) > 0 {
			peak = math.Inf(-1)
			var sum float64
			for _, r := range rows {
				if r.PredictedKW > peak {
					peak = r.PredictedKW
				}
				sum += r.PredictedKW
			}
			avg = sum / float64(len(rows))
		}

		forecast = append(forecast, DayForecast{
			Date:          day.Format("2006-01-02"),
			DayLabel:      model.DayLabel(dow),
			PeakPredicted: Round4(peak),
			AvgPredicted:  Round4(avg),
			IsWeekend:     model.IsWeekendDay(dow),
		})
	}
	return forecast, nil
}

// histogramEdges are the closed-open upper bounds of the fixed load bands;
// the last band is open-ended.
var histogramEdges = []float64{2, 4, 6, 8, 10, 12}

var histogramLabels = []string{
	"0-2 kW", "2-4 kW", "4-6 kW", "6-8 kW", "8-10 kW", "10-12 kW", "12+ kW",
}

// PeakAnalysis aggregates the cache by calendar date (most recent 30
// dates), buckets predicted values into fixed load bands, and ranks the
// top 10 predicted intervals.
func (e *Engine) PeakAnalysis() (*PeakAnalysis, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	records := e.cache.Records

	// Daily aggregation keyed by calendar date.
	type dayAgg struct {
		peakAct, peakPred float64
		sumAct, sumPred   float64
		count             int
	}
	days := make(map[string]*dayAgg)
	for _, r := range records {
		key := r.Timestamp.Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &dayAgg{peakAct: math.Inf(-1), peakPred: math.Inf(-1)}
			days[key] = d
		}
		if r.PowerKW > d.peakAct {
			d.peakAct = r.PowerKW
		}
		if r.PredictedKW > d.peakPred {
			d.peakPred = r.PredictedKW
		}
		d.sumAct += r.PowerKW
		d.sumPred += r.PredictedKW
		d.count++
	}

	dates := make([]string, 0, len(days))
	for key := range days {
		dates = append(dates, key)
	}
	sort.Strings(dates)
	if len(dates) > 30 {
		dates = dates[len(dates)-30:]
	}

	dailyPeak := make([]DailyPeakRow, 0, len(dates))
	for _, key := range dates {
		d := days[key]
		dailyPeak = append(dailyPeak, DailyPeakRow{
			Date:       key,
			PeakKW:     Round4(d.peakAct),
			PeakPredKW: Round4(d.peakPred),
			AvgKW:      Round4(d.sumAct / float64(d.count)),
			AvgPredKW:  Round4(d.sumPred / float64(d.count)),
		})
	}

	// Overall stats.
	maxPred, minPred := math.Inf(-1), math.Inf(1)
	maxAct := math.Inf(-1)
	var sumPred, sumAct float64
	for _, r := range records {
		if r.PredictedKW > maxPred {
			maxPred = r.PredictedKW
		}
		if r.PredictedKW < minPred {
			minPred = r.PredictedKW
		}
		if r.PowerKW > maxAct {
			maxAct = r.PowerKW
		}
		sumPred += r.PredictedKW
		sumAct += r.PowerKW
	}
	n := float64(len(records))
	stats := PeakStats{
		MaxPredKW: Round4(maxPred),
		AvgPredKW: Round4(sumPred / n),
		MinPredKW: Round4(minPred),
		MaxActKW:  Round4(maxAct),
		AvgActKW:  Round4(sumAct / n),
	}

	// Histogram over fixed bands. Bounds are closed-open on the lower
	// edge, so exactly 2.0 kW lands in "2-4 kW". Every record counts:
	// anything below the second edge goes into the first band.
	counts := make([]int, len(histogramLabels))
	for _, r := range records {
		counts[bucketIndex(r.PredictedKW)]++
	}
	histogram := make([]HistogramBucket, len(histogramLabels))
	for i, label := range histogramLabels {
		histogram[i] = HistogramBucket{Range: label, Count: counts[i]}
	}

	// Top 10 predicted intervals, stable so ties keep row order.
	byPred := make([]model.PredictionRecord, len(records))
	copy(byPred, records)
	sort.SliceStable(byPred, func(i, j int) bool {
		return byPred[i].PredictedKW > byPred[j].PredictedKW
	})
	if len(byPred) > 10 {
		byPred = byPred[:10]
	}
	top10 := make([]PeakInterval, 0, len(byPred))
	for _, r := range byPred {
		top10 = append(top10, PeakInterval{
			Time:        r.Timestamp.Format("2006-01-02 15:04"),
			ActualKW:    Round4(r.PowerKW),
			PredictedKW: Round4(r.PredictedKW),
			Voltage:     Round4(r.Voltage),
			Current:     Round4(r.Current),
			PowerFactor: Round4(r.PowerFactor),
		})
	}

	return &PeakAnalysis{
		DailyPeak: dailyPeak,
		Stats:     stats,
		Histogram: histogram,
		Top10:     top10,
	}, nil
}

func (e *Engine) check() error {
	if e.cache == nil || len(e.cache.Records) == 0 {
		return fmt.Errorf("prediction cache is empty")
	}
	return nil
}

func (e *Engine) matchDayOfWeek(dow int) []model.PredictionRecord {
	var rows []model.PredictionRecord
	for _, r := range e.cache.Records {
		if r.DayOfWeek == dow {
			rows = append(rows, r)
		}
	}
	return rows
}

func bucketIndex(v float64) int {
	for i, hi := range histogramEdges {
		if v < hi {
			return i
		}
	}
	return len(histogramEdges) // 12+ band
}

// median returns the middle value (or mean of the two middles) of vs.
// vs is copied, never reordered in place.
func median(vs []float64) float64 {
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Round4 rounds to 4 decimal places for response payloads. Non-finite
// values map to nil so they serialize as JSON null instead of being
// coerced to a number.
func Round4(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := math.Round(v*10000) / 10000
	return &r
}

func hourLabel(h int) string {
	return fmt.Sprintf("%02d:00", h)
}
