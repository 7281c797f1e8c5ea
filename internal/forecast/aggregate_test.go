package forecast

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"load_forecaster/internal/model"
)

// recordAt builds one prediction record with time fields derived from ts.
func recordAt(ts time.Time, actual, predicted float64) model.PredictionRecord {
	return model.PredictionRecord{
		FeatureVector: model.FeatureVector{
			Timestamp:   ts,
			Voltage:     230.5,
			Current:     12.25,
			PowerFactor: 0.95,
			Hour:        ts.Hour(),
			DayOfWeek:   model.DayOfWeek(ts),
			Month:       int(ts.Month()),
			PowerKW:     actual,
		},
		PredictedKW: predicted,
	}
}

func newTestEngine(records []model.PredictionRecord) *Engine {
	return NewEngine(&Cache{Records: records})
}

// monday is a fixed reference date (2024-06-03 is a Monday).
var monday = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func TestHourlyProfile_NullsForMissingHours(t *testing.T) {
	// Records only in hours 0 and 1.
	records := []model.PredictionRecord{
		recordAt(monday, 2.0, 2.5),
		recordAt(monday.Add(15*time.Minute), 4.0, 3.5),
		recordAt(monday.Add(time.Hour), 6.0, 6.0),
	}

	profile, err := newTestEngine(records).HourlyProfile()
	require.NoError(t, err)
	require.Len(t, profile, 24)

	require.NotNil(t, profile[0].Actual)
	require.NotNil(t, profile[0].Predicted)
	assert.InDelta(t, 3.0, *profile[0].Actual, 1e-9)
	assert.InDelta(t, 3.0, *profile[0].Predicted, 1e-9)

	require.NotNil(t, profile[1].Actual)
	assert.InDelta(t, 6.0, *profile[1].Actual, 1e-9)

	for h := 2; h < 24; h++ {
		assert.Nil(t, profile[h].Actual, "hour %d", h)
		assert.Nil(t, profile[h].Predicted, "hour %d", h)
	}

	assert.Equal(t, "00:00", profile[0].Label)
	assert.Equal(t, "23:00", profile[23].Label)
}

func TestHourlyProfile_UsesLast96Records(t *testing.T) {
	// 100 records at 15-minute spacing. The first 4 (hour 0, predicted
	// 100.0) fall outside the trailing 96-record window; hour 0 is served
	// by the next day's records (predicted 1.0) instead.
	records := make([]model.PredictionRecord, 100)
	for i := range records {
		ts := monday.Add(time.Duration(i) * 15 * time.Minute)
		predicted := 1.0
		if i < 4 {
			predicted = 100.0
		}
		records[i] = recordAt(ts, 1.0, predicted)
	}

	profile, err := newTestEngine(records).HourlyProfile()
	require.NoError(t, err)

	for h := 0; h < 24; h++ {
		require.NotNil(t, profile[h].Predicted, "hour %d", h)
		assert.InDelta(t, 1.0, *profile[h].Predicted, 1e-9, "hour %d", h)
	}
}

func TestNextDayProfile_MedianByMatchingDayOfWeek(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	wednesday := monday.AddDate(0, 0, 2)

	records := []model.PredictionRecord{
		// Tuesday hour 0: median of {1, 2, 100} is 2.
		recordAt(tuesday, 2.0, 1.0),
		recordAt(tuesday.Add(15*time.Minute), 2.0, 2.0),
		recordAt(tuesday.Add(30*time.Minute), 2.0, 100.0),
		// Tuesday hour 3.
		recordAt(tuesday.Add(3*time.Hour), 2.0, 5.0),
		// Wednesday rows must not contribute.
		recordAt(wednesday, 2.0, 999.0),
	}

	profile, err := newTestEngine(records).NextDayProfile(monday)
	require.NoError(t, err)
	require.Len(t, profile, 24)

	assert.InDelta(t, 2.0, profile[0].Predicted, 1e-9)
	assert.InDelta(t, 5.0, profile[3].Predicted, 1e-9)

	// Hours without matching records report 0, not null: this feeds
	// displays expecting numeric bars.
	assert.Zero(t, profile[1].Predicted)
	assert.Zero(t, profile[23].Predicted)

	for h := 0; h < 24; h++ {
		assert.Equal(t, 88+h%4, profile[h].Confidence, "hour %d", h)
	}
}

func TestNextDayProfile_EvenMedian(t *testing.T) {
	tuesday := monday.AddDate(0, 0, 1)
	records := []model.PredictionRecord{
		recordAt(tuesday, 2.0, 1.0),
		recordAt(tuesday.Add(15*time.Minute), 2.0, 3.0),
	}

	profile, err := newTestEngine(records).NextDayProfile(monday)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, profile[0].Predicted, 1e-9)
}

func TestNextDayProfile_FallbackToFullTable(t *testing.T) {
	// Only Friday records, but tomorrow is Tuesday: the engine falls back
	// to the full cached table rather than returning an all-zero profile.
	friday := monday.AddDate(0, 0, 4)
	records := []model.PredictionRecord{
		recordAt(friday, 2.0, 7.0),
		recordAt(friday.Add(15*time.Minute), 2.0, 9.0),
	}

	profile, err := newTestEngine(records).NextDayProfile(monday)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, profile[0].Predicted, 1e-9)
}

func TestWeeklyForecast(t *testing.T) {
	// Only Monday records: predicted {2, 4}.
	records := []model.PredictionRecord{
		recordAt(monday, 2.0, 2.0),
		recordAt(monday.Add(15*time.Minute), 2.0, 4.0),
	}

	forecast, err := newTestEngine(records).WeeklyForecast(monday)
	require.NoError(t, err)
	require.Len(t, forecast, 7)

	// Days run Tue..Mon; only the trailing Monday has data.
	assert.Equal(t, "2024-06-04", forecast[0].Date)
	assert.Equal(t, "Tue", forecast[0].DayLabel)
	require.NotNil(t, forecast[0].PeakPredicted)
	assert.Zero(t, *forecast[0].PeakPredicted)
	assert.Zero(t, *forecast[0].AvgPredicted)

	last := forecast[6]
	assert.Equal(t, "2024-06-10", last.Date)
	assert.Equal(t, "Mon", last.DayLabel)
	require.NotNil(t, last.PeakPredicted)
	assert.InDelta(t, 4.0, *last.PeakPredicted, 1e-9)
	assert.InDelta(t, 3.0, *last.AvgPredicted, 1e-9)

	for _, day := range forecast {
		wantWeekend := day.DayLabel == "Sat" || day.DayLabel == "Sun"
		assert.Equal(t, wantWeekend, day.IsWeekend, "%s", day.Date)
	}
}

func TestPeakAnalysis_Histogram(t *testing.T) {
	predicted := []float64{-1, 0, 1.9999, 2.0, 3.5, 4, 12, 15}
	records := make([]model.PredictionRecord, len(predicted))
	for i, p := range predicted {
		records[i] = recordAt(monday.Add(time.Duration(i)*15*time.Minute), 2.0, p)
	}

	analysis, err := newTestEngine(records).PeakAnalysis()
	require.NoError(t, err)
	require.Len(t, analysis.Histogram, 7)

	wantRanges := []string{"0-2 kW", "2-4 kW", "4-6 kW", "6-8 kW", "8-10 kW", "10-12 kW", "12+ kW"}
	wantCounts := []int{3, 2, 1, 0, 0, 0, 2}
	total := 0
	for i, b := range analysis.Histogram {
		assert.Equal(t, wantRanges[i], b.Range)
		assert.Equal(t, wantCounts[i], b.Count, "bucket %s", b.Range)
		total += b.Count
	}
	assert.Equal(t, len(records), total)
}

func TestPeakAnalysis_Top10StableOrder(t *testing.T) {
	// 12 records; two pairs tie on predicted value.
	predicted := []float64{5, 9, 9, 3, 7, 1, 7, 8, 2, 6, 4, 0.5}
	records := make([]model.PredictionRecord, len(predicted))
	for i, p := range predicted {
		records[i] = recordAt(monday.Add(time.Duration(i)*15*time.Minute), 2.0, p)
	}

	analysis, err := newTestEngine(records).PeakAnalysis()
	require.NoError(t, err)
	require.Len(t, analysis.Top10, 10)

	for i := 1; i < len(analysis.Top10); i++ {
		prev := *analysis.Top10[i-1].PredictedKW
		cur := *analysis.Top10[i].PredictedKW
		assert.GreaterOrEqual(t, prev, cur, "position %d", i)
	}

	// The tied 9s keep original row order: index 1 before index 2.
	assert.Equal(t, "2024-06-03 00:15", analysis.Top10[0].Time)
	assert.Equal(t, "2024-06-03 00:30", analysis.Top10[1].Time)

	// Contextual readings ride along for explainability.
	require.NotNil(t, analysis.Top10[0].Voltage)
	assert.InDelta(t, 230.5, *analysis.Top10[0].Voltage, 1e-9)
	assert.InDelta(t, 0.95, *analysis.Top10[0].PowerFactor, 1e-9)
}

func TestPeakAnalysis_DailyPeakLimit30(t *testing.T) {
	// 35 calendar days, one record each.
	records := make([]model.PredictionRecord, 35)
	for i := range records {
		records[i] = recordAt(monday.AddDate(0, 0, i).Add(12*time.Hour), float64(i), float64(i)+0.5)
	}

	analysis, err := newTestEngine(records).PeakAnalysis()
	require.NoError(t, err)
	require.Len(t, analysis.DailyPeak, 30)

	// Most recent 30 dates, ascending.
	assert.Equal(t, monday.AddDate(0, 0, 5).Format("2006-01-02"), analysis.DailyPeak[0].Date)
	assert.Equal(t, monday.AddDate(0, 0, 34).Format("2006-01-02"), analysis.DailyPeak[29].Date)

	last := analysis.DailyPeak[29]
	require.NotNil(t, last.PeakKW)
	assert.InDelta(t, 34.0, *last.PeakKW, 1e-9)
	assert.InDelta(t, 34.5, *last.PeakPredKW, 1e-9)
}

func TestPeakAnalysis_DailyAggregates(t *testing.T) {
	day := monday
	records := []model.PredictionRecord{
		recordAt(day, 2.0, 3.0),
		recordAt(day.Add(15*time.Minute), 6.0, 5.0),
	}

	analysis, err := newTestEngine(records).PeakAnalysis()
	require.NoError(t, err)
	require.Len(t, analysis.DailyPeak, 1)

	row := analysis.DailyPeak[0]
	assert.InDelta(t, 6.0, *row.PeakKW, 1e-9)
	assert.InDelta(t, 5.0, *row.PeakPredKW, 1e-9)
	assert.InDelta(t, 4.0, *row.AvgKW, 1e-9)
	assert.InDelta(t, 4.0, *row.AvgPredKW, 1e-9)

	stats := analysis.Stats
	assert.InDelta(t, 5.0, *stats.MaxPredKW, 1e-9)
	assert.InDelta(t, 3.0, *stats.MinPredKW, 1e-9)
	assert.InDelta(t, 4.0, *stats.AvgPredKW, 1e-9)
	assert.InDelta(t, 6.0, *stats.MaxActKW, 1e-9)
	assert.InDelta(t, 4.0, *stats.AvgActKW, 1e-9)
}

func TestQueries_Idempotent(t *testing.T) {
	records := make([]model.PredictionRecord, 40)
	for i := range records {
		ts := monday.Add(time.Duration(i) * 15 * time.Minute)
		records[i] = recordAt(ts, float64(i%7), float64((i*3)%11))
	}
	engine := newTestEngine(records)

	marshal := func(v any, err error) []byte {
		require.NoError(t, err)
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return b
	}

	assert.Equal(t, marshal(engine.HourlyProfile()), marshal(engine.HourlyProfile()))
	assert.Equal(t, marshal(engine.NextDayProfile(monday)), marshal(engine.NextDayProfile(monday)))
	assert.Equal(t, marshal(engine.WeeklyForecast(monday)), marshal(engine.WeeklyForecast(monday)))
	assert.Equal(t, marshal(engine.PeakAnalysis()), marshal(engine.PeakAnalysis()))
}

func TestQueries_EmptyCache(t *testing.T) {
	engine := NewEngine(&Cache{})

	_, err := engine.HourlyProfile()
	assert.Error(t, err)
	_, err = engine.NextDayProfile(monday)
	assert.Error(t, err)
	_, err = engine.WeeklyForecast(monday)
	assert.Error(t, err)
	_, err = engine.PeakAnalysis()
	assert.Error(t, err)
}

func TestRound4(t *testing.T) {
	assert.Nil(t, Round4(math.NaN()))
	assert.Nil(t, Round4(math.Inf(1)))
	assert.Nil(t, Round4(math.Inf(-1)))

	require.NotNil(t, Round4(1.23456789))
	assert.InDelta(t, 1.2346, *Round4(1.23456789), 1e-12)
	assert.InDelta(t, -0.0001, *Round4(-0.00005), 1e-12)
	assert.Zero(t, *Round4(0))
}

func TestMedian(t *testing.T) {
	assert.InDelta(t, 2.0, median([]float64{100, 1, 2}), 1e-9)
	assert.InDelta(t, 2.5, median([]float64{4, 1, 2, 3}), 1e-9)
	assert.InDelta(t, 7.0, median([]float64{7}), 1e-9)

	// Input slice must not be reordered.
	vs := []float64{3, 1, 2}
	median(vs)
	assert.Equal(t, []float64{3, 1, 2}, vs)
}
