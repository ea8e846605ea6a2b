package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func reading(percent, d int) ThresholdReading {
	return ThresholdReading{
		Platform:         PlatformZapier,
		ThresholdPercent: percent,
		ObservedAt:       day(d),
	}
}

func TestPredictOverageNeedsTwoReadings(t *testing.T) {
	for _, readings := range [][]ThresholdReading{nil, {reading(50, 1)}} {
		p := PredictOverage(PlatformZapier, readings, day(10))
		assert.Equal(t, ConfidenceLow, p.Confidence)
		assert.Equal(t, "Need more data points", p.Message)
		assert.Equal(t, len(readings), p.DataPoints)
		assert.Nil(t, p.ProjectedBreachDate)
	}
}

func TestPredictOverageNoProgression(t *testing.T) {
	readings := []ThresholdReading{reading(80, 1), reading(80, 5), reading(70, 9)}

	p := PredictOverage(PlatformZapier, readings, day(9))

	assert.Equal(t, ConfidenceLow, p.Confidence)
	assert.Equal(t, "Cannot calculate velocity - no consistent progression", p.Message)
	assert.Equal(t, 3, p.DataPoints)
	assert.Nil(t, p.VelocityPerDay)
}

func TestPredictOverageProjectsBreach(t *testing.T) {
	// 50% to 80% over ten days is 3%/day; 20% remaining rounds up to 7 days
	readings := []ThresholdReading{reading(50, 1), reading(80, 11)}

	p := PredictOverage(PlatformZapier, readings, day(11))

	assert.Equal(t, ConfidenceLow, p.Confidence, "a single velocity sample stays low confidence")
	require.NotNil(t, p.VelocityPerDay)
	assert.InDelta(t, 3.0, *p.VelocityPerDay, 0.001)
	require.NotNil(t, p.ProjectedBreachDate)
	assert.Equal(t, day(18), *p.ProjectedBreachDate)
	assert.Equal(t, 7, p.DaysUntilBreach)
	assert.Equal(t, StatusCritical, p.Status)
	assert.Equal(t, "Predicted overage in 7 days", p.Message)
	assert.Equal(t, 80, p.LastThreshold)
	assert.Equal(t, day(11), p.LastReadingAt)
}

func TestPredictOverageConfidenceTiers(t *testing.T) {
	// Steady 1%/day starting at 50
	series := func(points int) []ThresholdReading {
		readings := make([]ThresholdReading, 0, points)
		for i := 0; i < points; i++ {
			readings = append(readings, reading(50+i, 1+i))
		}
		return readings
	}

	medium := PredictOverage(PlatformZapier, series(4), day(4))
	assert.Equal(t, ConfidenceMedium, medium.Confidence)

	high := PredictOverage(PlatformZapier, series(6), day(6))
	assert.Equal(t, ConfidenceHigh, high.Confidence)
	assert.Equal(t, StatusHealthy, high.Status)
}

func TestPredictOverageStatusWarning(t *testing.T) {
	// 2%/day with 20% remaining breaches in ten days
	readings := []ThresholdReading{reading(70, 1), reading(80, 6)}

	p := PredictOverage(PlatformZapier, readings, day(6))

	assert.Equal(t, StatusWarning, p.Status)
	assert.Equal(t, 10, p.DaysUntilBreach)
}

func TestPredictOverageStatusOverageWhenProjectionPassed(t *testing.T) {
	readings := []ThresholdReading{reading(70, 1), reading(80, 6)}

	p := PredictOverage(PlatformZapier, readings, day(30))

	assert.Equal(t, StatusOverage, p.Status)
	assert.LessOrEqual(t, p.DaysUntilBreach, 0)
}

func TestPredictOverageAlreadyAtLimit(t *testing.T) {
	readings := []ThresholdReading{reading(90, 1), reading(100, 5)}

	p := PredictOverage(PlatformZapier, readings, day(5))

	assert.Equal(t, StatusOverage, p.Status)
	assert.Equal(t, "Already at or past limit", p.Message)
	assert.Equal(t, ConfidenceMedium, p.Confidence)
	require.NotNil(t, p.ProjectedBreachDate)
	assert.Equal(t, day(5), *p.ProjectedBreachDate)

	rich := []ThresholdReading{reading(70, 1), reading(80, 2), reading(90, 3), reading(100, 4)}
	p = PredictOverage(PlatformZapier, rich, day(4))
	assert.Equal(t, ConfidenceHigh, p.Confidence)
}

func TestPredictOverageToleratesUnsortedInput(t *testing.T) {
	readings := []ThresholdReading{reading(80, 11), reading(50, 1)}

	p := PredictOverage(PlatformZapier, readings, day(11))

	require.NotNil(t, p.VelocityPerDay)
	assert.InDelta(t, 3.0, *p.VelocityPerDay, 0.001)
	assert.Equal(t, 80, p.LastThreshold)
}

func TestVelocitiesSkipsRegressionsAndStagnation(t *testing.T) {
	readings := []ThresholdReading{
		reading(50, 1),
		reading(50, 2), // no change
		reading(60, 3),
		reading(55, 4), // reset
		reading(65, 5),
	}

	velocities := Velocities(readings)

	require.Len(t, velocities, 2)
	assert.InDelta(t, 10.0, velocities[0], 0.001)
	assert.InDelta(t, 10.0, velocities[1], 0.001)
}

func TestVelocitiesSkipsZeroDayGaps(t *testing.T) {
	readings := []ThresholdReading{reading(50, 1), reading(60, 1)}

	assert.Empty(t, Velocities(readings))
}

func TestPredictAll(t *testing.T) {
	byPlatform := map[Platform][]ThresholdReading{
		PlatformZapier: {reading(50, 1), reading(80, 11)},
		PlatformMake:   {reading(40, 1)},
	}

	predictions := PredictAll(byPlatform, day(11))

	require.Len(t, predictions, 2)
	assert.Equal(t, StatusCritical, predictions[PlatformZapier].Status)
	assert.Equal(t, "Need more data points", predictions[PlatformMake].Message)
}

func TestAnalyzeTrend(t *testing.T) {
	tests := []struct {
		name       string
		velocities []float64
		want       TrendDirection
	}{
		{"too few samples", []float64{1, 2}, TrendInsufficient},
		{"accelerating", []float64{1, 1, 2}, TrendAccelerating},
		{"decelerating", []float64{2, 2, 1}, TrendDecelerating},
		{"stable", []float64{1, 1, 1, 1}, TrendStable},
		{"zero early average", []float64{0, 1, 1}, TrendInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnalyzeTrend(tt.velocities))
		})
	}
}

func monthReading(percent int, month time.Month, d int) ThresholdReading {
	return ThresholdReading{
		Platform:         PlatformZapier,
		ThresholdPercent: percent,
		ObservedAt:       time.Date(2025, month, d, 0, 0, 0, 0, time.UTC),
	}
}

func TestDetectSeasonalityNeedsHistory(t *testing.T) {
	report := DetectSeasonality([]ThresholdReading{reading(50, 1)})

	assert.False(t, report.Seasonal)
	assert.Equal(t, "Need more data for seasonality analysis", report.Message)
}

func TestDetectSeasonalityNeedsMonthSpread(t *testing.T) {
	var readings []ThresholdReading
	for _, month := range []time.Month{time.January, time.February, time.March} {
		for d := 1; d <= 4; d++ {
			readings = append(readings, monthReading(50, month, d))
		}
	}

	report := DetectSeasonality(readings)

	assert.False(t, report.Seasonal)
	assert.Equal(t, "Not enough monthly data", report.Message)
}

func TestDetectSeasonalityFlatUsage(t *testing.T) {
	var readings []ThresholdReading
	for _, month := range []time.Month{time.January, time.February, time.March, time.April, time.May, time.June} {
		readings = append(readings, monthReading(50, month, 1), monthReading(50, month, 15))
	}

	report := DetectSeasonality(readings)

	assert.False(t, report.Seasonal)
	assert.Equal(t, "No seasonal pattern detected", report.Message)
}

func TestDetectSeasonalityFindsPeakMonth(t *testing.T) {
	var readings []ThresholdReading
	for d := 1; d <= 3; d++ {
		readings = append(readings, monthReading(90, time.January, d))
		readings = append(readings, monthReading(50, time.February, d))
		readings = append(readings, monthReading(50, time.March, d))
		readings = append(readings, monthReading(50, time.April, d))
	}

	report := DetectSeasonality(readings)

	assert.True(t, report.Seasonal)
	assert.Equal(t, "Jan", report.PeakMonth)
	assert.Equal(t, "Usage peaks in Jan", report.Message)
}

func TestRecommend(t *testing.T) {
	breach := day(20)

	withDays := func(days int) *Prediction {
		return &Prediction{
			Platform:            PlatformZapier,
			ProjectedBreachDate: &breach,
			DaysUntilBreach:     days,
		}
	}

	tests := []struct {
		name       string
		prediction *Prediction
		action     string
		contains   string
	}{
		{"nil prediction", nil, "monitor", "Keep tracking"},
		{"no breach date", &Prediction{Platform: PlatformZapier}, "monitor", "Keep tracking"},
		{"already exceeded", withDays(0), "urgent", "likely exceeded"},
		{"within a week", withDays(5), "urgent", "5 days"},
		{"within two weeks", withDays(10), "plan", "plan ahead"},
		{"within a month", withDays(20), "aware", "on track"},
		{"healthy", withDays(45), "healthy", "looks healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(tt.prediction, PlatformZapier)
			assert.Equal(t, tt.action, rec.Action)
			assert.Contains(t, rec.Message, tt.contains)
		})
	}
}
