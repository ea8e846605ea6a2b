package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	hoursPerDay = 24

	// minSamplesMedium / minSamplesHigh are the contributing-velocity counts
	// needed for each confidence tier
	minSamplesMedium = 3
	minSamplesHigh   = 5

	// seasonalityMinReadings is the minimum history before seasonality is even
	// considered; seasonalityVarianceThreshold corresponds to roughly a 10
	// percentage-point standard deviation across monthly averages
	seasonalityMinReadings       = 12
	seasonalityVarianceThreshold = 100.0
	trendAccelerationRatio       = 1.2
	trendDecelerationRatio       = 0.8
)

// PredictOverage projects when a platform's usage will cross 100% from a
// series of threshold readings. Insufficient or non-monotonic data is a valid
// low-confidence result, not an error.
func PredictOverage(platform Platform, readings []ThresholdReading, now time.Time) *Prediction {
	sorted := make([]ThresholdReading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	if len(sorted) < 2 {
		return &Prediction{
			Platform:   platform,
			Confidence: ConfidenceLow,
			Message:    "Need more data points",
			DataPoints: len(sorted),
		}
	}

	velocities := Velocities(sorted)
	if len(velocities) == 0 {
		return &Prediction{
			Platform:   platform,
			Confidence: ConfidenceLow,
			Message:    "Cannot calculate velocity - no consistent progression",
			DataPoints: len(sorted),
		}
	}

	avgVelocity := mean(velocities)
	last := sorted[len(sorted)-1]
	remaining := 100 - last.ThresholdPercent

	if remaining <= 0 {
		confidence := ConfidenceMedium
		if len(velocities) >= minSamplesMedium {
			confidence = ConfidenceHigh
		}
		breachDate := last.ObservedAt
		return &Prediction{
			Platform:            platform,
			Confidence:          confidence,
			Message:             "Already at or past limit",
			DataPoints:          len(sorted),
			ProjectedBreachDate: &breachDate,
			VelocityPerDay:      &avgVelocity,
			Status:              StatusOverage,
			LastThreshold:       last.ThresholdPercent,
			LastReadingAt:       last.ObservedAt,
		}
	}

	// Round up so the projection never under-estimates urgency
	daysToBreach := float64(remaining) / avgVelocity
	breachDate := last.ObservedAt.AddDate(0, 0, int(math.Ceil(daysToBreach)))

	confidence := ConfidenceLow
	switch {
	case len(velocities) >= minSamplesHigh:
		confidence = ConfidenceHigh
	case len(velocities) >= minSamplesMedium:
		confidence = ConfidenceMedium
	}

	daysFromNow := breachDate.Sub(now).Hours() / hoursPerDay
	status := StatusHealthy
	switch {
	case daysFromNow <= 0:
		status = StatusOverage
	case daysFromNow <= 7:
		status = StatusCritical
	case daysFromNow <= 14:
		status = StatusWarning
	}

	daysUntil := int(math.Ceil(daysFromNow))

	return &Prediction{
		Platform:            platform,
		Confidence:          confidence,
		Message:             fmt.Sprintf("Predicted overage in %d days", daysUntil),
		DataPoints:          len(sorted),
		ProjectedBreachDate: &breachDate,
		VelocityPerDay:      &avgVelocity,
		DaysUntilBreach:     daysUntil,
		Status:              status,
		LastThreshold:       last.ThresholdPercent,
		LastReadingAt:       last.ObservedAt,
	}
}

// Velocities computes the contributing velocity samples (percent per day)
// between consecutive readings. Stagnant or regressing pairs are excluded:
// the model assumes monotonic approach to a ceiling and ignores resets.
func Velocities(sorted []ThresholdReading) []float64 {
	var velocities []float64
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		curr := sorted[i]

		daysBetween := curr.ObservedAt.Sub(prev.ObservedAt).Hours() / hoursPerDay
		delta := float64(curr.ThresholdPercent - prev.ThresholdPercent)

		if daysBetween > 0 && delta > 0 {
			velocities = append(velocities, delta/daysBetween)
		}
	}
	return velocities
}

// PredictAll computes predictions for every platform in the grouped input
func PredictAll(readingsByPlatform map[Platform][]ThresholdReading, now time.Time) map[Platform]*Prediction {
	predictions := make(map[Platform]*Prediction, len(readingsByPlatform))
	for platform, readings := range readingsByPlatform {
		predictions[platform] = PredictOverage(platform, readings, now)
	}
	return predictions
}

// AnalyzeTrend compares the mean of the earlier half of the velocity samples
// to the later half. A best-effort diagnostic, not a statistical test.
func AnalyzeTrend(velocities []float64) TrendDirection {
	if len(velocities) < 3 {
		return TrendInsufficient
	}

	midpoint := len(velocities) / 2
	earlyAvg := mean(velocities[:midpoint])
	lateAvg := mean(velocities[midpoint:])

	if earlyAvg == 0 {
		return TrendInsufficient
	}

	changeRatio := lateAvg / earlyAvg
	switch {
	case changeRatio > trendAccelerationRatio:
		return TrendAccelerating
	case changeRatio < trendDecelerationRatio:
		return TrendDecelerating
	default:
		return TrendStable
	}
}

// DetectSeasonality flags recurring monthly usage peaks by comparing monthly
// average thresholds across the reading history
func DetectSeasonality(readings []ThresholdReading) SeasonalityReport {
	if len(readings) < seasonalityMinReadings {
		return SeasonalityReport{Message: "Need more data for seasonality analysis"}
	}

	byMonth := make(map[time.Month][]int)
	for _, r := range readings {
		month := r.ObservedAt.Month()
		byMonth[month] = append(byMonth[month], r.ThresholdPercent)
	}

	monthAverages := make(map[time.Month]float64)
	for month, thresholds := range byMonth {
		if len(thresholds) < 2 {
			continue
		}
		sum := 0
		for _, t := range thresholds {
			sum += t
		}
		monthAverages[month] = float64(sum) / float64(len(thresholds))
	}

	if len(monthAverages) < 4 {
		return SeasonalityReport{Message: "Not enough monthly data"}
	}

	values := make([]float64, 0, len(monthAverages))
	for _, avg := range monthAverages {
		values = append(values, avg)
	}
	avg := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - avg) * (v - avg)
	}
	variance /= float64(len(values))

	if variance <= seasonalityVarianceThreshold {
		return SeasonalityReport{Message: "No seasonal pattern detected"}
	}

	// Walk months in calendar order so ties resolve deterministically
	var peakMonth time.Month
	peakAvg := math.Inf(-1)
	for month := time.January; month <= time.December; month++ {
		if monthAvg, ok := monthAverages[month]; ok && monthAvg > peakAvg {
			peakAvg = monthAvg
			peakMonth = month
		}
	}

	short := peakMonth.String()[:3]
	return SeasonalityReport{
		Seasonal:  true,
		PeakMonth: short,
		Message:   fmt.Sprintf("Usage peaks in %s", short),
	}
}

// Recommend turns a prediction into a suggested user action
func Recommend(prediction *Prediction, platform Platform) Recommendation {
	if prediction == nil || prediction.ProjectedBreachDate == nil {
		return Recommendation{
			Action:  "monitor",
			Message: "Keep tracking usage as more data becomes available",
		}
	}

	daysUntil := prediction.DaysUntilBreach
	switch {
	case daysUntil <= 0:
		return Recommendation{
			Action:  "urgent",
			Message: fmt.Sprintf("You've likely exceeded your %s limit. Consider upgrading or pausing workflows.", platform),
		}
	case daysUntil <= 7:
		return Recommendation{
			Action:  "urgent",
			Message: fmt.Sprintf("%s limit approaching in %d days. Upgrade or reduce usage now.", platform, daysUntil),
		}
	case daysUntil <= 14:
		return Recommendation{
			Action:  "plan",
			Message: fmt.Sprintf("You'll reach your %s limit in about %d days. Time to plan ahead.", platform, daysUntil),
		}
	case daysUntil <= 30:
		return Recommendation{
			Action:  "aware",
			Message: fmt.Sprintf("%s usage is on track to hit the limit in %d days.", platform, daysUntil),
		}
	default:
		return Recommendation{
			Action:  "healthy",
			Message: fmt.Sprintf("%s usage looks healthy. Limit expected in %d+ days.", platform, daysUntil),
		}
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
