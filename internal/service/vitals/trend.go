package vitals

import (
	"math"

	"github.com/webpulse/api/internal/domain"
)

// deriveTrend compares the mean of the first half of a value series against
// the mean of the second half, split at the midpoint in arrival order. Changes
// below stabilityPct count as stable; lower values are better, so a falling
// mean improves.
func deriveTrend(values []float64, stabilityPct float64) domain.Trend {
	if len(values) < 2 {
		return domain.Trend{Direction: domain.TrendStable}
	}

	mid := len(values) / 2
	firstAvg := mean(values[:mid])
	secondAvg := mean(values[mid:])

	// A zero first-half mean would divide by zero; report stable instead.
	if firstAvg == 0 {
		return domain.Trend{Direction: domain.TrendStable}
	}

	percentage := math.Abs(secondAvg-firstAvg) / firstAvg * 100
	if percentage < stabilityPct {
		return domain.Trend{Direction: domain.TrendStable, Percentage: percentage}
	}
	direction := domain.TrendDegrading
	if secondAvg < firstAvg {
		direction = domain.TrendImproving
	}
	return domain.Trend{Direction: direction, Percentage: percentage}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
