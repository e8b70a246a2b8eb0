package vitals

import (
	"math"
	"sort"

	"github.com/webpulse/api/internal/domain"
)

// analyze computes the statistical summary for one metric name over the given
// measurement window. The trend is left zero-valued; the caller derives it
// from the same value series.
func analyze(measurements []domain.Measurement, name string) (domain.MetricAnalysis, error) {
	values := make([]float64, 0, len(measurements))
	var ratings domain.RatingCounts
	var sum float64
	minValue := math.Inf(1)
	maxValue := math.Inf(-1)

	for _, m := range measurements {
		if m.Name != name {
			continue
		}
		values = append(values, m.Value)
		sum += m.Value
		if m.Value < minValue {
			minValue = m.Value
		}
		if m.Value > maxValue {
			maxValue = m.Value
		}
		// Historical fidelity: counts come from the rating stored at ingestion
		// time, not from the current threshold table.
		switch m.Rating {
		case domain.RatingPoor:
			ratings.Poor++
		case domain.RatingNeedsImprovement:
			ratings.NeedsImprovement++
		default:
			ratings.Good++
		}
	}
	if len(values) == 0 {
		return domain.MetricAnalysis{}, ErrEmptyWindow
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return domain.MetricAnalysis{
		Name:     name,
		Count:    len(values),
		AvgValue: sum / float64(len(values)),
		MinValue: minValue,
		MaxValue: maxValue,
		P50:      nearestRank(sorted, 50),
		P75:      nearestRank(sorted, 75),
		P90:      nearestRank(sorted, 90),
		P95:      nearestRank(sorted, 95),
		Ratings:  ratings,
	}, nil
}

// nearestRank selects the percentile from an ascending-sorted slice at index
// ceil(p/100*n)-1, clamped into range. Deterministic, no interpolation.
func nearestRank(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
