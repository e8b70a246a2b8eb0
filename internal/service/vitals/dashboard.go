package vitals

import (
	"sort"
	"time"

	"github.com/webpulse/api/internal/domain"
)

// groupByName partitions measurements per metric name, preserving arrival
// order inside each group.
func groupByName(measurements []domain.Measurement) map[string][]domain.Measurement {
	groups := make(map[string][]domain.Measurement)
	for _, m := range measurements {
		groups[m.Name] = append(groups[m.Name], m)
	}
	return groups
}

// assembleDashboard composes per-metric analyses, trends, overall rating
// totals, and the most recent alerts into one immutable snapshot.
func assembleDashboard(measurements []domain.Measurement, alerts *alertList, timeRange time.Duration, stabilityPct float64, alertCount int, now time.Time) domain.DashboardSnapshot {
	snapshot := domain.DashboardSnapshot{
		GeneratedAt: now,
		TimeRange:   timeRange,
		Metrics:     make([]domain.MetricAnalysis, 0),
	}

	for name, group := range groupByName(measurements) {
		analysis, err := analyze(group, name)
		if err != nil {
			continue
		}
		values := make([]float64, 0, len(group))
		for _, m := range group {
			values = append(values, m.Value)
		}
		analysis.Trend = deriveTrend(values, stabilityPct)
		snapshot.Metrics = append(snapshot.Metrics, analysis)
		snapshot.Totals.Add(analysis.Ratings)
	}
	sort.Slice(snapshot.Metrics, func(i, j int) bool {
		return snapshot.Metrics[i].Name < snapshot.Metrics[j].Name
	})

	if alerts != nil {
		snapshot.Alerts = alerts.recent("", "", alertCount)
	}
	return snapshot
}
