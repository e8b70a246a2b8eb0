package domain

import "time"

// TrendDirection describes how a metric moved over the analyzed window. Lower
// values are better for every supported metric, so a falling mean improves.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDegrading TrendDirection = "degrading"
	TrendStable    TrendDirection = "stable"
)

// Trend couples a direction with the relative change between the first and
// second half of a value series.
type Trend struct {
	Direction  TrendDirection
	Percentage float64
}

// MetricAnalysis is the derived statistical summary for one metric name over
// a window. It is recomputed on every read and never persisted.
type MetricAnalysis struct {
	Name     string
	Count    int
	AvgValue float64
	MinValue float64
	MaxValue float64
	P50      float64
	P75      float64
	P90      float64
	P95      float64
	Ratings  RatingCounts
	Trend    Trend
}

// AlertSeverity ranks an alert.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityInfo     AlertSeverity = "info"
)

// Alert records one threshold breach. Alerts are immutable after creation and
// evicted from the retained list once they age out.
type Alert struct {
	ID        string
	Severity  AlertSeverity
	Metric    string
	Message   string
	Value     float64
	Threshold float64
	Timestamp time.Time
}

// DashboardSnapshot is one consistent composition of analyses, trends, rating
// totals, and recent alerts for a requested time range.
type DashboardSnapshot struct {
	GeneratedAt time.Time
	TimeRange   time.Duration
	Metrics     []MetricAnalysis
	Totals      RatingCounts
	Alerts      []Alert
}
