package httpx

import (
	"time"

	"github.com/webpulse/api/internal/domain"
	"github.com/webpulse/api/internal/service/vitals"
)

// vitalPayload mirrors the shape browser collectors report. Field names
// follow the web-vitals attribution payload.
type vitalPayload struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Value          *float64 `json:"value"`
	Delta          float64  `json:"delta"`
	NavigationType string   `json:"navigationType"`
	Timestamp      int64    `json:"timestamp"`
	URL            string   `json:"url"`
	UserAgent      string   `json:"userAgent"`
}

func (p vitalPayload) raw() vitals.RawMeasurement {
	return vitals.RawMeasurement{
		ID:             p.ID,
		Name:           p.Name,
		Value:          p.Value,
		Delta:          p.Delta,
		NavigationType: p.NavigationType,
		TimestampMS:    p.Timestamp,
		URL:            p.URL,
		UserAgent:      p.UserAgent,
	}
}

// measurementPayload is the export/import wire format.
type measurementPayload struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Value          float64 `json:"value"`
	Delta          float64 `json:"delta"`
	Rating         string  `json:"rating"`
	NavigationType string  `json:"navigation_type"`
	URL            string  `json:"url"`
	UserAgent      string  `json:"user_agent"`
	Timestamp      string  `json:"timestamp"`
}

func marshalMeasurements(measurements []domain.Measurement) []measurementPayload {
	payload := make([]measurementPayload, 0, len(measurements))
	for _, m := range measurements {
		payload = append(payload, measurementPayload{
			ID:             m.ID,
			Name:           m.Name,
			Value:          m.Value,
			Delta:          m.Delta,
			Rating:         string(m.Rating),
			NavigationType: m.NavigationType,
			URL:            m.SourceURL,
			UserAgent:      m.ClientContext,
			Timestamp:      m.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return payload
}

func (p measurementPayload) measurement() domain.Measurement {
	timestamp, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
	return domain.Measurement{
		ID:             p.ID,
		Name:           p.Name,
		Value:          p.Value,
		Delta:          p.Delta,
		Rating:         domain.Rating(p.Rating),
		NavigationType: p.NavigationType,
		SourceURL:      p.URL,
		ClientContext:  p.UserAgent,
		Timestamp:      timestamp.UTC(),
	}
}

func marshalAlert(a domain.Alert) map[string]any {
	return map[string]any{
		"id":        a.ID,
		"type":      string(a.Severity),
		"metric":    a.Metric,
		"message":   a.Message,
		"value":     a.Value,
		"threshold": a.Threshold,
		"timestamp": a.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func marshalAlerts(alerts []domain.Alert) []map[string]any {
	payload := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		payload = append(payload, marshalAlert(a))
	}
	return payload
}

func marshalRatings(c domain.RatingCounts) map[string]int {
	return map[string]int{
		"good":              c.Good,
		"needs-improvement": c.NeedsImprovement,
		"poor":              c.Poor,
	}
}

func marshalAnalysis(a domain.MetricAnalysis) map[string]any {
	return map[string]any{
		"name":      a.Name,
		"count":     a.Count,
		"avg_value": a.AvgValue,
		"min_value": a.MinValue,
		"max_value": a.MaxValue,
		"p50":       a.P50,
		"p75":       a.P75,
		"p90":       a.P90,
		"p95":       a.P95,
		"ratings":   marshalRatings(a.Ratings),
		"trend": map[string]any{
			"direction":  string(a.Trend.Direction),
			"percentage": a.Trend.Percentage,
		},
	}
}

func marshalSnapshot(s domain.DashboardSnapshot) map[string]any {
	metrics := make([]map[string]any, 0, len(s.Metrics))
	for _, m := range s.Metrics {
		metrics = append(metrics, marshalAnalysis(m))
	}
	return map[string]any{
		"timestamp":     s.GeneratedAt.UTC().Format(time.RFC3339Nano),
		"time_range_ms": s.TimeRange.Milliseconds(),
		"metrics":       metrics,
		"totals":        marshalRatings(s.Totals),
		"alerts":        marshalAlerts(s.Alerts),
	}
}
