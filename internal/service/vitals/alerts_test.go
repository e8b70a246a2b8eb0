package vitals

import (
	"strings"
	"testing"
	"time"

	"github.com/webpulse/api/internal/domain"
)

func defaultRules() alertRules {
	return alertRules{
		criticalPoorPercent: 50,
		warningPoorPercent:  25,
		extremeMultiplier:   2,
		window:              5 * time.Minute,
		retention:           time.Hour,
	}
}

func poorWindow(name string, poor, total int) []domain.Measurement {
	measurements := make([]domain.Measurement, 0, total)
	for i := 0; i < total; i++ {
		rating := domain.RatingGood
		if i < poor {
			rating = domain.RatingPoor
		}
		measurements = append(measurements, domain.Measurement{
			ID:     name,
			Name:   name,
			Value:  100,
			Rating: rating,
		})
	}
	return measurements
}

func TestEvaluateMetricCriticalAboveFiftyPercent(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	alerts := evaluateMetric("FID", poorWindow("FID", 6, 10), testThresholds(), defaultRules(), now)

	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", a.Severity)
	}
	if a.Metric != "FID" {
		t.Fatalf("expected metric FID, got %s", a.Metric)
	}
	if a.Value != 60 {
		t.Fatalf("expected poor percentage 60, got %.1f", a.Value)
	}
	if !strings.Contains(a.Message, "FID") {
		t.Fatalf("expected message to reference the metric, got %q", a.Message)
	}
}

func TestEvaluateMetricWarningBand(t *testing.T) {
	now := time.Now()
	alerts := evaluateMetric("LCP", poorWindow("LCP", 3, 10), testThresholds(), defaultRules(), now)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if alerts[0].Severity != domain.SeverityWarning {
		t.Fatalf("expected warning severity, got %s", alerts[0].Severity)
	}
}

func TestEvaluateMetricQuietBelowWarning(t *testing.T) {
	alerts := evaluateMetric("LCP", poorWindow("LCP", 2, 10), testThresholds(), defaultRules(), time.Now())
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts at 20%% poor, got %d", len(alerts))
	}
}

func TestEvaluateMetricExtremeValueIsAdditive(t *testing.T) {
	now := time.Now()
	measurements := poorWindow("LCP", 6, 10)
	// One sample beyond 2x the poor threshold (4000 for LCP).
	measurements[0].Value = 9000

	alerts := evaluateMetric("LCP", measurements, testThresholds(), defaultRules(), now)
	if len(alerts) != 2 {
		t.Fatalf("expected percentage alert plus extreme alert, got %d", len(alerts))
	}

	var extreme *domain.Alert
	for i := range alerts {
		if strings.Contains(alerts[i].Message, "extreme") {
			extreme = &alerts[i]
		}
	}
	if extreme == nil {
		t.Fatalf("expected an extreme value alert")
	}
	if extreme.Severity != domain.SeverityCritical {
		t.Fatalf("expected extreme alert to be critical, got %s", extreme.Severity)
	}
	if extreme.Value != 9000 {
		t.Fatalf("expected worst offending value 9000, got %.1f", extreme.Value)
	}
	if extreme.Threshold != 8000 {
		t.Fatalf("expected threshold 8000, got %.1f", extreme.Threshold)
	}
}

func TestEvaluateMetricUnknownMetricSkipsExtremeRule(t *testing.T) {
	measurements := poorWindow("UNKNOWN", 6, 10)
	measurements[0].Value = 1e9
	alerts := evaluateMetric("UNKNOWN", measurements, testThresholds(), defaultRules(), time.Now())
	if len(alerts) != 1 {
		t.Fatalf("expected only the percentage alert for unthresholded metric, got %d", len(alerts))
	}
}

func TestAlertListRetention(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	list := newAlertList(func() time.Time { return now })

	list.append(
		domain.Alert{ID: "old", Metric: "LCP", Severity: domain.SeverityCritical, Timestamp: now.Add(-2 * time.Hour)},
		domain.Alert{ID: "fresh", Metric: "LCP", Severity: domain.SeverityWarning, Timestamp: now.Add(-10 * time.Minute)},
	)
	list.evictOlderThan(time.Hour)

	remaining := list.recent("", "", 0)
	if len(remaining) != 1 || remaining[0].ID != "fresh" {
		t.Fatalf("expected only the fresh alert to survive retention, got %v", remaining)
	}
}

func TestAlertListRecentFilters(t *testing.T) {
	now := time.Now()
	list := newAlertList(func() time.Time { return now })
	list.append(
		domain.Alert{ID: "1", Metric: "LCP", Severity: domain.SeverityCritical, Timestamp: now.Add(-3 * time.Minute)},
		domain.Alert{ID: "2", Metric: "FID", Severity: domain.SeverityWarning, Timestamp: now.Add(-2 * time.Minute)},
		domain.Alert{ID: "3", Metric: "LCP", Severity: domain.SeverityWarning, Timestamp: now.Add(-time.Minute)},
	)

	got := list.recent(domain.SeverityWarning, "LCP", 10)
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("expected only alert 3, got %v", got)
	}

	newest := list.recent("", "", 2)
	if len(newest) != 2 || newest[0].ID != "3" || newest[1].ID != "2" {
		t.Fatalf("expected newest-first ordering with limit, got %v", newest)
	}
}
