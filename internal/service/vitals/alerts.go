package vitals

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webpulse/api/internal/domain"
)

// alertRules holds the named percentage boundaries the engine evaluates
// against. Defaults match the documented behavior; all are configurable.
type alertRules struct {
	criticalPoorPercent float64
	warningPoorPercent  float64
	extremeMultiplier   float64
	window              time.Duration
	retention           time.Duration
}

// alertList is the retained, severity-classified alert history. Alerts are
// append-only and evicted once they exceed the retention window.
type alertList struct {
	mu     sync.Mutex
	alerts []domain.Alert
	now    func() time.Time
}

func newAlertList(now func() time.Time) *alertList {
	if now == nil {
		now = time.Now
	}
	return &alertList{now: now}
}

func (l *alertList) append(alerts ...domain.Alert) {
	if len(alerts) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, alerts...)
}

func (l *alertList) evictOlderThan(retention time.Duration) {
	cutoff := l.now().Add(-retention)
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.alerts[:0]
	for _, a := range l.alerts {
		if a.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	l.alerts = kept
}

// recent returns up to limit alerts, newest first, optionally filtered by
// severity and metric name.
func (l *alertList) recent(severity domain.AlertSeverity, metric string, limit int) []domain.Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]domain.Alert, 0)
	for i := len(l.alerts) - 1; i >= 0; i-- {
		a := l.alerts[i]
		if severity != "" && a.Severity != severity {
			continue
		}
		if metric != "" && a.Metric != metric {
			continue
		}
		matched = append(matched, a)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched
}

// evaluateMetric inspects one metric's recent measurements and returns the
// alerts that fire. The percentage rule and the extreme-value rule are
// independent, so a single pass can produce two criticals for one metric.
// Repeated passes over an overlapping window may emit duplicates; dispatchers
// downstream are expected to tolerate that.
func evaluateMetric(name string, measurements []domain.Measurement, thresholds map[string]domain.Threshold, rules alertRules, now time.Time) []domain.Alert {
	if len(measurements) == 0 {
		return nil
	}

	var alerts []domain.Alert
	poorCount := 0
	for _, m := range measurements {
		if m.Rating == domain.RatingPoor {
			poorCount++
		}
	}
	poorPercentage := float64(poorCount) / float64(len(measurements)) * 100

	switch {
	case poorPercentage > rules.criticalPoorPercent:
		alerts = append(alerts, domain.Alert{
			ID:        uuid.NewString(),
			Severity:  domain.SeverityCritical,
			Metric:    name,
			Message:   fmt.Sprintf("%.1f%% of recent %s measurements rated poor", poorPercentage, name),
			Value:     poorPercentage,
			Threshold: rules.criticalPoorPercent,
			Timestamp: now,
		})
	case poorPercentage > rules.warningPoorPercent:
		alerts = append(alerts, domain.Alert{
			ID:        uuid.NewString(),
			Severity:  domain.SeverityWarning,
			Metric:    name,
			Message:   fmt.Sprintf("%.1f%% of recent %s measurements rated poor", poorPercentage, name),
			Value:     poorPercentage,
			Threshold: rules.warningPoorPercent,
			Timestamp: now,
		})
	}

	threshold, ok := thresholds[name]
	if !ok || threshold.Poor <= 0 {
		return alerts
	}
	extremeLimit := threshold.Poor * rules.extremeMultiplier
	var worst float64
	for _, m := range measurements {
		if m.Value > extremeLimit && m.Value > worst {
			worst = m.Value
		}
	}
	if worst > 0 {
		alerts = append(alerts, domain.Alert{
			ID:        uuid.NewString(),
			Severity:  domain.SeverityCritical,
			Metric:    name,
			Message:   fmt.Sprintf("extreme %s value %.1f exceeds %.1f", name, worst, extremeLimit),
			Value:     worst,
			Threshold: extremeLimit,
			Timestamp: now,
		})
	}
	return alerts
}
