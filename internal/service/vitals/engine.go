package vitals

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/webpulse/api/internal/config"
	"github.com/webpulse/api/internal/domain"
	"github.com/webpulse/api/internal/ws"
)

const alertStreamTopic = "alerts"

// Engine owns the rolling store and the retained alert list, the only mutable
// shared state of the telemetry pipeline. It is constructed explicitly by the
// composition root and performs no blocking I/O; persistence and alert
// dispatch happen in collaborators fed from its outputs.
type Engine struct {
	normalizer *normalizer
	store      *rollingStore
	alerts     *alertList
	thresholds map[string]domain.Threshold
	rules      alertRules
	hub        *ws.Hub
	logger     *slog.Logger

	retention     time.Duration
	stabilityPct  float64
	alertCount    int
	evaluateEvery time.Duration
	now           func() time.Time

	mu             sync.Mutex
	pendingSamples []domain.Measurement
	pendingAlerts  []domain.Alert
}

// NewEngine wires the pipeline from configuration. The hub is optional; with
// a nil hub no live streaming happens.
func NewEngine(cfg config.APIConfig, hub *ws.Hub, logger *slog.Logger) *Engine {
	return newEngine(cfg, hub, logger, time.Now)
}

func newEngine(cfg config.APIConfig, hub *ws.Hub, logger *slog.Logger, now func() time.Time) *Engine {
	if logger != nil {
		logger = logger.With("component", "vitals_engine")
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		normalizer: newNormalizer(cfg.Thresholds, now),
		store:      newRollingStore(now),
		alerts:     newAlertList(now),
		thresholds: cfg.Thresholds,
		rules: alertRules{
			criticalPoorPercent: cfg.CriticalPoorPercent,
			warningPoorPercent:  cfg.WarningPoorPercent,
			extremeMultiplier:   cfg.ExtremeMultiplier,
			window:              cfg.AlertWindow,
			retention:           cfg.AlertRetention,
		},
		hub:           hub,
		logger:        logger,
		retention:     cfg.MeasurementRetention,
		stabilityPct:  cfg.TrendStabilityPct,
		alertCount:    cfg.DashboardAlertCount,
		evaluateEvery: cfg.EvaluateEvery,
		now:           now,
	}
}

// Run drives periodic alert evaluation and retention eviction. It blocks
// until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	if e == nil {
		return
	}
	interval := e.evaluateEvery
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if e.logger != nil {
		e.logger.Info("vitals engine started", "evaluate_every", interval, "retention", e.retention)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if e.logger != nil {
				e.logger.Info("vitals engine stopped")
			}
			return
		case <-ticker.C:
			if evicted := e.EvictOlderThan(e.retention); evicted > 0 && e.logger != nil {
				e.logger.Info("evicted aged measurements", "count", evicted)
			}
			if fired := e.Evaluate(); len(fired) > 0 && e.logger != nil {
				e.logger.Warn("alerts fired", "count", len(fired))
			}
		}
	}
}

// Ingest normalizes and stores one raw measurement. Rejections carry
// ErrInvalidMeasurement and leave the store untouched.
func (e *Engine) Ingest(raw RawMeasurement) (domain.Measurement, error) {
	m, err := e.normalizer.normalize(raw)
	if err != nil {
		return domain.Measurement{}, err
	}
	e.store.append(m)
	e.queueSample(m)
	e.broadcastMeasurement(m)
	return m, nil
}

// Import merges previously exported measurements through the normal append
// path. Stored ratings and timestamps are preserved; entries without a valid
// name, ID, timestamp, or finite value are skipped and counted.
func (e *Engine) Import(measurements []domain.Measurement) (accepted, rejected int) {
	for _, m := range measurements {
		if m.Name == "" || m.ID == "" || m.Timestamp.IsZero() {
			rejected++
			continue
		}
		if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			rejected++
			continue
		}
		if m.Rating == "" {
			m.Rating = e.normalizer.rate(m.Name, m.Value)
		}
		e.store.append(m)
		e.queueSample(m)
		accepted++
	}
	return accepted, rejected
}

// Export returns the retained measurements for the trailing time range.
func (e *Engine) Export(timeRange time.Duration) ([]domain.Measurement, error) {
	now := e.now()
	return e.store.query(now.Add(-timeRange), now)
}

// Analyze summarizes one metric over the trailing time range, including its
// trend. ErrEmptyWindow is returned when the metric is absent.
func (e *Engine) Analyze(name string, timeRange time.Duration) (domain.MetricAnalysis, error) {
	now := e.now()
	window, err := e.store.query(now.Add(-timeRange), now)
	if err != nil {
		return domain.MetricAnalysis{}, err
	}
	analysis, err := analyze(window, name)
	if err != nil {
		return domain.MetricAnalysis{}, err
	}
	values := make([]float64, 0, analysis.Count)
	for _, m := range window {
		if m.Name == name {
			values = append(values, m.Value)
		}
	}
	analysis.Trend = deriveTrend(values, e.stabilityPct)
	return analysis, nil
}

// Snapshot assembles the dashboard view for the trailing time range.
func (e *Engine) Snapshot(timeRange time.Duration) domain.DashboardSnapshot {
	now := e.now()
	window, err := e.store.query(now.Add(-timeRange), now)
	if err != nil {
		window = nil
	}
	return assembleDashboard(window, e.alerts, timeRange, e.stabilityPct, e.alertCount, now)
}

// Evaluate inspects the recency window per metric, retains and returns any
// alerts that fire, and evicts alerts past retention. Evaluation cycles over
// overlapping windows may re-emit alerts for a still-degraded metric.
func (e *Engine) Evaluate() []domain.Alert {
	now := e.now()
	window, err := e.store.query(now.Add(-e.rules.window), now)
	if err != nil || len(window) == 0 {
		e.alerts.evictOlderThan(e.rules.retention)
		return nil
	}

	var fired []domain.Alert
	for name, group := range groupByName(window) {
		fired = append(fired, evaluateMetric(name, group, e.thresholds, e.rules, now)...)
	}
	e.alerts.append(fired...)
	e.alerts.evictOlderThan(e.rules.retention)
	e.queueAlerts(fired)
	e.broadcastAlerts(fired)
	return fired
}

// Alerts returns retained alerts, newest first, filtered by severity and
// metric when given.
func (e *Engine) Alerts(severity domain.AlertSeverity, metric string, limit int) []domain.Alert {
	return e.alerts.recent(severity, metric, limit)
}

// EvictOlderThan removes measurements beyond maxAge and reports the count.
func (e *Engine) EvictOlderThan(maxAge time.Duration) int {
	return e.store.evictOlderThan(maxAge)
}

// StoredCount reports the number of retained measurements.
func (e *Engine) StoredCount() int {
	return e.store.size()
}

// DrainPending hands the archiver everything ingested or fired since the last
// drain. The engine buffers these so persistence stays out of the hot path.
func (e *Engine) DrainPending() ([]domain.Measurement, []domain.Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	samples := e.pendingSamples
	alerts := e.pendingAlerts
	e.pendingSamples = nil
	e.pendingAlerts = nil
	return samples, alerts
}

func (e *Engine) queueSample(m domain.Measurement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingSamples = append(e.pendingSamples, m)
}

func (e *Engine) queueAlerts(alerts []domain.Alert) {
	if len(alerts) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingAlerts = append(e.pendingAlerts, alerts...)
}

func (e *Engine) broadcastMeasurement(m domain.Measurement) {
	if e.hub == nil {
		return
	}
	payload, err := MarshalMeasurement(m)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("failed to marshal measurement", "error", err)
		}
		return
	}
	e.hub.Broadcast(m.Name, payload)
}

func (e *Engine) broadcastAlerts(alerts []domain.Alert) {
	if e.hub == nil {
		return
	}
	for _, a := range alerts {
		payload, err := json.Marshal(map[string]any{
			"id":        a.ID,
			"type":      a.Severity,
			"metric":    a.Metric,
			"message":   a.Message,
			"value":     a.Value,
			"threshold": a.Threshold,
			"timestamp": a.Timestamp.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			continue
		}
		e.hub.Broadcast(alertStreamTopic, payload)
	}
}

// MarshalMeasurement encodes a measurement for SSE/WebSocket clients.
func MarshalMeasurement(m domain.Measurement) ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":              m.ID,
		"name":            m.Name,
		"value":           m.Value,
		"delta":           m.Delta,
		"rating":          m.Rating,
		"navigation_type": m.NavigationType,
		"url":             m.SourceURL,
		"user_agent":      m.ClientContext,
		"timestamp":       m.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}
