package vitals

import (
	"math"
	"testing"
	"time"

	"github.com/webpulse/api/internal/config"
	"github.com/webpulse/api/internal/domain"
)

func testEngineConfig() config.APIConfig {
	return config.APIConfig{
		MeasurementRetention: 24 * time.Hour,
		AlertWindow:          5 * time.Minute,
		AlertRetention:       time.Hour,
		CriticalPoorPercent:  50,
		WarningPoorPercent:   25,
		ExtremeMultiplier:    2,
		TrendStabilityPct:    5,
		EvaluateEvery:        30 * time.Second,
		DefaultDashboardSpan: time.Hour,
		DashboardAlertCount:  10,
		Thresholds:           testThresholds(),
	}
}

func newTestEngine(now time.Time) *Engine {
	return newEngine(testEngineConfig(), nil, nil, func() time.Time { return now })
}

func ingestAt(t *testing.T, e *Engine, name string, value float64, at time.Time) domain.Measurement {
	t.Helper()
	m, err := e.Ingest(RawMeasurement{
		Name:        name,
		Value:       floatPtr(value),
		TimestampMS: at.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	return m
}

func TestEngineIngestAndAnalyze(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	for i, v := range []float64{100, 200, 300, 400, 500} {
		ingestAt(t, e, "LCP", v, now.Add(-time.Duration(5-i)*time.Minute))
	}

	analysis, err := e.Analyze("LCP", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Count != 5 || analysis.P50 != 300 {
		t.Fatalf("unexpected analysis: count=%d p50=%.1f", analysis.Count, analysis.P50)
	}
	if analysis.Trend.Direction != domain.TrendDegrading {
		t.Fatalf("expected degrading trend for rising series, got %s", analysis.Trend.Direction)
	}
}

func TestEngineSnapshotComposition(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	ingestAt(t, e, "LCP", 2000, now.Add(-10*time.Minute))
	ingestAt(t, e, "LCP", 3000, now.Add(-5*time.Minute))
	ingestAt(t, e, "FID", 50, now.Add(-4*time.Minute))

	snapshot := e.Snapshot(time.Hour)
	if len(snapshot.Metrics) != 2 {
		t.Fatalf("expected 2 metric groups, got %d", len(snapshot.Metrics))
	}
	// Sorted by name for deterministic output.
	if snapshot.Metrics[0].Name != "FID" || snapshot.Metrics[1].Name != "LCP" {
		t.Fatalf("expected FID then LCP, got %s then %s", snapshot.Metrics[0].Name, snapshot.Metrics[1].Name)
	}
	if snapshot.Totals.Total() != 3 {
		t.Fatalf("expected 3 rated measurements in totals, got %d", snapshot.Totals.Total())
	}
	if snapshot.Totals.Good != 2 || snapshot.Totals.NeedsImprovement != 1 {
		t.Fatalf("unexpected totals: %+v", snapshot.Totals)
	}
	if !snapshot.GeneratedAt.Equal(now) {
		t.Fatalf("expected snapshot timestamp %s, got %s", now, snapshot.GeneratedAt)
	}
}

func TestEngineSnapshotAttachesRecentAlerts(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	for i := 0; i < 10; i++ {
		value := 100.0
		if i < 6 {
			value = 5000 // rates poor against LCP thresholds
		}
		ingestAt(t, e, "LCP", value, now.Add(-time.Duration(i)*time.Second))
	}
	fired := e.Evaluate()
	if len(fired) == 0 {
		t.Fatalf("expected alerts to fire")
	}

	snapshot := e.Snapshot(time.Hour)
	if len(snapshot.Alerts) != len(fired) {
		t.Fatalf("expected %d attached alerts, got %d", len(fired), len(snapshot.Alerts))
	}
}

func TestEngineEvaluateHonorsRecencyWindow(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	// All poor, but outside the 5 minute alert window.
	for i := 0; i < 10; i++ {
		ingestAt(t, e, "LCP", 5000, now.Add(-time.Hour))
	}
	if fired := e.Evaluate(); len(fired) != 0 {
		t.Fatalf("expected no alerts for stale measurements, got %d", len(fired))
	}
}

func TestEngineExportImportRoundTrip(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	source := newTestEngine(now)

	ingestAt(t, source, "LCP", 2600, now.Add(-10*time.Minute))
	ingestAt(t, source, "FID", 90, now.Add(-8*time.Minute))
	ingestAt(t, source, "CLS", 0.05, now.Add(-6*time.Minute))

	exported, err := source.Export(time.Hour)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if len(exported) != 3 {
		t.Fatalf("expected 3 exported measurements, got %d", len(exported))
	}

	target := newTestEngine(now)
	accepted, rejected := target.Import(exported)
	if accepted != 3 || rejected != 0 {
		t.Fatalf("expected 3 accepted / 0 rejected, got %d/%d", accepted, rejected)
	}

	restored, err := target.Export(time.Hour)
	if err != nil {
		t.Fatalf("re-export failed: %v", err)
	}
	if len(restored) != len(exported) {
		t.Fatalf("expected %d restored measurements, got %d", len(exported), len(restored))
	}
	byID := make(map[string]domain.Measurement, len(exported))
	for _, m := range exported {
		byID[m.ID] = m
	}
	for _, m := range restored {
		original, ok := byID[m.ID]
		if !ok {
			t.Fatalf("restored unknown measurement %s", m.ID)
		}
		if m.Value != original.Value || m.Rating != original.Rating || !m.Timestamp.Equal(original.Timestamp) {
			t.Fatalf("restored measurement diverged: %+v vs %+v", m, original)
		}
	}
}

func TestEngineImportRejectsMalformed(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	accepted, rejected := e.Import([]domain.Measurement{
		{ID: "ok", Name: "LCP", Value: 1200, Rating: domain.RatingGood, Timestamp: now},
		{ID: "", Name: "LCP", Value: 1200, Timestamp: now},
		{ID: "no-name", Value: 1200, Timestamp: now},
		{ID: "nan", Name: "LCP", Value: math.NaN(), Timestamp: now},
		{ID: "inf", Name: "LCP", Value: math.Inf(1), Timestamp: now},
	})
	if accepted != 1 || rejected != 4 {
		t.Fatalf("expected 1 accepted / 4 rejected, got %d/%d", accepted, rejected)
	}
	if e.StoredCount() != 1 {
		t.Fatalf("rejected rows must not be stored, got %d", e.StoredCount())
	}
}

func TestEngineDrainPending(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	ingestAt(t, e, "LCP", 1200, now)
	samples, alerts := e.DrainPending()
	if len(samples) != 1 || len(alerts) != 0 {
		t.Fatalf("expected one pending sample, got %d samples / %d alerts", len(samples), len(alerts))
	}
	samples, _ = e.DrainPending()
	if len(samples) != 0 {
		t.Fatalf("expected drain to clear the queue, got %d", len(samples))
	}
}

func TestEngineEvictOlderThan(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	e := newTestEngine(now)

	ingestAt(t, e, "LCP", 1200, now.Add(-2*time.Hour))
	ingestAt(t, e, "LCP", 1300, now.Add(-10*time.Minute))

	if evicted := e.EvictOlderThan(time.Hour); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if e.StoredCount() != 1 {
		t.Fatalf("expected 1 retained measurement, got %d", e.StoredCount())
	}
}
