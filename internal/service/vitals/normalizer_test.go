package vitals

import (
	"errors"
	"testing"
	"time"

	"github.com/webpulse/api/internal/domain"
)

func testThresholds() map[string]domain.Threshold {
	return map[string]domain.Threshold{
		"LCP": {Good: 2500, Poor: 4000},
		"FID": {Good: 100, Poor: 300},
		"CLS": {Good: 0.1, Poor: 0.25},
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeRatingBoundaries(t *testing.T) {
	n := newNormalizer(testThresholds(), time.Now)

	cases := []struct {
		value  float64
		rating domain.Rating
	}{
		{2500, domain.RatingGood},
		{2501, domain.RatingNeedsImprovement},
		{4000, domain.RatingNeedsImprovement},
		{4001, domain.RatingPoor},
	}
	for _, tc := range cases {
		m, err := n.normalize(RawMeasurement{Name: "LCP", Value: floatPtr(tc.value)})
		if err != nil {
			t.Fatalf("unexpected error for value %.0f: %v", tc.value, err)
		}
		if m.Rating != tc.rating {
			t.Fatalf("value %.0f: expected rating %s, got %s", tc.value, tc.rating, m.Rating)
		}
	}
}

func TestNormalizeUnknownMetricDefaultsGood(t *testing.T) {
	n := newNormalizer(testThresholds(), time.Now)
	m, err := n.normalize(RawMeasurement{Name: "UNKNOWN_METRIC", Value: floatPtr(999999)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Rating != domain.RatingGood {
		t.Fatalf("expected good rating for unknown metric, got %s", m.Rating)
	}
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	n := newNormalizer(testThresholds(), time.Now)

	if _, err := n.normalize(RawMeasurement{Value: floatPtr(100)}); !errors.Is(err, ErrInvalidMeasurement) {
		t.Fatalf("expected ErrInvalidMeasurement for missing name, got %v", err)
	}
	if _, err := n.normalize(RawMeasurement{Name: "LCP"}); !errors.Is(err, ErrInvalidMeasurement) {
		t.Fatalf("expected ErrInvalidMeasurement for missing value, got %v", err)
	}
}

func TestNormalizeDefaultsTimestampAndID(t *testing.T) {
	now := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	n := newNormalizer(testThresholds(), func() time.Time { return now })

	m, err := n.normalize(RawMeasurement{Name: "FID", Value: floatPtr(50)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Timestamp.Equal(now) {
		t.Fatalf("expected timestamp %s, got %s", now, m.Timestamp)
	}
	if m.ID == "" {
		t.Fatalf("expected generated id")
	}

	supplied := now.Add(-time.Minute)
	m, err = n.normalize(RawMeasurement{Name: "FID", Value: floatPtr(50), TimestampMS: supplied.UnixMilli()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Timestamp.Equal(supplied) {
		t.Fatalf("expected supplied timestamp %s, got %s", supplied, m.Timestamp)
	}
}

func TestNormalizeCLSScoreThresholds(t *testing.T) {
	n := newNormalizer(testThresholds(), time.Now)
	m, err := n.normalize(RawMeasurement{Name: "CLS", Value: floatPtr(0.3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Rating != domain.RatingPoor {
		t.Fatalf("expected poor rating for CLS 0.3, got %s", m.Rating)
	}
}
