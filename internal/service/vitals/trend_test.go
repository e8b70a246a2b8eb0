package vitals

import (
	"testing"

	"github.com/webpulse/api/internal/domain"
)

func TestTrendFlatSeriesStable(t *testing.T) {
	trend := deriveTrend([]float64{100, 100, 100, 100}, 5)
	if trend.Direction != domain.TrendStable || trend.Percentage != 0 {
		t.Fatalf("expected stable/0, got %s/%.1f", trend.Direction, trend.Percentage)
	}
}

func TestTrendImprovement(t *testing.T) {
	trend := deriveTrend([]float64{400, 400, 100, 100}, 5)
	if trend.Direction != domain.TrendImproving {
		t.Fatalf("expected improving, got %s", trend.Direction)
	}
	if trend.Percentage != 75 {
		t.Fatalf("expected 75%% change, got %.1f", trend.Percentage)
	}
}

func TestTrendDegradation(t *testing.T) {
	trend := deriveTrend([]float64{100, 100, 200, 200}, 5)
	if trend.Direction != domain.TrendDegrading {
		t.Fatalf("expected degrading, got %s", trend.Direction)
	}
	if trend.Percentage != 100 {
		t.Fatalf("expected 100%% change, got %.1f", trend.Percentage)
	}
}

func TestTrendBelowStabilityThreshold(t *testing.T) {
	// 2% change stays stable under the default 5% threshold.
	trend := deriveTrend([]float64{100, 100, 102, 102}, 5)
	if trend.Direction != domain.TrendStable {
		t.Fatalf("expected stable for sub-threshold change, got %s", trend.Direction)
	}
}

func TestTrendTooFewValues(t *testing.T) {
	trend := deriveTrend([]float64{250}, 5)
	if trend.Direction != domain.TrendStable || trend.Percentage != 0 {
		t.Fatalf("expected stable/0 for single value, got %s/%.1f", trend.Direction, trend.Percentage)
	}
}

func TestTrendZeroFirstHalf(t *testing.T) {
	trend := deriveTrend([]float64{0, 0, 100, 100}, 5)
	if trend.Direction != domain.TrendStable || trend.Percentage != 0 {
		t.Fatalf("expected stable/0 for zero baseline, got %s/%.1f", trend.Direction, trend.Percentage)
	}
}

func TestTrendOddLengthSplit(t *testing.T) {
	// Five values split 2/3 at the midpoint.
	trend := deriveTrend([]float64{100, 100, 50, 50, 50}, 5)
	if trend.Direction != domain.TrendImproving {
		t.Fatalf("expected improving, got %s", trend.Direction)
	}
	if trend.Percentage != 50 {
		t.Fatalf("expected 50%% change, got %.1f", trend.Percentage)
	}
}
