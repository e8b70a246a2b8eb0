package vitals

import (
	"errors"
	"testing"
	"time"

	"github.com/webpulse/api/internal/domain"
)

func storedMeasurement(id, name string, value float64, at time.Time) domain.Measurement {
	return domain.Measurement{
		ID:        id,
		Name:      name,
		Value:     value,
		Rating:    domain.RatingGood,
		Timestamp: at,
	}
}

func TestStoreQueryPreservesArrivalOrder(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	store := newRollingStore(func() time.Time { return now })

	// Appended out of timestamp order on purpose; the store must not re-sort.
	store.append(storedMeasurement("a", "LCP", 1000, now.Add(-2*time.Minute)))
	store.append(storedMeasurement("b", "LCP", 2000, now.Add(-5*time.Minute)))
	store.append(storedMeasurement("c", "LCP", 3000, now.Add(-1*time.Minute)))

	got, err := store.query(now.Add(-10*time.Minute), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 measurements, got %d", len(got))
	}
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ID != id {
			t.Fatalf("expected measurement %s at position %d, got %s", id, i, got[i].ID)
		}
	}
}

func TestStoreQueryBoundsInclusive(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	store := newRollingStore(func() time.Time { return now })

	store.append(storedMeasurement("edge-low", "LCP", 1, now.Add(-time.Hour)))
	store.append(storedMeasurement("edge-high", "LCP", 2, now))
	store.append(storedMeasurement("outside", "LCP", 3, now.Add(-2*time.Hour)))

	got, err := store.query(now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 measurements inside bounds, got %d", len(got))
	}
}

func TestStoreQueryInvalidRange(t *testing.T) {
	store := newRollingStore(nil)
	if _, err := store.query(time.Now(), time.Now().Add(-time.Hour)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestStoreEviction(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	store := newRollingStore(func() time.Time { return now })

	store.append(storedMeasurement("old", "LCP", 1, now.Add(-2*time.Hour)))
	store.append(storedMeasurement("fresh", "LCP", 2, now.Add(-30*time.Minute)))

	evicted := store.evictOlderThan(time.Hour)
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	got, err := store.query(now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Fatalf("expected only the fresh measurement to remain, got %v", got)
	}
}
