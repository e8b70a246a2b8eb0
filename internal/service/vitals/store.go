package vitals

import (
	"sync"
	"time"

	"github.com/webpulse/api/internal/domain"
)

// rollingStore retains normalized measurements in arrival order. Appends are
// serialized by the mutex; queries copy matches out under the lock so readers
// never hold up later appends. Out-of-order timestamps are kept as received
// and never re-sorted.
type rollingStore struct {
	mu           sync.Mutex
	measurements []domain.Measurement
	now          func() time.Time
}

func newRollingStore(now func() time.Time) *rollingStore {
	if now == nil {
		now = time.Now
	}
	return &rollingStore{now: now}
}

func (s *rollingStore) append(m domain.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measurements = append(s.measurements, m)
}

// query returns every retained measurement whose timestamp falls inside
// [since, until], preserving arrival order. The full retained set is scanned;
// eviction keeps it bounded.
func (s *rollingStore) query(since, until time.Time) ([]domain.Measurement, error) {
	if since.After(until) {
		return nil, ErrInvalidRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.Measurement, 0)
	for _, m := range s.measurements {
		if m.Timestamp.Before(since) || m.Timestamp.After(until) {
			continue
		}
		matched = append(matched, m)
	}
	return matched, nil
}

// evictOlderThan drops measurements older than maxAge relative to now and
// reports how many were removed.
func (s *rollingStore) evictOlderThan(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.measurements[:0]
	for _, m := range s.measurements {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, m)
	}
	evicted := len(s.measurements) - len(kept)
	s.measurements = kept
	return evicted
}

func (s *rollingStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.measurements)
}
