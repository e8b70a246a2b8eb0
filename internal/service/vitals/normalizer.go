package vitals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/webpulse/api/internal/domain"
)

// RawMeasurement is the ingestion-boundary shape reported by browser
// collectors. Only Name and Value are required; everything else defaults.
type RawMeasurement struct {
	ID             string
	Name           string
	Value          *float64
	Delta          float64
	NavigationType string
	TimestampMS    int64
	URL            string
	UserAgent      string
}

// normalizer validates raw input and fixes its rating against the threshold
// table active at ingestion time.
type normalizer struct {
	thresholds map[string]domain.Threshold
	now        func() time.Time
}

func newNormalizer(thresholds map[string]domain.Threshold, now func() time.Time) *normalizer {
	if thresholds == nil {
		thresholds = map[string]domain.Threshold{}
	}
	if now == nil {
		now = time.Now
	}
	return &normalizer{thresholds: thresholds, now: now}
}

// normalize turns a raw record into an immutable Measurement. It fails only
// when name or value is absent or non-numeric; malformed optional fields are
// silently defaulted.
func (n *normalizer) normalize(raw RawMeasurement) (domain.Measurement, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return domain.Measurement{}, fmt.Errorf("%w: name is required", ErrInvalidMeasurement)
	}
	if raw.Value == nil {
		return domain.Measurement{}, fmt.Errorf("%w: value is required", ErrInvalidMeasurement)
	}
	value := *raw.Value
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return domain.Measurement{}, fmt.Errorf("%w: value is not a finite number", ErrInvalidMeasurement)
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = uuid.NewString()
	}
	timestamp := n.now().UTC()
	if raw.TimestampMS > 0 {
		timestamp = time.UnixMilli(raw.TimestampMS).UTC()
	}
	delta := raw.Delta
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		delta = 0
	}

	return domain.Measurement{
		ID:             id,
		Name:           name,
		Value:          value,
		Delta:          delta,
		Rating:         n.rate(name, value),
		NavigationType: strings.TrimSpace(raw.NavigationType),
		SourceURL:      strings.TrimSpace(raw.URL),
		ClientContext:  strings.TrimSpace(raw.UserAgent),
		Timestamp:      timestamp,
	}, nil
}

// rate applies the inclusive boundary semantics of the threshold table.
// Metrics without a configured threshold rate good so unrecognized metric
// names never raise false alarms.
func (n *normalizer) rate(name string, value float64) domain.Rating {
	threshold, ok := n.thresholds[name]
	if !ok {
		return domain.RatingGood
	}
	switch {
	case value <= threshold.Good:
		return domain.RatingGood
	case value <= threshold.Poor:
		return domain.RatingNeedsImprovement
	default:
		return domain.RatingPoor
	}
}
