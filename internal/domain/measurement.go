package domain

import "time"

// Rating classifies a measurement value against its metric thresholds.
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
)

// Measurement is a single client-reported performance observation. It is
// immutable once normalized; the rating is fixed at ingestion time and is not
// recomputed when thresholds change later.
type Measurement struct {
	ID             string
	Name           string
	Value          float64
	Delta          float64
	Rating         Rating
	NavigationType string
	SourceURL      string
	ClientContext  string
	Timestamp      time.Time
}

// Threshold holds the good/poor boundaries for one metric. Values at or below
// Good rate good, values above Poor rate poor, everything between rates
// needs-improvement.
type Threshold struct {
	Good float64
	Poor float64
}

// RatingCounts tallies measurements per rating bucket.
type RatingCounts struct {
	Good             int
	NeedsImprovement int
	Poor             int
}

// Total returns the number of measurements across all buckets.
func (c RatingCounts) Total() int {
	return c.Good + c.NeedsImprovement + c.Poor
}

// Add accumulates another set of counts.
func (c *RatingCounts) Add(other RatingCounts) {
	c.Good += other.Good
	c.NeedsImprovement += other.NeedsImprovement
	c.Poor += other.Poor
}
