package vitals

import "errors"

var (
	// ErrInvalidMeasurement rejects malformed ingestion input. The rejection is
	// per measurement and never aborts the rest of a batch.
	ErrInvalidMeasurement = errors.New("vitals: invalid measurement")

	// ErrEmptyWindow signals that no measurements for the requested metric fall
	// inside the analyzed window.
	ErrEmptyWindow = errors.New("vitals: no measurements in window")

	// ErrInvalidRange reports a query whose lower bound exceeds its upper bound.
	ErrInvalidRange = errors.New("vitals: invalid time range")
)
