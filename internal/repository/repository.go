package repository

import (
	"context"
	"time"

	"github.com/webpulse/api/internal/domain"
)

// MeasurementArchive persists normalized measurements for durable export and
// restore. The engine itself never touches it; the archiver collaborator does.
type MeasurementArchive interface {
	InsertMeasurements(ctx context.Context, measurements []domain.Measurement) error
	ListMeasurementsSince(ctx context.Context, since time.Time, limit int) ([]domain.Measurement, error)
	DeleteMeasurementsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertArchive persists fired alerts for audit and external dispatchers.
type AlertArchive interface {
	InsertAlerts(ctx context.Context, alerts []domain.Alert) error
	ListAlertsSince(ctx context.Context, since time.Time, limit int) ([]domain.Alert, error)
}
