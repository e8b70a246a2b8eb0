package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webpulse/api/internal/domain"
	"github.com/webpulse/api/internal/repository"
)

// Repository implements the archive interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.MeasurementArchive = (*Repository)(nil)
	_ repository.AlertArchive       = (*Repository)(nil)
)

// InsertMeasurements writes a batch of measurements. Re-imported rows with a
// known ID are ignored so restore cycles stay idempotent.
func (r *Repository) InsertMeasurements(ctx context.Context, measurements []domain.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}
	const query = `INSERT INTO measurements (id, name, value, delta, rating, navigation_type, source_url, client_context, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	batch := &pgx.Batch{}
	for _, m := range measurements {
		batch.Queue(query, m.ID, m.Name, m.Value, m.Delta, string(m.Rating), m.NavigationType, m.SourceURL, m.ClientContext, m.Timestamp)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range measurements {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListMeasurementsSince returns archived measurements recorded at or after
// since, oldest first by recorded timestamp. A non-positive limit returns the
// full range; a capped ascending read would drop the newest rows, which are
// exactly what restore needs.
func (r *Repository) ListMeasurementsSince(ctx context.Context, since time.Time, limit int) ([]domain.Measurement, error) {
	query := `SELECT id, name, value, delta, rating, navigation_type, source_url, client_context, recorded_at
		FROM measurements
		WHERE recorded_at >= $1
		ORDER BY recorded_at ASC`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	measurements := make([]domain.Measurement, 0)
	for rows.Next() {
		var m domain.Measurement
		var rating string
		if err := rows.Scan(&m.ID, &m.Name, &m.Value, &m.Delta, &rating, &m.NavigationType, &m.SourceURL, &m.ClientContext, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Rating = domain.Rating(rating)
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

// DeleteMeasurementsBefore prunes archive rows older than cutoff.
func (r *Repository) DeleteMeasurementsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM measurements WHERE recorded_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertAlerts writes fired alerts.
func (r *Repository) InsertAlerts(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	const query = `INSERT INTO alerts (id, severity, metric, message, value, threshold, fired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	batch := &pgx.Batch{}
	for _, a := range alerts {
		batch.Queue(query, a.ID, string(a.Severity), a.Metric, a.Message, a.Value, a.Threshold, a.Timestamp)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range alerts {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListAlertsSince returns archived alerts fired at or after since, newest
// first.
func (r *Repository) ListAlertsSince(ctx context.Context, since time.Time, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `SELECT id, severity, metric, message, value, threshold, fired_at
		FROM alerts
		WHERE fired_at >= $1
		ORDER BY fired_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0)
	for rows.Next() {
		var a domain.Alert
		var severity string
		if err := rows.Scan(&a.ID, &severity, &a.Metric, &a.Message, &a.Value, &a.Threshold, &a.Timestamp); err != nil {
			return nil, err
		}
		a.Severity = domain.AlertSeverity(severity)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
