package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/webpulse/api/internal/domain"
	"github.com/webpulse/api/internal/repository"
	"github.com/webpulse/api/internal/service/vitals"
)

const defaultFlushInterval = 30 * time.Second

// Service drains the engine's pending measurements and alerts to the archive
// on a fixed cadence. All blocking database work lives here, outside the
// engine's ingestion and read paths.
type Service struct {
	engine       *vitals.Engine
	measurements repository.MeasurementArchive
	alerts       repository.AlertArchive
	logger       *slog.Logger
	flushEvery   time.Duration
	retention    time.Duration
	now          func() time.Time
}

// New constructs an archiver. A nil archive disables persistence entirely.
func New(engine *vitals.Engine, measurements repository.MeasurementArchive, alerts repository.AlertArchive, logger *slog.Logger, flushEvery, retention time.Duration) *Service {
	if engine == nil || measurements == nil {
		return nil
	}
	if flushEvery <= 0 {
		flushEvery = defaultFlushInterval
	}
	if logger != nil {
		logger = logger.With("component", "archive")
	}
	return &Service{
		engine:       engine,
		measurements: measurements,
		alerts:       alerts,
		logger:       logger,
		flushEvery:   flushEvery,
		retention:    retention,
		now:          time.Now,
	}
}

// Restore imports the retention window from the archive back into the engine,
// typically on boot before serving traffic. Restored rows are drained off the
// pending queue so they are not re-archived.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if s == nil {
		return 0, nil
	}
	since := s.now().Add(-s.retention)
	archived, err := s.measurements.ListMeasurementsSince(ctx, since, 0)
	if err != nil {
		return 0, err
	}
	accepted, rejected := s.engine.Import(archived)
	s.engine.DrainPending()
	if rejected > 0 && s.logger != nil {
		s.logger.Warn("skipped malformed archive rows", "count", rejected)
	}
	return accepted, nil
}

// Run flushes on a ticker until the context is cancelled, then performs a
// final drain so shutdown loses nothing already ingested.
func (s *Service) Run(ctx context.Context) {
	if s == nil {
		return
	}
	if s.logger != nil {
		s.logger.Info("archiver started", "flush_every", s.flushEvery)
	}
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			if s.logger != nil {
				s.logger.Info("archiver stopped")
			}
			return
		case <-ticker.C:
			s.flush(ctx)
			s.prune(ctx)
		}
	}
}

func (s *Service) flush(ctx context.Context) {
	samples, fired := s.engine.DrainPending()
	if len(samples) > 0 {
		if err := s.measurements.InsertMeasurements(ctx, samples); err != nil && s.logger != nil {
			s.logger.Warn("failed to archive measurements", "error", err, "count", len(samples))
		}
	}
	if len(fired) > 0 && s.alerts != nil {
		if err := s.alerts.InsertAlerts(ctx, fired); err != nil && s.logger != nil {
			s.logger.Warn("failed to archive alerts", "error", err, "count", len(fired))
		}
	}
}

func (s *Service) prune(ctx context.Context) {
	if s.retention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.measurements.DeleteMeasurementsBefore(ctx, cutoff)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to prune archive", "error", err)
		}
		return
	}
	if deleted > 0 && s.logger != nil {
		s.logger.Info("pruned archived measurements", "count", deleted)
	}
}

// ArchivedAlerts exposes archived alert history for the HTTP boundary.
func (s *Service) ArchivedAlerts(ctx context.Context, since time.Time, limit int) ([]domain.Alert, error) {
	if s == nil || s.alerts == nil {
		return nil, nil
	}
	return s.alerts.ListAlertsSince(ctx, since, limit)
}
