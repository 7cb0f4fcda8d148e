package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ReconciliationScheduler runs the sweep on a cron schedule.
type ReconciliationScheduler struct {
	cron     *cron.Cron
	service  ReconciliationService
	logger   *slog.Logger
	schedule string
	timeout  time.Duration
}

// NewReconciliationScheduler returns nil when schedule is empty.
func NewReconciliationScheduler(schedule string, service ReconciliationService, logger *slog.Logger) (*ReconciliationScheduler, error) {
	if schedule == "" {
		return nil, nil
	}
	s := &ReconciliationScheduler{
		cron:     cron.New(),
		service:  service,
		logger:   logger,
		schedule: schedule,
		timeout:  10 * time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *ReconciliationScheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("Reconciliation scheduler started", "schedule", s.schedule)
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *ReconciliationScheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Reconciliation scheduler stop timed out")
	}
}

func (s *ReconciliationScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.service.Sync(ctx)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			s.logger.Info("Scheduled sweep skipped, another sweep is running")
			return
		}
		s.logger.Error("Scheduled sweep failed", "error", err)
		return
	}
	s.logger.Info("Scheduled sweep completed", "synced", result.Synced, "skipped", result.Skipped, "failed", result.Failed)
}
