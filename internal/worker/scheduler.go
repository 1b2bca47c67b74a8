package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"financas/internal/log"
)

const jobTimeout = 30 * time.Second

// Scheduler runs the periodic budget jobs.
type Scheduler struct {
	cron    *cron.Cron
	monitor *BudgetMonitor
	logger  *log.Logger
}

// NewScheduler registers the refresh and rollover jobs. Specs use the
// standard five-field cron syntax or descriptors such as @hourly.
func NewScheduler(monitor *BudgetMonitor, refreshSpec, rolloverSpec string, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Scheduler{
		cron:    cron.New(),
		monitor: monitor,
		logger:  logger.WithComponent(log.ComponentWorker),
	}

	if _, err := s.cron.AddFunc(refreshSpec, s.runRefresh); err != nil {
		return nil, fmt.Errorf("schedule budget refresh %q: %w", refreshSpec, err)
	}
	if _, err := s.cron.AddFunc(rolloverSpec, s.runRollover); err != nil {
		return nil, fmt.Errorf("schedule budget rollover %q: %w", rolloverSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.monitor.Refresh(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled budget refresh failed", log.FieldOperation, log.OpRefresh, log.FieldError, err)
	}
}

func (s *Scheduler) runRollover() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.monitor.Rollover(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled budget rollover failed", log.FieldOperation, log.OpRollover, log.FieldError, err)
		return
	}
	if n > 0 {
		if _, err := s.monitor.Refresh(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Refresh after rollover failed", log.FieldError, err)
		}
	}
}
