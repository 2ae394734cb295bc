// Package scheduler runs the periodic maintenance jobs of the service.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// FaultReporter refreshes the faulted transfer report.
type FaultReporter interface {
	ReportFaulted(ctx context.Context) (int, error)
}

// OutboxCleaner deletes outbox events published before a cutoff.
type OutboxCleaner interface {
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the cron specs and job settings.
type Config struct {
	FaultSweepSchedule    string
	OutboxCleanupSchedule string
	OutboxRetention       time.Duration
	// JobTimeout bounds a single job run.
	JobTimeout time.Duration
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	faults  FaultReporter
	outbox  OutboxCleaner
	metrics *metrics.Metrics
	logger  zerolog.Logger
	cfg     Config
	now     func() time.Time
}

// New creates a scheduler. Jobs start with Start.
func New(faults FaultReporter, outbox OutboxCleaner, m *metrics.Metrics, logger zerolog.Logger, cfg Config) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&printfAdapter{logger: logger})

	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		faults:  faults,
		outbox:  outbox,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start registers the jobs and starts the cron scheduler. A job with an
// empty schedule is not registered.
func (s *Scheduler) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"fault_sweep", s.cfg.FaultSweepSchedule, s.SweepFaults},
		{"outbox_cleanup", s.cfg.OutboxCleanupSchedule, s.CleanupOutbox},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.name, job.schedule, err)
		}
		s.logger.Info().Str("job", job.name).Str("schedule", job.schedule).Msg("job scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop stops scheduling and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// SweepFaults reports transfers held with a fault flag.
func (s *Scheduler) SweepFaults() {
	ctx, cancel := context.WithTimeout(s.logger.WithContext(context.Background()), s.cfg.JobTimeout)
	defer cancel()

	count, err := s.faults.ReportFaulted(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("fault sweep failed")
		return
	}
	if count > 0 {
		s.logger.Warn().Int("faulted_transfers", count).Msg("faulted transfers need attention")
	}
}

// CleanupOutbox deletes published events older than the retention window.
func (s *Scheduler) CleanupOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.cfg.OutboxRetention)
	deleted, err := s.outbox.DeletePublished(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("outbox cleanup failed")
		return
	}
	if s.metrics != nil {
		s.metrics.OutboxEventsDeleted.Add(float64(deleted))
	}
	s.logger.Info().Int64("deleted", deleted).Time("before", cutoff).Msg("outbox cleanup done")
}

type printfAdapter struct {
	logger zerolog.Logger
}

func (a *printfAdapter) Printf(format string, args ...interface{}) {
	a.logger.Info().Msgf(format, args...)
}
