package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iho/pointledger/internal/infrastructure/metrics"
	"github.com/iho/pointledger/internal/usecase"
)

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New creates a scheduler whose jobs recover from panics.
func New(logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cronLogAdapter{logger: logger}

	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		logger: logger,
	}
}

// Add registers job under a standard cron spec or descriptor such as "@hourly".
func (s *Scheduler) Add(name, spec string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("schedule %s job %q: %w", name, spec, err)
	}
	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("scheduled job")
	return nil
}

// Start starts the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// OutboxCleanup deletes published outbox events older than the retention window.
type OutboxCleanup struct {
	outboxRepo usecase.OutboxRepository
	retention  time.Duration
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewOutboxCleanup creates the cleanup job.
func NewOutboxCleanup(outboxRepo usecase.OutboxRepository, retention time.Duration, m *metrics.Metrics, logger zerolog.Logger) *OutboxCleanup {
	return &OutboxCleanup{
		outboxRepo: outboxRepo,
		retention:  retention,
		timeout:    time.Minute,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Run performs one cleanup pass.
func (c *OutboxCleanup) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if _, err := c.RunContext(ctx); err != nil {
		c.logger.Error().Err(err).Msg("outbox cleanup failed")
	}
}

// RunContext deletes published events older than now minus retention and returns how many were removed.
func (c *OutboxCleanup) RunContext(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)

	deleted, err := c.outboxRepo.DeletePublished(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if c.metrics != nil {
		c.metrics.OutboxPurged.Add(float64(deleted))
	}
	c.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("outbox cleanup completed")

	return deleted, nil
}

// ConsistencyChecker is satisfied by usecase.LedgerUseCase.
type ConsistencyChecker interface {
	CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error)
}

// ConsistencyCheck periodically verifies that transfer legs balance.
type ConsistencyCheck struct {
	checker ConsistencyChecker
	timeout time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewConsistencyCheck creates the integrity job.
func NewConsistencyCheck(checker ConsistencyChecker, m *metrics.Metrics, logger zerolog.Logger) *ConsistencyCheck {
	return &ConsistencyCheck{
		checker: checker,
		timeout: 5 * time.Minute,
		metrics: m,
		logger:  logger,
	}
}

// Run performs one check and records the outcome.
func (c *ConsistencyCheck) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	report, err := c.checker.CheckConsistency(ctx)
	if report == nil {
		c.logger.Error().Err(err).Msg("ledger consistency check failed")
		return
	}

	if c.metrics != nil {
		if report.Consistent {
			c.metrics.LedgerConsistent.Set(1)
		} else {
			c.metrics.LedgerConsistent.Set(0)
		}
	}

	event := c.logger.Info()
	if !report.Consistent {
		event = c.logger.Error().Err(err)
	}
	event.
		Int64("transfer_out", report.Totals.TransferOut).
		Int64("transfer_in", report.Totals.TransferIn).
		Int64("unpaired_groups", report.Totals.UnpairedGroups).
		Bool("consistent", report.Consistent).
		Msg("ledger consistency check completed")
}

// cronLogAdapter routes cron's logr-style logging to zerolog.
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
