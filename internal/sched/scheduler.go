package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/casafind/casafind/pkg/membership"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule runs the expiry sweep nightly at 03:00.
const DefaultSweepSchedule = "0 3 * * *"

// Sweeper downgrades lapsed paid memberships in bulk.
type Sweeper interface {
	Sweep(ctx context.Context) (membership.SweepReport, error)
}

// Scheduler runs the expiry sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler wires the cron runner. A panicking job is recovered and
// logged rather than taking the process down.
func NewScheduler(sweeper Sweeper, logger *zap.Logger, sweepSchedule string, jobTimeout time.Duration) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper dependency is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sweepSchedule == "" {
		sweepSchedule = DefaultSweepSchedule
	}
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Minute
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	runner := cron.New(cron.WithChain(cron.Recover(cronLogger)))
	scheduler := &Scheduler{
		cron:    runner,
		sweeper: sweeper,
		logger:  logger,
		timeout: jobTimeout,
	}
	if _, err := runner.AddFunc(sweepSchedule, scheduler.runSweep); err != nil {
		return nil, fmt.Errorf("schedule expiry sweep: %w", err)
	}
	logger.Info("scheduled expiry sweep", zap.String("schedule", sweepSchedule))
	return scheduler, nil
}

// Start begins running scheduled jobs.
func (scheduler *Scheduler) Start() {
	scheduler.cron.Start()
}

// Stop halts scheduling and returns a context that completes once running
// jobs finish.
func (scheduler *Scheduler) Stop() context.Context {
	return scheduler.cron.Stop()
}

func (scheduler *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduler.timeout)
	defer cancel()

	report, err := scheduler.sweeper.Sweep(ctx)
	if err != nil {
		scheduler.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	scheduler.logger.Info("expiry sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("downgraded", report.Downgraded),
		zap.Int("failed", report.Failed),
	)
}
