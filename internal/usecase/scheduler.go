package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/ports"
)

// Runner executes one pipeline run for a given day.
type Runner interface {
	Run(ctx context.Context, day time.Time) (*RunSummary, error)
}

// DigestScheduler ties a scheduler driver to the pipeline so digests are
// produced on a recurring schedule.
type DigestScheduler struct {
	driver ports.Scheduler
	runner Runner
	logger *slog.Logger
}

func NewDigestScheduler(driver ports.Scheduler, runner Runner, logger *slog.Logger) *DigestScheduler {
	return &DigestScheduler{
		driver: driver,
		runner: runner,
		logger: logger,
	}
}

// Start begins firing pipeline runs at the driver's schedule. Each trigger
// runs the pipeline for the trigger day; failures are logged and do not
// stop future triggers.
func (s *DigestScheduler) Start(ctx context.Context) error {
	return s.driver.Start(ctx, func(now time.Time) {
		summary, err := s.runner.Run(ctx, now)
		if err != nil {
			if summary == nil {
				s.logger.Error("scheduled run failed", "error", err)
			} else {
				s.logger.Error("scheduled run failed",
					"run_id", summary.RunID,
					"run_date", summary.RunDate,
					"error", err)
			}
			return
		}
		s.logger.Info("scheduled run complete",
			"run_id", summary.RunID,
			"run_date", summary.RunDate,
			"kept", summary.Kept)
	})
}

func (s *DigestScheduler) Stop(ctx context.Context) error {
	return s.driver.Stop(ctx)
}
