// Package scheduler repeats pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one scheduled unit of work. Its error is logged and does not stop the schedule.
type Task func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	spec   string
	task   Task
	logger *zap.Logger

	// running guards against overlapping runs when a run outlasts the interval.
	running sync.Mutex
}

// New validates spec ("@every 6h", "0 */6 * * *") and returns a scheduler for task.
func New(spec string, task Task, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "invalid schedule %q", spec),
			`use a cron expression or a descriptor like "@every 6h"`,
		)
	}

	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		task:   task,
		logger: logger.With(zap.String("schedule", spec)),
	}, nil
}

// Run executes the task once immediately, then on every tick until ctx is
// cancelled. It waits for an in-flight run before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return errors.Wrap(err, "registering scheduled run")
	}

	s.runOnce(ctx)
	if ctx.Err() != nil {
		return nil
	}

	s.cron.Start()
	s.logger.Info("scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("previous run still in progress, skipping tick")
		return
	}
	defer s.running.Unlock()

	if ctx.Err() != nil {
		return
	}

	s.logger.Info("scheduled run started")
	if err := s.task(ctx); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled run finished")
}
