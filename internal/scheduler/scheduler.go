// Package scheduler runs the recurring jobs: the morning pipeline cycle and
// the intraday position sweep. Cron specs come from configuration and are
// interpreted in US Eastern time, since both jobs key off the market day.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// Job is a unit of scheduled work. Long jobs honor ctx cancellation.
type Job func(ctx context.Context) error

// Scheduler wraps the cron runner with job registration and logging.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	ctx  context.Context
}

// New creates a scheduler. Overlapping runs of the same job are skipped
// rather than stacked, so a slow pipeline cycle cannot pile up behind itself.
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(utils.Eastern),
			cron.WithChain(
				cron.SkipIfStillRunning(cron.DiscardLogger),
				cron.Recover(cron.DiscardLogger),
			),
		),
		log: log,
	}
}

// Add registers a named job on the given cron spec.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		s.log.Info("job disabled, no schedule configured", zap.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		s.log.Info("job starting", zap.String("job", name))
		if err := job(s.ctx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.log.Info("job finished", zap.String("job", name))
	})
	if err != nil {
		return fmt.Errorf("schedule %s on %q: %w", name, spec, err)
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled. Jobs already
// running are allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// Register wires the standard jobs from the schedule configuration.
func (s *Scheduler) Register(cfg config.ScheduleConfig, pipeline, positions Job) error {
	if err := s.Add("pipeline", cfg.PipelineCron, pipeline); err != nil {
		return err
	}
	return s.Add("positions", cfg.PositionsCron, positions)
}
