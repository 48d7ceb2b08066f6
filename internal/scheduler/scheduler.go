package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval tick.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	RunOnStart   bool
}

// Scheduler drives the periodic poll loop. The next tick is computed after
// the current one returns, so a slow cycle skips ticks instead of queueing
// them.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled. Tick errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if !s.wait(ctx, s.opts.StartupDelay) {
			return ctx.Err()
		}
	}

	if s.opts.RunOnStart {
		s.execute(ctx, tick)
	}

	for {
		if !s.wait(ctx, s.opts.Interval) {
			return ctx.Err()
		}
		s.execute(ctx, tick)
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc) {
	s.logger.Info().Msg("executing scheduled tick")
	if err := tick(ctx); err != nil {
		s.logger.Error().Err(err).Msg("tick execution failed")
	}
}

func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	s.logger.Debug().Dur("delay", d).Msg("waiting for next tick")
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
