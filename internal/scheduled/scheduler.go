package scheduled

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/chaincore/internal/instance"
)

// Options configures the maintenance job.
type Options struct {
	// Interval between ticks. Defaults to one second.
	Interval time.Duration

	// MaxPendingAttempts abandons a pending validation after that many
	// failed retries. Zero retries forever.
	MaxPendingAttempts int
}

// Callback returns the maintenance job for c. Each call logs a state dump
// when the instance has state dump logging on, then runs one pending
// validation pass.
func Callback(c *instance.Context, opts Options) func(context.Context) error {
	return func(ctx context.Context) error {
		if c.StateDumpLogging() {
			dump, err := NewStateDump(ctx, c)
			if err != nil {
				c.Logger().Warn("state dump failed", "error", err)
			} else {
				c.Logger().Debug("state dump\n" + dump.String())
			}
		}

		res, err := RunPendingValidations(ctx, c, opts.MaxPendingAttempts)
		if err != nil {
			return err
		}
		if res != (PassResult{}) {
			c.Logger().Info("pending validation pass",
				"resolved", res.Resolved,
				"pending", res.Pending,
				"abandoned", res.Abandoned,
				"failed", res.Failed,
			)
		}
		return nil
	}
}

// Scheduler runs a job on a fixed interval.
//
// Ticks do not overlap: a slow job delays the next tick instead of
// running concurrently with it.
type Scheduler struct {
	c        *instance.Context
	interval time.Duration
	job      func(context.Context) error
}

// NewScheduler creates a scheduler running Callback(c, opts).
func NewScheduler(c *instance.Context, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Scheduler{c: c, interval: opts.Interval, job: Callback(c, opts)}
}

// Tick runs the job once.
//
// A job parked on a stopped instance aborts with *instance.FatalError.
// Tick recovers it and returns it as an error.
func (s *Scheduler) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fe, ok := instance.AsFatal(r)
			if !ok {
				panic(r)
			}
			err = fe
		}
	}()

	start := time.Now()
	defer func() {
		s.c.Metrics().ObserveSchedulerTick(time.Since(start))
	}()
	return s.job(ctx)
}

// Run ticks until ctx is cancelled or the instance stops.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log := s.c.Logger()
	log.Info("scheduler starting", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopping: context cancelled")
			return ctx.Err()

		case <-ticker.C:
			if !s.c.IsAlive() {
				log.Info("scheduler stopping: instance stopped")
				return nil
			}
			if err := s.Tick(ctx); err != nil {
				var fe *instance.FatalError
				if errors.As(err, &fe) || instance.IsLifecycleError(err) {
					return fmt.Errorf("scheduler: %w", err)
				}
				log.Error("scheduled job failed", "error", err)
			}
		}
	}
}
