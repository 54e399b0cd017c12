package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagewatchhq/pagewatch/internal/monitor"
	"github.com/pagewatchhq/pagewatch/internal/worker"
)

// Scheduler drives one polling cycle per interval: every tick it enqueues a
// job for each configured target and then signals the cycle hook (heartbeat,
// cycle metrics). The target set is fixed for the lifetime of a run.
type Scheduler struct {
	jobCh    chan<- worker.Job
	targets  []monitor.Target
	interval time.Duration

	now     func() time.Time
	onCycle func(time.Time)
	logger  zerolog.Logger

	cycle uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOnCycle installs a hook invoked once per completed cycle, regardless
// of individual target outcomes.
func WithOnCycle(fn func(time.Time)) Option {
	return func(s *Scheduler) {
		s.onCycle = fn
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New builds a Scheduler feeding jobCh. Intervals below one second are
// clamped to a second to keep a misconfigured watcher from hammering pages.
func New(jobCh chan<- worker.Job, targets []monitor.Target, interval time.Duration, opts ...Option) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	s := &Scheduler{
		jobCh:    jobCh,
		targets:  targets,
		interval: interval,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes an immediate first cycle, then one cycle per interval until
// the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runCycle(s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(s.now())
		}
	}
}

func (s *Scheduler) runCycle(now time.Time) {
	s.cycle++
	for _, target := range s.targets {
		job := worker.Job{
			Target:       target,
			Cycle:        s.cycle,
			ScheduledFor: now,
		}
		select {
		case s.jobCh <- job:
		default:
			// The pool is saturated and the buffer is full. The target is
			// retried next cycle; dropping beats blocking the loop.
			s.logger.Warn().
				Str("target", target.Label()).
				Uint64("cycle", s.cycle).
				Msg("job channel full, skipping target this cycle")
		}
	}
	if s.onCycle != nil {
		s.onCycle(now)
	}
}
