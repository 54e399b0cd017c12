package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/pagewatchhq/pagewatch/internal/monitor"
	"github.com/pagewatchhq/pagewatch/internal/scheduler"
	"github.com/pagewatchhq/pagewatch/internal/worker"
)

// Option configures the assembled runtime.
type Option func(*config)

type config struct {
	jobBuffer     int
	schedulerOpts []scheduler.Option
	poolOpts      []worker.PoolOption
}

// WithJobBuffer sets the capacity of the jobs channel between the
// scheduler and the worker pool.
func WithJobBuffer(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.jobBuffer = size
		}
	}
}

// WithSchedulerOptions forwards options to the cycle scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(c *config) {
		c.schedulerOpts = append(c.schedulerOpts, opts...)
	}
}

// WithPoolOptions forwards options to the worker pool.
func WithPoolOptions(opts ...worker.PoolOption) Option {
	return func(c *config) {
		c.poolOpts = append(c.poolOpts, opts...)
	}
}

// WithNow overrides the scheduler clock.
func WithNow(now func() time.Time) Option {
	return WithSchedulerOptions(scheduler.WithNow(now))
}

// Runtime owns the jobs channel connecting the cycle scheduler to the
// worker pool.
type Runtime struct {
	jobs      chan worker.Job
	scheduler *scheduler.Scheduler
	pool      *worker.Pool
}

// New assembles a runtime for a fixed target set.
func New(targets []monitor.Target, interval time.Duration, runner *worker.Runner, opts ...Option) *Runtime {
	cfg := config{
		jobBuffer: 2 * len(targets),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.jobBuffer <= 0 {
		cfg.jobBuffer = 16
	}

	jobs := make(chan worker.Job, cfg.jobBuffer)
	return &Runtime{
		jobs:      jobs,
		scheduler: scheduler.New(jobs, targets, interval, cfg.schedulerOpts...),
		pool:      worker.NewPool(jobs, runner, cfg.poolOpts...),
	}
}

// Start launches the pool and the scheduler loop. The returned function
// blocks until both have wound down after context cancellation.
func (r *Runtime) Start(ctx context.Context) func() {
	workerWG := r.pool.Start(ctx)

	var schedWG sync.WaitGroup
	schedWG.Add(1)
	go func() {
		defer schedWG.Done()
		_ = r.scheduler.Run(ctx)
	}()

	return func() {
		schedWG.Wait()
		workerWG.Wait()
	}
}

// JobsChannel exposes the internal channel for diagnostics and tests.
func (r *Runtime) JobsChannel() chan<- worker.Job {
	return r.jobs
}
