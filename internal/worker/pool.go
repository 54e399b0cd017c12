package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Pool consumes jobs and runs target checks on a bounded set of workers.
// The default of one worker matches a render-heavy page source; raise it
// only when the source tolerates concurrent sessions.
type Pool struct {
	jobs        <-chan Job
	runner      *Runner
	workerCount int
	logger      zerolog.Logger

	inflight sync.Map
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkerCount sets how many checks may run concurrently.
func WithWorkerCount(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithPoolLogger attaches a logger.
func WithPoolLogger(logger zerolog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool builds a Pool reading from jobs.
func NewPool(jobs <-chan Job, runner *Runner, opts ...PoolOption) *Pool {
	p := &Pool{
		jobs:        jobs,
		runner:      runner,
		workerCount: 1,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers and returns their WaitGroup.
func (p *Pool) Start(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx)
		}()
	}
	return &wg
}

func (p *Pool) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleJob(ctx, job)
		}
	}
}

// handleJob runs one check, guaranteeing at most one in-flight check per
// target identity: cycle N's decision is always based on the state left by
// cycle N-1, never interleaved with a concurrent update to the same target.
func (p *Pool) handleJob(ctx context.Context, job Job) {
	identity := job.Target.Identity()
	if _, busy := p.inflight.LoadOrStore(identity, struct{}{}); busy {
		p.logger.Warn().
			Str("target", job.Target.Label()).
			Uint64("cycle", job.Cycle).
			Msg("previous check still running, skipping")
		return
	}
	defer p.inflight.Delete(identity)

	p.runner.Check(ctx, job)
}
