package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pagewatchhq/pagewatch/internal/metrics"
)

// Option configures a Dispatcher instance.
type Option func(*Dispatcher)

// WithMaxAttempts overrides how many times one message is tried before it
// is given up on.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithRetrySleep customises the backoff between attempts for one message.
func WithRetrySleep(dur time.Duration) Option {
	return func(d *Dispatcher) {
		if dur > 0 {
			d.retrySleep = dur
		}
	}
}

// WithIdleSleep customises the sleep interval when the queue is empty.
func WithIdleSleep(dur time.Duration) Option {
	return func(d *Dispatcher) {
		if dur > 0 {
			d.idleSleep = dur
		}
	}
}

// WithRateLimit throttles outbound deliveries.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(d *Dispatcher) {
		d.limiter = limiter
	}
}

// WithMetrics attaches a notify metrics recorder.
func WithMetrics(rec metrics.NotifyRecorder) Option {
	return func(d *Dispatcher) {
		d.metrics = rec
	}
}

// Dispatcher drains the notification queue and hands messages to the sink.
// Delivery failures are retried a bounded number of times and then logged
// and dropped: notification trouble must never block the poll loop or
// accumulate forever.
type Dispatcher struct {
	queue       *Queue
	sink        Sink
	logger      zerolog.Logger
	maxAttempts int
	retrySleep  time.Duration
	idleSleep   time.Duration
	limiter     *rate.Limiter
	metrics     metrics.NotifyRecorder
}

// NewDispatcher constructs a Dispatcher. The queue and sink are required.
func NewDispatcher(queue *Queue, sink Sink, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:       queue,
		sink:        sink,
		logger:      logger,
		maxAttempts: 3,
		retrySleep:  2 * time.Second,
		idleSleep:   200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run blocks until the context is cancelled, delivering queued messages in
// arrival order.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.queue == nil {
		return errors.New("dispatcher queue is nil")
	}
	if d.sink == nil {
		return errors.New("dispatcher sink is nil")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := d.queue.Drain(16)
		if len(batch) == 0 {
			if !sleep(ctx, d.idleSleep) {
				return ctx.Err()
			}
			continue
		}

		for _, msg := range batch {
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
		}
		err := d.sink.Send(ctx, msg)
		if err == nil {
			if d.metrics != nil {
				d.metrics.IncNotifySent()
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		d.logger.Warn().
			Err(err).
			Str("category", string(msg.Category)).
			Str("target", msg.TargetKey).
			Int("attempt", attempt).
			Msg("notification delivery failed")
		if attempt < d.maxAttempts && !sleep(ctx, d.retrySleep) {
			return
		}
	}

	if d.metrics != nil {
		d.metrics.IncNotifyFailures()
	}
	d.logger.Error().
		Str("category", string(msg.Category)).
		Str("target", msg.TargetKey).
		Msg("giving up on notification after repeated failures")
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
