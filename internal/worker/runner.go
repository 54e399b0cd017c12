package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagewatchhq/pagewatch/internal/content"
	"github.com/pagewatchhq/pagewatch/internal/events"
	"github.com/pagewatchhq/pagewatch/internal/fetch"
	"github.com/pagewatchhq/pagewatch/internal/metrics"
	"github.com/pagewatchhq/pagewatch/internal/monitor"
	"github.com/pagewatchhq/pagewatch/internal/notify"
	"github.com/pagewatchhq/pagewatch/internal/screenshot"
	"github.com/pagewatchhq/pagewatch/internal/state"
	"github.com/pagewatchhq/pagewatch/pkg/types"
)

// Config holds the static configuration for a Runner.
type Config struct {
	FetchTimeout     time.Duration
	FailureThreshold int
}

// Dependencies are the collaborators a Runner drives per check. Source,
// Store, and Queue are required; the rest default to no-ops.
type Dependencies struct {
	Source   fetch.Source
	Store    *state.Store
	Queue    *notify.Queue
	Capturer screenshot.Capturer
	Events   events.Recorder
	Metrics  *metrics.Store
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Runner executes one target check end to end: fetch, normalize, decide,
// then apply side effects (notify, screenshot, persist). The decision
// itself is the pure monitor.Decide; everything here is plumbing around it.
type Runner struct {
	source    fetch.Source
	store     *state.Store
	queue     *notify.Queue
	capturer  screenshot.Capturer
	events    events.Recorder
	metrics   *metrics.Store
	logger    zerolog.Logger
	now       func() time.Time
	timeout   time.Duration
	threshold int
}

// NewRunner builds a Runner from configuration and dependencies.
func NewRunner(cfg Config, deps Dependencies) (*Runner, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("page source is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("notification queue is required")
	}
	rec := deps.Events
	if rec == nil {
		rec = events.NoopRecorder{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	threshold := cfg.FailureThreshold
	if threshold < 0 {
		threshold = 0
	}
	return &Runner{
		source:    deps.Source,
		store:     deps.Store,
		queue:     deps.Queue,
		capturer:  deps.Capturer,
		events:    rec,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       now,
		timeout:   timeout,
		threshold: threshold,
	}, nil
}

// Check evaluates one target. Errors are fully handled here: a failing
// target never affects the rest of the cycle.
func (r *Runner) Check(ctx context.Context, job Job) {
	target := job.Target
	identity := target.Identity()
	logger := r.logger.With().Str("target", target.Label()).Str("url", target.URL).Logger()

	if r.metrics != nil {
		r.metrics.IncChecks()
	}

	prev := r.store.Get(identity)

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	raw, err := r.source.Fetch(fetchCtx, target.URL)
	cancel()

	now := r.now().UTC()
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown in flight: an abandoned fetch never mutates state.
			return
		}
		r.applyFailure(target, identity, prev, err, now, logger)
		return
	}

	r.applySuccess(ctx, target, identity, prev, raw, now, logger)
}

func (r *Runner) applyFailure(target monitor.Target, identity string, prev types.TargetState, fetchErr error, now time.Time, logger zerolog.Logger) {
	if r.metrics != nil {
		r.metrics.IncFetchFailures()
	}

	next, escalate := monitor.ObserveFailure(prev, r.threshold, now)

	logger.Warn().
		Err(fetchErr).
		Str("kind", string(fetch.KindOf(fetchErr))).
		Int("consecutive_failures", next.ConsecutiveFailures).
		Msg("fetch failed")

	if escalate {
		if r.metrics != nil {
			r.metrics.IncUnreachable()
		}
		r.queue.Enqueue(notify.Message{
			Category:  notify.CategoryUnreachable,
			TargetKey: identity,
			Text:      notify.UnreachableText(target, next.ConsecutiveFailures),
			CreatedAt: now,
		})
		r.events.Record(types.Event{
			Type:      types.EventUnreachable,
			Timestamp: now,
			TargetKey: identity,
			URL:       target.URL,
			Details:   map[string]any{"consecutive_failures": next.ConsecutiveFailures},
		})
	}

	r.persist(identity, next, logger)
}

func (r *Runner) applySuccess(ctx context.Context, target monitor.Target, identity string, prev types.TargetState, raw string, now time.Time, logger zerolog.Logger) {
	canonical, hash := content.Normalize(raw)
	wasUnreachable := prev.UnreachableNotified

	var decision monitor.Decision
	if prev.LastPresent != types.PresenceUnknown && prev.LastPresent != "" && hash == prev.LastContentHash {
		// Identical content cannot have crossed an edge; skip the
		// presence check entirely.
		decision = monitor.Decision{Next: prev.LastPresent}
		logger.Debug().Msg("content unchanged")
	} else {
		observed := content.Contains(canonical, target.SearchText)
		decision = monitor.Decide(prev.LastPresent, observed, target.Mode)
	}

	next := monitor.ObserveSuccess(prev, decision, hash, now)

	if decision.Alert {
		r.emitAlert(ctx, target, identity, canonical, now, logger)
	} else if prev.LastPresent != decision.Next {
		logger.Info().
			Str("from", string(prev.LastPresent)).
			Str("to", string(decision.Next)).
			Msg("presence changed")
	}

	if wasUnreachable {
		logger.Info().Msg("target reachable again")
		r.events.Record(types.Event{
			Type:      types.EventRecovered,
			Timestamp: now,
			TargetKey: identity,
			URL:       target.URL,
		})
	}

	r.persist(identity, next, logger)
}

func (r *Runner) emitAlert(ctx context.Context, target monitor.Target, identity, canonical string, now time.Time, logger zerolog.Logger) {
	direction := notify.DirectionFor(target.Mode)

	if r.metrics != nil {
		r.metrics.IncAlerts()
	}
	logger.Info().
		Str("search_text", target.SearchText).
		Str("direction", string(direction)).
		Msg("transition detected")

	r.queue.Enqueue(notify.Message{
		Category:  notify.CategoryAlert,
		TargetKey: identity,
		Text:      notify.AlertText(target, direction, canonical),
		CreatedAt: now,
	})

	details := map[string]any{
		"search_text": target.SearchText,
		"direction":   string(direction),
	}
	if r.capturer != nil {
		if path, err := r.capturer.Capture(ctx, target.URL, canonical); err != nil {
			logger.Warn().Err(err).Msg("screenshot capture failed")
		} else {
			logger.Info().Str("path", path).Msg("screenshot saved")
			details["screenshot"] = path
		}
	}

	r.events.Record(types.Event{
		Type:      types.EventAlert,
		Timestamp: now,
		TargetKey: identity,
		URL:       target.URL,
		Details:   details,
	})
}

func (r *Runner) persist(identity string, st types.TargetState, logger zerolog.Logger) {
	if err := r.store.Put(identity, st); err != nil {
		if r.metrics != nil {
			r.metrics.IncStateSaveFailures()
		}
		// The in-memory state remains authoritative; the next successful
		// save will catch the file up.
		logger.Error().Err(err).Msg("state save failed")
	}
}
