package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pagewatchhq/pagewatch/internal/config"
	"github.com/pagewatchhq/pagewatch/internal/content"
	"github.com/pagewatchhq/pagewatch/internal/events"
	"github.com/pagewatchhq/pagewatch/internal/fetch"
	"github.com/pagewatchhq/pagewatch/internal/health"
	"github.com/pagewatchhq/pagewatch/internal/logging"
	"github.com/pagewatchhq/pagewatch/internal/metrics"
	"github.com/pagewatchhq/pagewatch/internal/notify"
	"github.com/pagewatchhq/pagewatch/internal/runtime"
	"github.com/pagewatchhq/pagewatch/internal/scheduler"
	"github.com/pagewatchhq/pagewatch/internal/screenshot"
	"github.com/pagewatchhq/pagewatch/internal/state"
	"github.com/pagewatchhq/pagewatch/internal/worker"
)

const (
	defaultNotifyQueueCap = 256
	notifyRatePerSecond   = 1
	notifyBurst           = 5
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "check":
		err = check(ctx, os.Args[2:])
	case "healthcheck":
		err = healthcheck(ctx, os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("pagewatch - page change watcher")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagewatch run [--config /etc/pagewatch/config.yaml]")
	fmt.Println("  pagewatch check [--config path]      fetch each target once and print its presence")
	fmt.Println("  pagewatch healthcheck [--config path]  exit non-zero if the watcher heartbeat is stale")
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.Log)
	logger.Info().
		Int("targets", len(cfg.Targets)).
		Dur("poll_interval", cfg.PollInterval).
		Str("data_dir", cfg.DataDir).
		Msg("watcher starting")

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	store := state.Open(state.Path(cfg.DataDir), logger)
	metricsStore := metrics.NewStore()

	journal, err := events.OpenJournal(cfg.DataDir, logger)
	if err != nil {
		return fmt.Errorf("open event journal: %w", err)
	}
	defer journal.Close()
	recorder := events.NewMulti(journal)

	source, err := fetch.NewHTTPSource(fetch.Config{}, fetch.Dependencies{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
	})
	if err != nil {
		return fmt.Errorf("init page source: %w", err)
	}

	queue := notify.NewQueue(defaultNotifyQueueCap)
	queue.SetEventRecorder(recorder)
	queue.SetMetricsRecorder(metricsStore.QueueRecorder())

	var sink notify.Sink
	if cfg.WebhookURL != "" {
		sink, err = notify.NewWebhookSink(
			notify.Config{WebhookURL: cfg.WebhookURL},
			notify.Dependencies{HTTPClient: &http.Client{Timeout: 15 * time.Second}},
		)
		if err != nil {
			return fmt.Errorf("init webhook sink: %w", err)
		}
	} else {
		logger.Warn().Msg("no webhook configured, notifications go to the log only")
		sink = notify.NewConsoleSink(logger)
	}

	dispatcher := notify.NewDispatcher(queue, sink, logger,
		notify.WithRateLimit(rate.NewLimiter(rate.Limit(notifyRatePerSecond), notifyBurst)),
		notify.WithMetrics(metricsStore.NotifyRecorder()),
	)

	capturer := screenshot.NewFileCapturer(filepath.Join(cfg.DataDir, "screens"))

	runner, err := worker.NewRunner(
		worker.Config{
			FetchTimeout:     cfg.FetchTimeout,
			FailureThreshold: cfg.FailureThreshold,
		},
		worker.Dependencies{
			Source:   source,
			Store:    store,
			Queue:    queue,
			Capturer: capturer,
			Events:   recorder,
			Metrics:  metricsStore,
			Logger:   logger,
		},
	)
	if err != nil {
		return fmt.Errorf("init runner: %w", err)
	}

	heartbeat := health.NewHeartbeat(health.HeartbeatPath(cfg.DataDir))
	onCycle := func(now time.Time) {
		metricsStore.IncCycles()
		if err := heartbeat.Touch(); err != nil {
			logger.Warn().Err(err).Msg("heartbeat write failed")
		}
	}

	rt := runtime.New(cfg.Targets, cfg.PollInterval, runner,
		runtime.WithSchedulerOptions(scheduler.WithOnCycle(onCycle), scheduler.WithLogger(logger)),
		runtime.WithPoolOptions(worker.WithWorkerCount(cfg.Workers), worker.WithPoolLogger(logger)),
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now().UTC()
	queue.Enqueue(notify.Message{
		Category:  notify.CategoryStatus,
		Text:      notify.StartupText(cfg.Targets, cfg.PollInterval, startedAt),
		CreatedAt: startedAt,
	})

	grp, groupCtx := errgroup.WithContext(runCtx)

	// The scheduler and pool run under the group context so that a failed
	// group member (for example a monitoring server that cannot bind) winds
	// down the whole watcher instead of leaving the poll loop alive with
	// notification delivery dead.
	wait := rt.Start(groupCtx)

	grp.Go(func() error {
		if err := dispatcher.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	grp.Go(func() error {
		err := runStatusPing(groupCtx, cfg, store, queue)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if cfg.MonitorAddr != "" {
		checker := health.NewChecker(health.HeartbeatPath(cfg.DataDir), cfg.PollInterval)
		grp.Go(func() error {
			return serveMonitoring(groupCtx, cfg.MonitorAddr, metricsStore, checker, logger)
		})
	}

	grp.Go(func() error {
		<-groupCtx.Done()
		wait()
		return nil
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		return err
	}

	logger.Info().Msg("watcher stopped")
	return nil
}

// runStatusPing sends a periodic "still alive" summary so a silent watcher
// can be told apart from a watcher with nothing to report.
func runStatusPing(ctx context.Context, cfg config.Config, store *state.Store, queue *notify.Queue) error {
	if cfg.StatusInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			queue.Enqueue(notify.Message{
				Category:  notify.CategoryStatus,
				Text:      notify.StatusText(cfg.Targets, store.Snapshot(), now),
				CreatedAt: now,
			})
		}
	}
}

func serveMonitoring(ctx context.Context, addr string, store *metrics.Store, checker *health.Checker, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.NewHTTPHandler(store))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := checker.Check(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("monitoring endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// check fetches every configured target once and prints whether its
// fragment is currently present. Saved state is not read or modified, so
// it is safe to run next to a live watcher.
func check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source, err := fetch.NewHTTPSource(fetch.Config{}, fetch.Dependencies{
		HTTPClient: &http.Client{Timeout: cfg.FetchTimeout},
	})
	if err != nil {
		return fmt.Errorf("init page source: %w", err)
	}

	var failures int
	for _, target := range cfg.Targets {
		fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
		raw, err := source.Fetch(fetchCtx, target.URL)
		cancel()
		if err != nil {
			failures++
			fmt.Printf("%s: fetch failed: %v\n", target.Label(), err)
			continue
		}

		canonical, fingerprint := content.Normalize(raw)
		present := content.Contains(canonical, target.SearchText)
		fmt.Printf("%s: fragment %q present=%t hash=%s\n", target.Label(), target.SearchText, present, fingerprint[:12])
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d targets failed", failures, len(cfg.Targets))
	}
	return nil
}

// healthcheck exits non-zero when the heartbeat file is missing or stale.
// Meant to be wired into a supervisor or container health probe.
func healthcheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("healthcheck", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	checker := health.NewChecker(health.HeartbeatPath(cfg.DataDir), cfg.PollInterval)
	if err := checker.Check(); err != nil {
		return err
	}

	fmt.Println("ok")
	return nil
}
