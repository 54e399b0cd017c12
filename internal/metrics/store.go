package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// Store maintains in-memory gauges and counters for watcher telemetry.
type Store struct {
	cyclesTotal        atomic.Uint64
	checksTotal        atomic.Uint64
	fetchFailures      atomic.Uint64
	alertsTotal        atomic.Uint64
	unreachableTotal   atomic.Uint64
	stateSaveFailures  atomic.Uint64
	notifyQueueDepth   atomic.Int64
	notifyDroppedTotal atomic.Uint64
	notifySentTotal    atomic.Uint64
	notifyFailedTotal  atomic.Uint64
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	return &Store{}
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	CyclesTotal        uint64
	ChecksTotal        uint64
	FetchFailures      uint64
	AlertsTotal        uint64
	UnreachableTotal   uint64
	StateSaveFailures  uint64
	NotifyQueueDepth   int64
	NotifyDroppedTotal uint64
	NotifySentTotal    uint64
	NotifyFailedTotal  uint64
}

// Snapshot returns a point-in-time copy of the metrics.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		CyclesTotal:        s.cyclesTotal.Load(),
		ChecksTotal:        s.checksTotal.Load(),
		FetchFailures:      s.fetchFailures.Load(),
		AlertsTotal:        s.alertsTotal.Load(),
		UnreachableTotal:   s.unreachableTotal.Load(),
		StateSaveFailures:  s.stateSaveFailures.Load(),
		NotifyQueueDepth:   s.notifyQueueDepth.Load(),
		NotifyDroppedTotal: s.notifyDroppedTotal.Load(),
		NotifySentTotal:    s.notifySentTotal.Load(),
		NotifyFailedTotal:  s.notifyFailedTotal.Load(),
	}
}

func (s *Store) IncCycles()            { s.cyclesTotal.Add(1) }
func (s *Store) IncChecks()            { s.checksTotal.Add(1) }
func (s *Store) IncFetchFailures()     { s.fetchFailures.Add(1) }
func (s *Store) IncAlerts()            { s.alertsTotal.Add(1) }
func (s *Store) IncUnreachable()       { s.unreachableTotal.Add(1) }
func (s *Store) IncStateSaveFailures() { s.stateSaveFailures.Add(1) }

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	lines := []string{
		"# HELP pagewatch_cycles_total Total completed polling cycles.",
		"# TYPE pagewatch_cycles_total counter",
		fmt.Sprintf("pagewatch_cycles_total %d", snap.CyclesTotal),
		"# HELP pagewatch_checks_total Total per-target check attempts.",
		"# TYPE pagewatch_checks_total counter",
		fmt.Sprintf("pagewatch_checks_total %d", snap.ChecksTotal),
		"# HELP pagewatch_fetch_failures_total Total failed page fetches.",
		"# TYPE pagewatch_fetch_failures_total counter",
		fmt.Sprintf("pagewatch_fetch_failures_total %d", snap.FetchFailures),
		"# HELP pagewatch_alerts_total Total content transition alerts emitted.",
		"# TYPE pagewatch_alerts_total counter",
		fmt.Sprintf("pagewatch_alerts_total %d", snap.AlertsTotal),
		"# HELP pagewatch_unreachable_notices_total Total unreachable escalation notices emitted.",
		"# TYPE pagewatch_unreachable_notices_total counter",
		fmt.Sprintf("pagewatch_unreachable_notices_total %d", snap.UnreachableTotal),
		"# HELP pagewatch_state_save_failures_total Total failed state store saves.",
		"# TYPE pagewatch_state_save_failures_total counter",
		fmt.Sprintf("pagewatch_state_save_failures_total %d", snap.StateSaveFailures),
		"# HELP pagewatch_notify_queue_depth Number of notifications currently buffered.",
		"# TYPE pagewatch_notify_queue_depth gauge",
		fmt.Sprintf("pagewatch_notify_queue_depth %d", snap.NotifyQueueDepth),
		"# HELP pagewatch_notify_dropped_total Total notifications evicted due to queue pressure.",
		"# TYPE pagewatch_notify_dropped_total counter",
		fmt.Sprintf("pagewatch_notify_dropped_total %d", snap.NotifyDroppedTotal),
		"# HELP pagewatch_notify_sent_total Total notifications delivered.",
		"# TYPE pagewatch_notify_sent_total counter",
		fmt.Sprintf("pagewatch_notify_sent_total %d", snap.NotifySentTotal),
		"# HELP pagewatch_notify_failed_total Total notifications abandoned after retries.",
		"# TYPE pagewatch_notify_failed_total counter",
		fmt.Sprintf("pagewatch_notify_failed_total %d", snap.NotifyFailedTotal),
		"",
	}
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
