package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSnapshotReflectsCounters(t *testing.T) {
	s := NewStore()
	s.IncCycles()
	s.IncCycles()
	s.IncChecks()
	s.IncFetchFailures()
	s.IncAlerts()
	s.QueueRecorder().ObserveNotifyQueueDepth(3)
	s.QueueRecorder().IncNotifyDrops()
	s.NotifyRecorder().IncNotifySent()
	s.NotifyRecorder().IncNotifyFailures()

	snap := s.Snapshot()
	if snap.CyclesTotal != 2 {
		t.Fatalf("cycles = %d, want 2", snap.CyclesTotal)
	}
	if snap.ChecksTotal != 1 || snap.FetchFailures != 1 || snap.AlertsTotal != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.NotifyQueueDepth != 3 || snap.NotifyDroppedTotal != 1 {
		t.Fatalf("unexpected queue metrics: %+v", snap)
	}
	if snap.NotifySentTotal != 1 || snap.NotifyFailedTotal != 1 {
		t.Fatalf("unexpected notify metrics: %+v", snap)
	}
}

func TestHTTPHandlerServesPrometheusText(t *testing.T) {
	s := NewStore()
	s.IncAlerts()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	NewHTTPHandler(s).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "pagewatch_alerts_total 1") {
		t.Fatalf("alerts counter missing from body:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE pagewatch_cycles_total counter") {
		t.Fatalf("type comment missing from body:\n%s", body)
	}
}

func TestHTTPHandlerRejectsPost(t *testing.T) {
	req := httptest.NewRequest("POST", "/metrics", nil)
	rec := httptest.NewRecorder()
	NewHTTPHandler(NewStore()).ServeHTTP(rec, req)
	if rec.Code != 405 {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
