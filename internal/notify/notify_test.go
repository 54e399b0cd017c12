package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagewatchhq/pagewatch/internal/monitor"
	"github.com/pagewatchhq/pagewatch/pkg/types"
)

func TestWebhookSinkPostsSlackPayload(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		got = append(got, payload.Text)
		mu.Unlock()
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(Config{WebhookURL: srv.URL}, Dependencies{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewWebhookSink: %v", err)
	}

	if err := sink.Send(context.Background(), Message{Text: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestWebhookSinkRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(Config{WebhookURL: srv.URL}, Dependencies{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewWebhookSink: %v", err)
	}

	if err := sink.Send(context.Background(), Message{Text: "hello"}); err == nil {
		t.Fatalf("expected error for 403 response")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)

	if dropped := q.Enqueue(Message{Text: "a"}); dropped {
		t.Fatalf("unexpected drop on first enqueue")
	}
	q.Enqueue(Message{Text: "b"})
	if dropped := q.Enqueue(Message{Text: "c"}); !dropped {
		t.Fatalf("expected oldest message to be evicted")
	}

	batch := q.Drain(0)
	if len(batch) != 2 || batch[0].Text != "b" || batch[1].Text != "c" {
		t.Fatalf("unexpected queue contents: %+v", batch)
	}
	if stats := q.Stats(); stats.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", stats.Dropped)
	}
}

func TestQueueDrainRespectsMax(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 5; i++ {
		q.Enqueue(Message{Text: "m"})
	}
	if got := len(q.Drain(3)); got != 3 {
		t.Fatalf("drained %d, want 3", got)
	}
	if q.Len() != 2 {
		t.Fatalf("remaining %d, want 2", q.Len())
	}
}

type flakySink struct {
	mu       sync.Mutex
	failures int
	sent     []Message
}

func (s *flakySink) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return context.DeadlineExceeded
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *flakySink) delivered() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func TestDispatcherRetriesThenDelivers(t *testing.T) {
	q := NewQueue(10)
	sink := &flakySink{failures: 2}
	d := NewDispatcher(q, sink, zerolog.Nop(),
		WithMaxAttempts(3),
		WithRetrySleep(time.Millisecond),
		WithIdleSleep(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	q.Enqueue(Message{Category: CategoryAlert, Text: "alert"})

	deadline := time.After(2 * time.Second)
	for len(sink.delivered()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("message never delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if got := sink.delivered(); len(got) != 1 || got[0].Text != "alert" {
		t.Fatalf("unexpected deliveries: %+v", got)
	}
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	q := NewQueue(10)
	sink := &flakySink{failures: 100}
	d := NewDispatcher(q, sink, zerolog.Nop(),
		WithMaxAttempts(2),
		WithRetrySleep(time.Millisecond),
		WithIdleSleep(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()

	q.Enqueue(Message{Text: "doomed"})
	q.Enqueue(Message{Text: "also doomed"})

	// Wait for the queue to empty; both messages must be abandoned, not
	// retried forever.
	deadline := time.After(2 * time.Second)
	for q.Len() > 0 {
		select {
		case <-deadline:
			t.Fatalf("queue never drained")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)

	cancel()
	<-done

	if got := sink.delivered(); len(got) != 0 {
		t.Fatalf("expected no deliveries, got %+v", got)
	}
	sink.mu.Lock()
	attempts := 100 - sink.failures
	sink.mu.Unlock()
	if attempts != 4 {
		t.Fatalf("expected 2 attempts per message (4 total), got %d", attempts)
	}
}

func TestAlertTextIncludesSnippetAndDirection(t *testing.T) {
	target := monitor.Target{
		URL:        "https://tickets.example.com/show",
		SearchText: "Sold out",
		Mode:       types.ModeDisappears,
		Note:       "Main show",
	}

	long := strings.Repeat("x", 1500)
	text := AlertText(target, DirectionFor(target.Mode), long)

	if !strings.Contains(text, `"Sold out" disappeared`) {
		t.Fatalf("direction missing from alert:\n%s", text)
	}
	if !strings.Contains(text, "Main show") || !strings.Contains(text, target.URL) {
		t.Fatalf("label or URL missing from alert:\n%s", text)
	}
	if strings.Contains(text, strings.Repeat("x", 1001)) {
		t.Fatalf("snippet not truncated to 1000 chars")
	}
}

func TestStartupAndStatusText(t *testing.T) {
	targets := []monitor.Target{
		{URL: "https://a", SearchText: "Sold out", Mode: types.ModeDisappears, Note: "Show A"},
		{URL: "https://b", SearchText: "Presale", Mode: types.ModeAppears},
	}
	now := time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)

	startup := StartupText(targets, time.Minute, now)
	if !strings.Contains(startup, "Watching 2 target(s)") {
		t.Fatalf("target count missing:\n%s", startup)
	}
	if !strings.Contains(startup, "1. Show A") || !strings.Contains(startup, "2. https://b") {
		t.Fatalf("target list missing:\n%s", startup)
	}
	if !strings.Contains(startup, "Poll interval: 1m0s") {
		t.Fatalf("poll interval missing:\n%s", startup)
	}

	states := map[string]types.TargetState{
		targets[0].Identity(): {LastPresent: types.PresencePresent},
		targets[1].Identity(): {LastPresent: types.PresenceAbsent, ConsecutiveFailures: 2},
	}
	status := StatusText(targets, states, now)
	if !strings.Contains(status, "Show A: present") {
		t.Fatalf("presence missing:\n%s", status)
	}
	if !strings.Contains(status, "(2 consecutive failures)") {
		t.Fatalf("failure streak missing:\n%s", status)
	}
}

func TestStatusTextDefaultsUnknown(t *testing.T) {
	targets := []monitor.Target{{URL: "https://a", SearchText: "x", Mode: types.ModeAppears}}
	status := StatusText(targets, map[string]types.TargetState{}, time.Now())
	if !strings.Contains(status, "https://a: unknown") {
		t.Fatalf("unseeded target must report unknown:\n%s", status)
	}
}
