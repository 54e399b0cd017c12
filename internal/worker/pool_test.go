package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagewatchhq/pagewatch/internal/notify"
	"github.com/pagewatchhq/pagewatch/internal/state"
)

func TestPoolSkipsOverlappingJobsForSameTarget(t *testing.T) {
	target := soldOutTarget()
	blockCh := make(chan struct{})
	src := &scriptedSource{
		script:  []fetchOutcome{{text: "Status: Sold out"}},
		blockCh: blockCh,
	}

	store := state.Open(state.Path(t.TempDir()), zerolog.Nop())
	queue := notify.NewQueue(8)
	runner, err := NewRunner(
		Config{FetchTimeout: 5 * time.Second, FailureThreshold: 3},
		Dependencies{Source: src, Store: store, Queue: queue, Logger: zerolog.Nop()},
	)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	jobs := make(chan Job, 4)
	pool := NewPool(jobs, runner, WithWorkerCount(2))

	ctx, cancel := context.WithCancel(context.Background())
	wg := pool.Start(ctx)

	// Two jobs for the same identity: the second worker must skip while the
	// first is blocked inside the fetch.
	jobs <- Job{Target: target, Cycle: 1}
	jobs <- Job{Target: target, Cycle: 2}

	deadline := time.After(2 * time.Second)
	for {
		src.mu.Lock()
		started := src.started
		src.mu.Unlock()
		if started >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("first job never started")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// Give the second worker time to consume (and skip) the duplicate.
	time.Sleep(50 * time.Millisecond)

	close(blockCh)
	cancel()
	wg.Wait()

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one fetch for overlapping jobs, got %d", calls)
	}
}

func TestPoolStopsOnContextCancel(t *testing.T) {
	src := &scriptedSource{script: []fetchOutcome{{text: "x"}}}
	store := state.Open(state.Path(t.TempDir()), zerolog.Nop())
	runner, err := NewRunner(
		Config{FetchTimeout: time.Second},
		Dependencies{Source: src, Store: store, Queue: notify.NewQueue(8), Logger: zerolog.Nop()},
	)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	jobs := make(chan Job)
	pool := NewPool(jobs, runner, WithWorkerCount(3))

	ctx, cancel := context.WithCancel(context.Background())
	wg := pool.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool did not stop after cancellation")
	}
}
