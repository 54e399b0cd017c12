package notify

import (
	"sync"

	"github.com/pagewatchhq/pagewatch/internal/events"
	"github.com/pagewatchhq/pagewatch/internal/metrics"
	"github.com/pagewatchhq/pagewatch/pkg/types"
)

// Queue is the bounded buffer between the poll loop and notification
// delivery. When full it drops the oldest message: a stuck webhook must
// never stall or grow the watcher without bound, and newer alerts carry
// more information than stale ones.
type Queue struct {
	mu       sync.Mutex
	capacity int
	items    []Message
	dropped  uint64
	events   events.Recorder
	metrics  metrics.QueueRecorder
}

// NewQueue builds a queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		items:    make([]Message, 0, capacity),
	}
}

func (q *Queue) SetEventRecorder(rec events.Recorder) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = rec
}

func (q *Queue) SetMetricsRecorder(rec metrics.QueueRecorder) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.metrics = rec
}

// Enqueue adds a message, evicting the oldest one when full. It reports
// whether an eviction happened.
func (q *Queue) Enqueue(msg Message) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		removed := q.items[0]
		q.items = q.items[1:]
		dropped = true
		q.dropped++
		if q.events != nil {
			q.events.Record(types.Event{
				Type:      types.EventNotifyDrop,
				Timestamp: msg.CreatedAt,
				TargetKey: removed.TargetKey,
			})
		}
		if q.metrics != nil {
			q.metrics.IncNotifyDrops()
		}
	}

	q.items = append(q.items, msg)
	q.observeDepthLocked()
	return dropped
}

// Drain removes and returns up to max messages in arrival order. max <= 0
// drains everything.
func (q *Queue) Drain(max int) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if max > 0 && max < n {
		n = max
	}
	drained := make([]Message, n)
	copy(drained, q.items[:n])
	q.items = q.items[n:]
	q.observeDepthLocked()
	return drained
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats reports the current depth and lifetime drop count.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Len: len(q.items), Dropped: q.dropped}
}

type Stats struct {
	Len     int
	Dropped uint64
}

func (q *Queue) observeDepthLocked() {
	if q.metrics == nil {
		return
	}
	q.metrics.ObserveNotifyQueueDepth(len(q.items))
}
