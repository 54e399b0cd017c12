package metrics

// QueueRecorder receives notification queue depth and drop observations.
type QueueRecorder interface {
	ObserveNotifyQueueDepth(depth int)
	IncNotifyDrops()
}

// NotifyRecorder receives delivery outcome observations.
type NotifyRecorder interface {
	IncNotifySent()
	IncNotifyFailures()
}

type queueRecorder struct {
	store *Store
}

func (r queueRecorder) ObserveNotifyQueueDepth(depth int) {
	r.store.notifyQueueDepth.Store(int64(depth))
}

func (r queueRecorder) IncNotifyDrops() {
	r.store.notifyDroppedTotal.Add(1)
}

// QueueRecorder returns a recorder bound to this store.
func (s *Store) QueueRecorder() QueueRecorder {
	return queueRecorder{store: s}
}

type notifyRecorder struct {
	store *Store
}

func (r notifyRecorder) IncNotifySent() {
	r.store.notifySentTotal.Add(1)
}

func (r notifyRecorder) IncNotifyFailures() {
	r.store.notifyFailedTotal.Add(1)
}

// NotifyRecorder returns a recorder bound to this store.
func (s *Store) NotifyRecorder() NotifyRecorder {
	return notifyRecorder{store: s}
}
