package events

import "github.com/pagewatchhq/pagewatch/pkg/types"

// Recorder receives operational events (alerts, unreachable notices,
// recoveries, notification drops) for diagnostic purposes.
type Recorder interface {
	Record(event types.Event)
}

type NoopRecorder struct{}

func (NoopRecorder) Record(event types.Event) {}

type Multi struct {
	recorders []Recorder
}

func NewMulti(recorders ...Recorder) Multi {
	return Multi{recorders: recorders}
}

func (m Multi) Record(event types.Event) {
	for _, rec := range m.recorders {
		if rec != nil {
			rec.Record(event)
		}
	}
}
