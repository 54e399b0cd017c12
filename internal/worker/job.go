package worker

import (
	"time"

	"github.com/pagewatchhq/pagewatch/internal/monitor"
)

// Job is one scheduled evaluation of one target.
type Job struct {
	Target       monitor.Target
	Cycle        uint64
	ScheduledFor time.Time
}
