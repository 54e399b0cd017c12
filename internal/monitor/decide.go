package monitor

import (
	"time"

	"github.com/pagewatchhq/pagewatch/pkg/types"
)

// Decision is the outcome of feeding one successful observation into a
// target's state machine.
type Decision struct {
	Next  types.Presence
	Alert bool
}

// Decide computes the next presence state and whether the transition is
// reportable. Alerts are strictly edge-triggered: mode "appears" fires on
// Absent→Present, mode "disappears" on Present→Absent, and the first
// observation after Unknown only seeds the baseline. A condition that
// persists across cycles never re-fires.
func Decide(prev types.Presence, observed bool, mode types.Mode) Decision {
	next := types.PresenceAbsent
	if observed {
		next = types.PresencePresent
	}

	if prev != types.PresencePresent && prev != types.PresenceAbsent {
		return Decision{Next: next}
	}
	if next == prev {
		return Decision{Next: next}
	}

	switch mode {
	case types.ModeAppears:
		return Decision{Next: next, Alert: next == types.PresencePresent}
	case types.ModeDisappears:
		return Decision{Next: next, Alert: next == types.PresenceAbsent}
	}
	return Decision{Next: next}
}

// ObserveSuccess folds a successful fetch into the durable record: the
// presence state advances per the decision, the fingerprint is replaced,
// and any failure streak (plus its notice suppression) resets.
func ObserveSuccess(st types.TargetState, d Decision, contentHash string, now time.Time) types.TargetState {
	st.LastPresent = d.Next
	st.LastContentHash = contentHash
	st.LastCheckedAt = now
	st.ConsecutiveFailures = 0
	st.UnreachableNotified = false
	return st
}

// ObserveFailure folds a failed fetch into the durable record. The
// presence state and fingerprint are left untouched; only the failure
// streak advances. The returned flag is true exactly once per streak,
// when the streak first reaches the escalation threshold.
func ObserveFailure(st types.TargetState, threshold int, now time.Time) (types.TargetState, bool) {
	st.LastCheckedAt = now
	st.ConsecutiveFailures++

	if threshold <= 0 || st.ConsecutiveFailures < threshold || st.UnreachableNotified {
		return st, false
	}
	st.UnreachableNotified = true
	return st, true
}
