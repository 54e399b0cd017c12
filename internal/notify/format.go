package notify

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pagewatchhq/pagewatch/internal/monitor"
	"github.com/pagewatchhq/pagewatch/pkg/types"
)

const snippetLimit = 1000

// AlertText renders the notification body for a content transition,
// including a snippet of the current canonical page text for context.
func AlertText(target monitor.Target, d Direction, canonical string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Change detected: %q %s\n\n", target.SearchText, d)
	if target.Note != "" {
		fmt.Fprintf(&b, "%s\n", target.Note)
	}
	fmt.Fprintf(&b, "%s\n\n", target.URL)
	fmt.Fprintf(&b, "Current page text (first %d chars):\n%s", snippetLimit, Snippet(canonical))
	return b.String()
}

// Direction names the edge an alert reports.
type Direction string

const (
	DirectionAppeared    Direction = "appeared"
	DirectionDisappeared Direction = "disappeared"
)

// DirectionFor maps a target's mode to the edge wording its alert uses.
func DirectionFor(mode types.Mode) Direction {
	if mode == types.ModeAppears {
		return DirectionAppeared
	}
	return DirectionDisappeared
}

// Snippet truncates canonical text for inclusion in notifications. The cut
// backs up to a rune boundary so the result stays valid UTF-8.
func Snippet(canonical string) string {
	if len(canonical) <= snippetLimit {
		return canonical
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(canonical[cut]) {
		cut--
	}
	return canonical[:cut]
}

// UnreachableText renders the one-shot notice for a sustained fetch
// failure streak.
func UnreachableText(target monitor.Target, failures int) string {
	return fmt.Sprintf("Target unreachable: %s\n%s\n%d consecutive fetch failures",
		target.Label(), target.URL, failures)
}

// StartupText renders the message sent once when the watcher starts.
func StartupText(targets []monitor.Target, interval time.Duration, startedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Website monitor started\n\nWatching %d target(s):\n", len(targets))
	for i, t := range targets {
		fmt.Fprintf(&b, "%d. %s (%q %s)\n", i+1, t.Label(), t.SearchText, t.Mode)
	}
	fmt.Fprintf(&b, "\nPoll interval: %s\nStarted at: %s UTC",
		interval, startedAt.UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}

// StatusText renders the periodic liveness summary.
func StatusText(targets []monitor.Target, states map[string]types.TargetState, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Monitor status: running\n\n")
	for i, t := range targets {
		st := states[t.Identity()]
		presence := st.LastPresent
		if presence == "" {
			presence = types.PresenceUnknown
		}
		fmt.Fprintf(&b, "%d. %s: %s", i+1, t.Label(), presence)
		if st.ConsecutiveFailures > 0 {
			fmt.Fprintf(&b, " (%d consecutive failures)", st.ConsecutiveFailures)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nLast check: %s UTC", now.UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}
