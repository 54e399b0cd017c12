package monitor

import "github.com/pagewatchhq/pagewatch/pkg/types"

// Target is one configured page/fragment pair under observation. Targets
// are immutable for the lifetime of a run.
type Target struct {
	Key        string
	URL        string
	SearchText string
	Mode       types.Mode
	Note       string
}

// Identity uniquely names the target across restarts and keys its durable
// state. An explicit Key wins; otherwise the (url, searchText) pair is the
// identity, so re-adding the same pair to the configuration resumes its
// history.
func (t Target) Identity() string {
	if t.Key != "" {
		return t.Key
	}
	return t.URL + "\n" + t.SearchText
}

// Label is the human-readable name used in notification text.
func (t Target) Label() string {
	if t.Note != "" {
		return t.Note
	}
	return t.URL
}
