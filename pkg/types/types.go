package types

import "time"

// Presence is the tri-state observation history for one target.
type Presence string

const (
	PresenceUnknown Presence = "unknown"
	PresencePresent Presence = "present"
	PresenceAbsent  Presence = "absent"
)

// Mode selects which presence transition a target alerts on.
type Mode string

const (
	ModeAppears    Mode = "appears"
	ModeDisappears Mode = "disappears"
)

// TargetState is the durable per-target record. Unknown JSON fields are
// ignored on load and absent fields take their zero values, so the schema
// can grow without invalidating existing state files.
type TargetState struct {
	LastPresent         Presence  `json:"last_present"`
	LastContentHash     string    `json:"last_content_hash,omitempty"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
	ConsecutiveFailures int       `json:"consecutive_failures,omitempty"`
	UnreachableNotified bool      `json:"unreachable_notified,omitempty"`
}
