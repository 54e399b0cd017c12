package types

import "time"

type EventType string

const (
	EventAlert       EventType = "Alert"
	EventUnreachable EventType = "Unreachable"
	EventRecovered   EventType = "Recovered"
	EventNotifyDrop  EventType = "NotifyDrop"
)

type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"ts"`
	TargetKey string         `json:"target_key,omitempty"`
	URL       string         `json:"url,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
