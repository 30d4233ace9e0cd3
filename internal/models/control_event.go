package models

import "time"

// Journal event types.
const (
	EventModeChange    = "MODE_CHANGE"
	EventSwitch        = "SWITCH"
	EventAuthDenied    = "AUTH_DENIED"
	EventCommandFailed = "COMMAND_FAILED"
	EventContextChange = "CONTEXT_CHANGE"
)

// ControlEvent is a single operator journal entry.
type ControlEvent struct {
	EventID     string     `json:"event_id"`
	OccurredAt  time.Time  `json:"occurred_at"`
	Type        string     `json:"type"` // MODE_CHANGE | SWITCH | AUTH_DENIED | COMMAND_FAILED | CONTEXT_CHANGE
	DeviceID    string     `json:"device_id,omitempty"`
	Kind        SensorKind `json:"kind,omitempty"`
	Description string     `json:"description"` // human-readable
	Metadata    any        `json:"metadata,omitempty"`
}
