package models

import "time"

// ControllerState is the last authoritative record for one sensor.
// PhaseDeadline and LastUpdatedAt are epoch seconds (fractional allowed).
type ControllerState struct {
	Phase             Phase       `json:"phase"`
	Mode              PowerMode   `json:"mode,omitempty"`
	ModeName          string      `json:"mode_name,omitempty"`
	ModeIcon          string      `json:"mode_icon,omitempty"`
	BinaryState       BinaryState `json:"binary_state"`
	PhaseMessage      string      `json:"phase_message,omitempty"`
	PhaseDeadline     *float64    `json:"phase_deadline,omitempty"`
	LastUpdatedAt     *float64    `json:"last_updated_at,omitempty"`
	LastCommandSource string      `json:"last_command_source,omitempty"`
}

// View is the read-only snapshot UI adapters render.
type View struct {
	Identity  SensorIdentity  `json:"identity"`
	State     ControllerState `json:"state"`
	Remaining string          `json:"remaining"`
	Feedback  string          `json:"feedback,omitempty"`
	Busy      bool            `json:"busy"`
	Open      bool            `json:"open"`
	ModeAware bool            `json:"mode_aware"`
}

// Device is one entry of the upstream device directory.
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Online  bool   `json:"online"`
	HasBLE  bool   `json:"has_ble"`
	HasMQTT bool   `json:"has_mqtt"`
}

// Notification levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is a transient operator-facing toast.
type Notification struct {
	DeviceID string     `json:"device_id,omitempty"`
	Kind     SensorKind `json:"kind,omitempty"`
	Level    string     `json:"level"`
	Message  string     `json:"message"`
	At       time.Time  `json:"at"`
}
