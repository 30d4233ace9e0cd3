package service

import "time"

// ModeParams is a power mode change request.
type ModeParams struct {
	Mode string // "eco" | "balance" | "safe" | "always" | "dev"
}

// SwitchParams is a forced on/off request.
type SwitchParams struct {
	Action string // "on" | "off"
}

// LogFilter supports journal filtering by time range, type and sensor.
type LogFilter struct {
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string    // "", "MODE_CHANGE", "SWITCH", "AUTH_DENIED", "COMMAND_FAILED", "CONTEXT_CHANGE"
	DeviceID string
	Kind     string
}
