package models

import (
	"fmt"
	"strings"
)

// SensorKind identifies one independently power-managed sensor on a device.
type SensorKind string

const (
	KindMQ2     SensorKind = "MQ2"
	KindBMP180  SensorKind = "BMP180"
	KindBH1750  SensorKind = "BH1750"
	KindRadio   SensorKind = "RADIO"
	KindDisplay SensorKind = "DISPLAY"
)

// AllKinds lists every supported sensor kind in display order.
var AllKinds = []SensorKind{KindMQ2, KindBMP180, KindBH1750, KindRadio, KindDisplay}

// pathPrefixes maps each kind to its remote endpoint prefix (/api/{prefix}/...).
var pathPrefixes = map[SensorKind]string{
	KindMQ2:     "mq2",
	KindBMP180:  "bmp180",
	KindBH1750:  "bh1750",
	KindRadio:   "ble",
	KindDisplay: "oled",
}

// PathPrefix returns the remote endpoint prefix of the kind.
func (k SensorKind) PathPrefix() string {
	return pathPrefixes[k]
}

// ModeAware reports whether the kind runs a server-side duty-cycle schedule
// and accepts power mode changes. Radio and display are plain on/off.
func (k SensorKind) ModeAware() bool {
	switch k {
	case KindMQ2, KindBMP180, KindBH1750:
		return true
	default:
		return false
	}
}

// ParseSensorKind accepts a kind name ("MQ2") or its path prefix ("ble"), case-insensitive.
func ParseSensorKind(s string) (SensorKind, error) {
	v := strings.TrimSpace(s)
	for _, k := range AllKinds {
		if strings.EqualFold(v, string(k)) || strings.EqualFold(v, k.PathPrefix()) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sensor kind %q", s)
}

// NormalizeDeviceID trims and upper-cases a device id ("d02 " -> "D02").
func NormalizeDeviceID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// SensorIdentity is the registry key of one controller.
type SensorIdentity struct {
	DeviceID string     `json:"device_id"`
	Kind     SensorKind `json:"kind"`
}

// NewIdentity builds an identity with a normalized device id.
func NewIdentity(deviceID string, kind SensorKind) SensorIdentity {
	return SensorIdentity{DeviceID: NormalizeDeviceID(deviceID), Kind: kind}
}

func (id SensorIdentity) String() string {
	return id.DeviceID + "/" + string(id.Kind)
}

// PowerMode is a server-side duty-cycle schedule selector.
type PowerMode string

const (
	ModeEco     PowerMode = "eco"
	ModeBalance PowerMode = "balance"
	ModeSafe    PowerMode = "safe"
	ModeAlways  PowerMode = "always"
	ModeDev     PowerMode = "dev"
)

// ParsePowerMode validates a mode string.
func ParsePowerMode(s string) (PowerMode, error) {
	switch m := PowerMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeEco, ModeBalance, ModeSafe, ModeAlways, ModeDev:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be eco, balance, safe, always or dev", s)
	}
}

// Phase is the observed position inside the duty cycle, or an override.
type Phase string

const (
	PhaseOn      Phase = "on"
	PhaseOff     Phase = "off"
	PhaseManual  Phase = "manual"
	PhasePending Phase = "pending"
	PhaseUnknown Phase = "unknown"
)

// AllPhases lists every phase.
var AllPhases = []Phase{PhaseOn, PhaseOff, PhaseManual, PhasePending, PhaseUnknown}

// ParsePhase maps a server phase string to a Phase. Anything unrecognized
// (including the server's "error") is unknown.
func ParsePhase(s string) Phase {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhaseOn, PhaseOff, PhaseManual, PhasePending:
		return p
	default:
		return PhaseUnknown
	}
}

// BinaryState is the last reported power state of the sensor.
type BinaryState string

const (
	StateOn      BinaryState = "on"
	StateOff     BinaryState = "off"
	StateUnknown BinaryState = "unknown"
)

// ParseBinaryState maps a server state string to a BinaryState.
func ParseBinaryState(s string) BinaryState {
	switch b := BinaryState(strings.ToLower(strings.TrimSpace(s))); b {
	case StateOn, StateOff:
		return b
	default:
		return StateUnknown
	}
}

// SwitchAction is a forced on/off command.
type SwitchAction string

const (
	ActionOn  SwitchAction = "on"
	ActionOff SwitchAction = "off"
)

// ParseSwitchAction validates an action string.
func ParseSwitchAction(s string) (SwitchAction, error) {
	switch a := SwitchAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionOn, ActionOff:
		return a, nil
	default:
		return "", fmt.Errorf("invalid action %q: must be on or off", s)
	}
}
