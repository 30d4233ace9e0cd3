package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"envmon_dashboard/internal/models"
)

// epochSeconds decodes a JSON number, a numeric string or null.
// Non-finite and unparsable values decode as absent, never as zero.
type epochSeconds struct {
	v *float64
}

func (e *epochSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		e.v = nil
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var f float64
	switch x := raw.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			e.v = nil
			return nil
		}
		f = parsed
	default:
		return fmt.Errorf("epoch seconds: unexpected JSON type %T", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		e.v = nil
		return nil
	}
	e.v = &f
	return nil
}

// envelope carries the fields every endpoint shares.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

type statePayload struct {
	envelope
	State        string       `json:"state"`
	Mode         string       `json:"mode"`
	ModeName     string       `json:"mode_name"`
	ModeIcon     string       `json:"mode_icon"`
	Phase        string       `json:"phase"`
	PhaseMessage string       `json:"phase_message"`
	PhaseUntil   epochSeconds `json:"phase_until"`
	UpdatedAt    epochSeconds `json:"updated_at"`
	LastVia      string       `json:"last_via"`
}

type modeRequest struct {
	Mode     string `json:"mode"`
	DeviceID string `json:"device_id"`
}

type modePayload struct {
	envelope
	Mode     string `json:"mode"`
	ModeName string `json:"mode_name"`
	ModeIcon string `json:"mode_icon"`
}

type switchRequest struct {
	Action   string `json:"action"`
	DeviceID string `json:"device_id"`
}

type switchPayload struct {
	envelope
	State     string       `json:"state"`
	UpdatedAt epochSeconds `json:"updated_at"`
	LastVia   string       `json:"last_via"`
	Via       string       `json:"via"`
}

type devicePayload struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	HasBLE   bool   `json:"has_ble"`
	HasMQTT  bool   `json:"has_mqtt"`
}

type devicesPayload struct {
	envelope
	Devices []devicePayload `json:"devices"`
}

// toControllerState maps a state payload onto the domain record. Radio and
// display report no phase; their phase mirrors the binary state.
func (p statePayload) toControllerState(kind models.SensorKind) models.ControllerState {
	st := models.ControllerState{
		Phase:             models.ParsePhase(p.Phase),
		ModeName:          p.ModeName,
		ModeIcon:          p.ModeIcon,
		BinaryState:       models.ParseBinaryState(p.State),
		PhaseMessage:      p.PhaseMessage,
		PhaseDeadline:     p.PhaseUntil.v,
		LastUpdatedAt:     p.UpdatedAt.v,
		LastCommandSource: p.LastVia,
	}
	if mode, err := models.ParsePowerMode(p.Mode); err == nil {
		st.Mode = mode
	}
	if !kind.ModeAware() && strings.TrimSpace(p.Phase) == "" {
		switch st.BinaryState {
		case models.StateOn:
			st.Phase = models.PhaseOn
		case models.StateOff:
			st.Phase = models.PhaseOff
		}
	}
	return st
}

func (d devicePayload) toDevice() models.Device {
	id := d.ID
	if id == "" {
		id = d.DeviceID
	}
	return models.Device{
		ID:      models.NormalizeDeviceID(id),
		Name:    d.Name,
		Online:  d.Online,
		HasBLE:  d.HasBLE,
		HasMQTT: d.HasMQTT,
	}
}
