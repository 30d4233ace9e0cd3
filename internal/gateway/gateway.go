package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"envmon_dashboard/internal/metrics"
	"envmon_dashboard/internal/models"
)

// Gateway is the typed contract over the remote per-sensor endpoints.
// Calls are safe to retry; the gateway itself never retries or caches.
type Gateway interface {
	FetchState(ctx context.Context, id models.SensorIdentity) (models.ControllerState, error)
	SetMode(ctx context.Context, id models.SensorIdentity, mode models.PowerMode) (ModeResult, error)
	SetSwitch(ctx context.Context, id models.SensorIdentity, action models.SwitchAction) (SwitchResult, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// ModeResult is the confirmation of an accepted mode change.
type ModeResult struct {
	Mode     models.PowerMode
	ModeName string
	ModeIcon string
}

// SwitchResult is the confirmation of a delivered on/off command.
type SwitchResult struct {
	BinaryState       models.BinaryState
	LastUpdatedAt     *float64
	LastCommandSource string
	Via               string
}

// Operation names, used in errors and metrics.
const (
	OpFetchState  = "fetch_state"
	OpSetMode     = "set_mode"
	OpSetSwitch   = "set_switch"
	OpListDevices = "list_devices"
)

const (
	defaultTimeout  = 5 * time.Second
	maxResponseBody = 1 << 20 // 1 MB
)

// ErrModeUnsupported is returned for mode calls on plain on/off sensors.
var ErrModeUnsupported = errors.New("sensor kind does not support power modes")

// Client talks to the remote device server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
}

var _ Gateway = (*Client)(nil)

// NewClient builds a client for baseURL ("http://host:8000").
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
	}
}

// FetchState reads GET /api/{kind}/state?device_id=ID.
func (c *Client) FetchState(ctx context.Context, id models.SensorIdentity) (models.ControllerState, error) {
	q := url.Values{"device_id": []string{id.DeviceID}}
	path := "/api/" + id.Kind.PathPrefix() + "/state?" + q.Encode()

	var out statePayload
	if err := c.do(ctx, id.Kind, OpFetchState, http.MethodGet, path, nil, &out); err != nil {
		return models.ControllerState{}, err
	}
	return out.toControllerState(id.Kind), nil
}

// SetMode posts {mode, device_id} to /api/{kind}/mode.
func (c *Client) SetMode(ctx context.Context, id models.SensorIdentity, mode models.PowerMode) (ModeResult, error) {
	if !id.Kind.ModeAware() {
		return ModeResult{}, protocolError(OpSetMode, "", ErrModeUnsupported)
	}
	body := modeRequest{Mode: string(mode), DeviceID: id.DeviceID}

	var out modePayload
	if err := c.do(ctx, id.Kind, OpSetMode, http.MethodPost, "/api/"+id.Kind.PathPrefix()+"/mode", body, &out); err != nil {
		return ModeResult{}, err
	}
	res := ModeResult{Mode: mode, ModeName: out.ModeName, ModeIcon: out.ModeIcon}
	if m, err := models.ParsePowerMode(out.Mode); err == nil {
		res.Mode = m
	}
	return res, nil
}

// SetSwitch posts {action, device_id} to /api/{kind}/switch. Radio and
// display use the same generic binary call.
func (c *Client) SetSwitch(ctx context.Context, id models.SensorIdentity, action models.SwitchAction) (SwitchResult, error) {
	body := switchRequest{Action: string(action), DeviceID: id.DeviceID}

	var out switchPayload
	if err := c.do(ctx, id.Kind, OpSetSwitch, http.MethodPost, "/api/"+id.Kind.PathPrefix()+"/switch", body, &out); err != nil {
		return SwitchResult{}, err
	}
	state := models.ParseBinaryState(out.State)
	if state == models.StateUnknown {
		// older firmware bridges omit state on success; the action is what was sent
		state = models.BinaryState(action)
	}
	return SwitchResult{
		BinaryState:       state,
		LastUpdatedAt:     out.UpdatedAt.v,
		LastCommandSource: out.LastVia,
		Via:               out.Via,
	}, nil
}

// ListDevices reads the device directory from GET /api/devices.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var out devicesPayload
	if err := c.do(ctx, "", OpListDevices, http.MethodGet, "/api/devices", nil, &out); err != nil {
		return nil, err
	}
	devices := make([]models.Device, 0, len(out.Devices))
	for _, d := range out.Devices {
		devices = append(devices, d.toDevice())
	}
	return devices, nil
}

// successReporter is implemented by every payload through the embedded envelope.
type successReporter interface {
	result() (bool, string)
}

func (e envelope) result() (bool, string) {
	return e.Success != nil && *e.Success, e.Error
}

// do performs one request and decodes the payload into out.
func (c *Client) do(ctx context.Context, kind models.SensorKind, op, method, path string, in any, out successReporter) error {
	err := c.roundTrip(ctx, op, method, path, in, out)
	c.metrics.GatewayRequest(string(kind), op, outcome(err))
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, in any, out successReporter) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return protocolError(op, "", fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return networkError(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return networkError(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ge := networkError(op, fmt.Errorf("unexpected status: %s", resp.Status))
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			ge.Message = env.Error
		}
		return ge
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return protocolError(op, "", fmt.Errorf("decode response: %w", err))
	}
	if ok, msg := out.result(); !ok {
		return protocolError(op, msg, nil)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsNetwork(err):
		return metrics.OutcomeNetwork
	default:
		return metrics.OutcomeProtocol
	}
}
