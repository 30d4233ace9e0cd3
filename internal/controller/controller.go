package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"envmon_dashboard/internal/accessgate"
	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/metrics"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/notify"
	"envmon_dashboard/internal/phaseclock"
)

// Domain errors.
var (
	ErrAuthDenied      = errors.New("action not approved")
	ErrModeUnsupported = errors.New("sensor does not support power modes")
	ErrInvalidMode     = errors.New("invalid power mode")
	ErrInvalidAction   = errors.New("invalid switch action")
	ErrUnknownKind     = errors.New("unknown sensor kind")
)

// DefaultPendingRetry is the delay before re-reading a pending phase.
const DefaultPendingRetry = 1500 * time.Millisecond

// Config carries a controller's collaborators. Only Gateway is required.
type Config struct {
	Gateway  gateway.Gateway
	Gate     accessgate.Approver
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Log      *logger.Logger

	Scheduler    Scheduler
	Now          func() time.Time
	PendingRetry time.Duration
	Tick         time.Duration
	ExpiryGuard  time.Duration
}

// Controller keeps one sensor's displayed state in step with the server.
// All mutation goes through its methods; network calls never run under mu.
type Controller struct {
	profile  Profile
	gateway  gateway.Gateway
	gate     accessgate.Approver
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *logger.Logger
	sched    Scheduler
	now      func() time.Time
	retryIn  time.Duration
	clock    *phaseclock.Clock
	refresh  singleflight.Group

	mu       sync.Mutex
	deviceID string
	state    models.ControllerState
	fsm      *phaseMachine
	feedback string
	inflight int // switch commands in flight
	open     bool
	retry    Timer
	retrySeq uint64
}

// New builds a controller for kind bound to deviceID.
func New(kind models.SensorKind, deviceID string, cfg Config) (*Controller, error) {
	p, ok := ProfileFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if cfg.Gateway == nil {
		return nil, errors.New("controller: gateway is required")
	}
	return newController(p, deviceID, cfg), nil
}

func newController(p Profile, deviceID string, cfg Config) *Controller {
	c := &Controller{
		profile:  p,
		gateway:  cfg.Gateway,
		gate:     cfg.Gate,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		log:      cfg.Log.Named("controller").With("kind", string(p.Kind)),
		sched:    cfg.Scheduler,
		now:      cfg.Now,
		retryIn:  cfg.PendingRetry,
		deviceID: models.NormalizeDeviceID(deviceID),
		state: models.ControllerState{
			Phase:       models.PhaseUnknown,
			Mode:        p.DefaultMode,
			BinaryState: models.StateUnknown,
		},
	}
	if c.gate == nil {
		c.gate = denyAll{}
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.sched == nil {
		c.sched = wallScheduler{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.retryIn <= 0 {
		c.retryIn = DefaultPendingRetry
	}
	if p.DefaultMode != "" {
		c.state.ModeName = ModeName(p.DefaultMode)
	}

	c.fsm = newPhaseMachine(c.armRetryLocked, c.disarmRetryLocked)
	c.clock = phaseclock.New(c.onExpire,
		phaseclock.WithInterval(cfg.Tick),
		phaseclock.WithExpiryGuard(cfg.ExpiryGuard),
		phaseclock.WithNow(c.now),
	)
	return c
}

// Kind returns the sensor kind the controller manages.
func (c *Controller) Kind() models.SensorKind { return c.profile.Kind }

// Identity returns the current (device, kind) binding.
func (c *Controller) Identity() models.SensorIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identityLocked()
}

func (c *Controller) identityLocked() models.SensorIdentity {
	return models.SensorIdentity{DeviceID: c.deviceID, Kind: c.profile.Kind}
}

// IsOpen reports whether a panel is showing this controller.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// View returns a snapshot for rendering.
func (c *Controller) View() models.View {
	now := c.now()

	c.mu.Lock()
	v := models.View{
		Identity:  c.identityLocked(),
		State:     c.state,
		Feedback:  c.feedback,
		Busy:      c.inflight > 0,
		Open:      c.open,
		ModeAware: c.profile.ModeAware,
	}
	c.mu.Unlock()

	if c.profile.ModeAware {
		v.Remaining = c.clock.Text(now)
	} else {
		v.Remaining = phaseclock.TextNoCountdown
	}
	return v
}

// Refresh reads the authoritative state. Concurrent calls for the same
// device share one request.
func (c *Controller) Refresh(ctx context.Context) error {
	select {
	case res := <-c.beginRefresh(ctx):
		if res.Shared {
			c.metrics.RefreshShared(string(c.profile.Kind))
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginRefresh starts or joins the in-flight fetch. The fetch itself is
// detached from ctx cancellation so a leaving caller cannot abort it for
// the others.
func (c *Controller) beginRefresh(ctx context.Context) <-chan singleflight.Result {
	id := c.Identity()
	fetchCtx := context.WithoutCancel(ctx)
	return c.refresh.DoChan(id.DeviceID, func() (any, error) {
		st, err := c.gateway.FetchState(fetchCtx, id)
		c.apply(id, st, err)
		return nil, err
	})
}

// apply installs a refresh result. Results for a device the controller has
// since been rebound away from are dropped.
func (c *Controller) apply(id models.SensorIdentity, st models.ControllerState, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deviceID != id.DeviceID {
		c.log.Debugw("controller_refresh_discarded", "device_id", id.DeviceID, "current_device_id", c.deviceID)
		return
	}

	if err != nil {
		c.log.Warnw("controller_refresh_failed", "device_id", id.DeviceID, "err", err)
		c.state.Phase = models.PhaseUnknown
		c.state.BinaryState = models.StateUnknown
		c.state.PhaseMessage = ""
		c.state.PhaseDeadline = nil
		c.state.LastUpdatedAt = nil
		c.state.LastCommandSource = ""
	} else {
		if st.Mode == "" {
			st.Mode, st.ModeName, st.ModeIcon = c.state.Mode, c.state.ModeName, c.state.ModeIcon
		}
		if st.ModeName == "" && st.Mode != "" {
			st.ModeName = ModeName(st.Mode)
		}
		c.state = st
	}

	c.resolveLocked(c.state.Phase)
	c.clock.Reschedule(c.state.Phase, c.state.PhaseDeadline)
}

// resolveLocked moves the phase machine, which arms or disarms the pending retry.
func (c *Controller) resolveLocked(p models.Phase) {
	if err := c.fsm.resolve(p); err != nil {
		c.log.Errorw("controller_phase_transition_failed", "phase", string(p), "err", err)
		return
	}
	c.state.Phase = c.fsm.current()
}

// armRetryLocked schedules the single delayed re-read of a pending phase.
// It replaces any timer already outstanding. Closed panels are not re-read.
func (c *Controller) armRetryLocked() {
	c.disarmRetryLocked()
	if !c.open {
		return
	}
	c.retrySeq++
	seq := c.retrySeq
	c.retry = c.sched.AfterFunc(c.retryIn, func() { c.fireRetry(seq) })
}

func (c *Controller) disarmRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

func (c *Controller) fireRetry(seq uint64) {
	c.mu.Lock()
	if c.retry == nil || seq != c.retrySeq {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.mu.Unlock()

	c.metrics.PendingRetry(string(c.profile.Kind))
	if err := c.Refresh(context.Background()); err != nil {
		c.log.Debugw("controller_pending_retry_failed", "err", err)
	}
}

// onExpire runs on the clock goroutine when the deadline has passed.
func (c *Controller) onExpire() {
	c.metrics.ExpiryRefresh(string(c.profile.Kind))
	if err := c.Refresh(context.Background()); err != nil {
		c.log.Debugw("controller_expiry_refresh_failed", "err", err)
	}
}

// SetMode asks the server to switch the duty-cycle schedule. Selecting the
// current mode does nothing.
func (c *Controller) SetMode(ctx context.Context, mode models.PowerMode) error {
	if !c.profile.ModeAware {
		return ErrModeUnsupported
	}
	if _, err := models.ParsePowerMode(string(mode)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	c.mu.Lock()
	if c.state.Mode == mode {
		c.mu.Unlock()
		return nil
	}
	id := c.identityLocked()
	c.mu.Unlock()

	if !c.gate.Approve(ctx, fmt.Sprintf("switch %s on %s to %s mode", c.profile.Label, id.DeviceID, mode)) {
		return ErrAuthDenied
	}

	res, err := c.gateway.SetMode(ctx, id, mode)
	if err != nil {
		msg := modeFailure(err)
		c.setFeedback(id, msg)
		c.notify(id, models.LevelError, msg)
		c.log.Warnw("controller_set_mode_failed", "device_id", id.DeviceID, "mode", string(mode), "err", err)
		return err
	}

	msg := "switched to " + modeLabel(res.Mode, res.ModeName, res.ModeIcon)
	c.mu.Lock()
	if c.deviceID == id.DeviceID {
		c.state.Mode = res.Mode
		c.state.ModeName = res.ModeName
		if c.state.ModeName == "" {
			c.state.ModeName = ModeName(res.Mode)
		}
		c.state.ModeIcon = res.ModeIcon
		c.feedback = msg
	}
	c.mu.Unlock()
	c.notify(id, models.LevelInfo, msg)
	c.log.Infow("controller_mode_changed", "device_id", id.DeviceID, "mode", string(res.Mode))

	if err := c.Refresh(context.WithoutCancel(ctx)); err != nil {
		c.log.Warnw("controller_post_mode_refresh_failed", "device_id", id.DeviceID, "err", err)
	}
	return nil
}

// SetSwitch forces the sensor on or off. Once approved, a closing refresh
// always follows the command, whether it succeeded or not.
func (c *Controller) SetSwitch(ctx context.Context, action models.SwitchAction) (err error) {
	if _, perr := models.ParseSwitchAction(string(action)); perr != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	id := c.Identity()

	if !c.gate.Approve(ctx, fmt.Sprintf("turn %s %s on %s", c.profile.Label, action, id.DeviceID)) {
		return ErrAuthDenied
	}

	c.mu.Lock()
	c.inflight++
	if c.deviceID == id.DeviceID {
		c.feedback = ""
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
		if rerr := c.Refresh(context.WithoutCancel(ctx)); rerr != nil {
			c.log.Warnw("controller_closing_refresh_failed", "device_id", id.DeviceID, "err", rerr)
		}
	}()

	res, err := c.gateway.SetSwitch(ctx, id, action)
	if err != nil {
		msg := switchFailure(err)
		c.setFeedback(id, msg)
		c.notify(id, models.LevelError, msg)
		c.log.Warnw("controller_switch_failed", "device_id", id.DeviceID, "action", string(action), "err", err)
		return err
	}

	msg := fmt.Sprintf("sent %s command via %s", action, viaLabel(res.Via))
	c.mu.Lock()
	if c.deviceID == id.DeviceID {
		c.state.BinaryState = res.BinaryState
		c.state.LastUpdatedAt = res.LastUpdatedAt
		c.state.LastCommandSource = res.LastCommandSource
		c.feedback = msg
	}
	c.mu.Unlock()
	c.notify(id, models.LevelInfo, msg)
	c.log.Infow("controller_switch_sent", "device_id", id.DeviceID, "action", string(action), "via", res.Via)
	return nil
}

// BindDevice points the controller at another device. Rebinding to the
// current device does nothing.
func (c *Controller) BindDevice(ctx context.Context, deviceID string) error {
	if !c.bind(deviceID) {
		return nil
	}
	return c.Refresh(ctx)
}

// bind switches the device under the lock and reports whether it changed.
func (c *Controller) bind(deviceID string) bool {
	deviceID = models.NormalizeDeviceID(deviceID)
	if deviceID == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if deviceID == c.deviceID {
		return false
	}
	c.log.Infow("controller_rebound", "from", c.deviceID, "to", deviceID)
	c.deviceID = deviceID
	c.state.Phase = models.PhaseUnknown
	c.state.BinaryState = models.StateUnknown
	c.state.PhaseMessage = ""
	c.state.PhaseDeadline = nil
	c.state.LastUpdatedAt = nil
	c.state.LastCommandSource = ""
	c.feedback = ""
	c.resolveLocked(models.PhaseUnknown)
	c.disarmRetryLocked()
	c.clock.Clear()
	return true
}

// Open marks the panel visible for deviceID, starts the countdown and
// refreshes. A different device is bound first.
func (c *Controller) Open(ctx context.Context, deviceID string) error {
	c.bind(deviceID)

	c.mu.Lock()
	c.open = true
	c.mu.Unlock()

	if c.profile.ModeAware {
		c.clock.Start()
	}
	return c.Refresh(ctx)
}

// Close hides the panel: the countdown stops and the pending retry is
// cancelled. In-flight requests still land in state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.open = false
	c.disarmRetryLocked()
	c.mu.Unlock()

	c.clock.Stop()
}

func (c *Controller) setFeedback(id models.SensorIdentity, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deviceID == id.DeviceID {
		c.feedback = msg
	}
}

func (c *Controller) notify(id models.SensorIdentity, level, msg string) {
	c.notifier.Notify(models.Notification{
		DeviceID: id.DeviceID,
		Kind:     id.Kind,
		Level:    level,
		Message:  msg,
		At:       c.now().UTC(),
	})
}

func modeFailure(err error) string {
	if gateway.IsNetwork(err) {
		return "mode change failed, check the connection"
	}
	msg := gateway.ServerMessage(err)
	if msg == "" {
		msg = "unknown error"
	}
	return "mode change failed: " + msg
}

func switchFailure(err error) string {
	if gateway.IsNetwork(err) {
		return "send failed, check the connection"
	}
	msg := gateway.ServerMessage(err)
	if msg == "" {
		msg = "unknown error"
	}
	return "send failed: " + msg
}

func viaLabel(via string) string {
	switch via {
	case "BLE", "MQTT":
		return via
	default:
		return "API"
	}
}

// denyAll rejects everything; used when no gate is configured.
type denyAll struct{}

func (denyAll) Approve(context.Context, string) bool { return false }
