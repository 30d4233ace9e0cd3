package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"envmon_dashboard/internal/controller"
	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/metrics"
	"envmon_dashboard/internal/models"
)

// Registry owns the session's controllers, one per sensor kind, created on
// first use. Callers mutate controllers only through the registry or the
// controllers' own methods.
type Registry struct {
	active  *ActiveDeviceContext
	cfg     controller.Config
	metrics *metrics.Metrics
	log     *logger.Logger

	mu          sync.Mutex
	controllers map[models.SensorKind]*controller.Controller
	refs        map[models.SensorKind]int
}

// New creates an empty registry. cfg is handed to every controller it builds.
func New(active *ActiveDeviceContext, cfg controller.Config) *Registry {
	if active == nil {
		active = NewActiveDeviceContext("")
	}
	return &Registry{
		active:      active,
		cfg:         cfg,
		metrics:     cfg.Metrics,
		log:         cfg.Log.Named("registry"),
		controllers: make(map[models.SensorKind]*controller.Controller),
		refs:        make(map[models.SensorKind]int),
	}
}

// ActiveDevice returns the selected device id.
func (r *Registry) ActiveDevice() string {
	return r.active.DeviceID()
}

// controllerFor returns the controller of kind, creating it bound to
// deviceID when missing.
func (r *Registry) controllerFor(kind models.SensorKind, deviceID string) (*controller.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[kind]; ok {
		return c, nil
	}
	c, err := controller.New(kind, deviceID, r.cfg)
	if err != nil {
		return nil, err
	}
	r.controllers[kind] = c
	r.log.Debugw("registry_controller_created", "kind", string(kind), "device_id", deviceID)
	return c, nil
}

// Get returns the controller for id, rebinding it to id's device if needed.
// A failed rebind refresh is logged; the controller is still returned.
func (r *Registry) Get(ctx context.Context, id models.SensorIdentity) (*controller.Controller, error) {
	c, err := r.controllerFor(id.Kind, id.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := c.BindDevice(ctx, id.DeviceID); err != nil {
		r.log.Warnw("registry_rebind_refresh_failed", "identity", id.String(), "err", err)
	}
	return c, nil
}

// Lookup returns the controller of kind bound to the active device without
// refreshing it.
func (r *Registry) Lookup(kind models.SensorKind) (*controller.Controller, error) {
	return r.controllerFor(kind, r.active.DeviceID())
}

// Open shows the panel of kind for the active device. Several sessions may
// hold one panel open; each Open needs a matching Close.
func (r *Registry) Open(ctx context.Context, kind models.SensorKind) (*controller.Controller, error) {
	deviceID := r.active.DeviceID()
	c, err := r.controllerFor(kind, deviceID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.refs[kind]++
	n := r.refs[kind]
	r.mu.Unlock()
	r.metrics.SetOpenPanels(string(kind), n)

	return c, c.Open(ctx, deviceID)
}

// Close releases one hold on the panel of kind. The controller is closed
// when the last holder leaves.
func (r *Registry) Close(kind models.SensorKind) {
	r.mu.Lock()
	c, ok := r.controllers[kind]
	if !ok || r.refs[kind] == 0 {
		r.mu.Unlock()
		return
	}
	r.refs[kind]--
	n := r.refs[kind]
	r.mu.Unlock()

	r.metrics.SetOpenPanels(string(kind), n)
	if n == 0 {
		c.Close()
	}
}

// OpenCount returns how many holders the panel of kind has.
func (r *Registry) OpenCount(kind models.SensorKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[kind]
}

// RebindActiveDevice selects deviceID and rebinds the controllers whose
// panel is open. Hidden controllers pick the device up on their next Open.
func (r *Registry) RebindActiveDevice(ctx context.Context, deviceID string) error {
	id, changed, err := r.active.Set(deviceID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	r.log.Infow("registry_active_device_changed", "device_id", id)

	var errs []error
	for _, c := range r.live() {
		if !c.IsOpen() {
			continue
		}
		if err := c.BindDevice(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

// Views returns a snapshot of every live controller in display order.
func (r *Registry) Views() []models.View {
	live := r.live()
	out := make([]models.View, 0, len(live))
	for _, c := range live {
		out = append(out, c.View())
	}
	return out
}

// CloseAll stops every controller; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	for k := range r.refs {
		r.refs[k] = 0
	}
	r.mu.Unlock()
	for _, c := range r.live() {
		c.Close()
		r.metrics.SetOpenPanels(string(c.Kind()), 0)
	}
}

func (r *Registry) live() []*controller.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*controller.Controller, 0, len(r.controllers))
	for _, k := range models.AllKinds {
		if c, ok := r.controllers[k]; ok {
			out = append(out, c)
		}
	}
	return out
}
