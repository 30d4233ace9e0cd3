package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"envmon_dashboard/internal/controller"
	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/registry"
	"envmon_dashboard/internal/repository"
)

type PanelService struct {
	reg       *registry.Registry
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewPanelService(reg *registry.Registry, eventRepo repository.EventRepo, log *logger.Logger) *PanelService {
	return &PanelService{reg: reg, eventRepo: eventRepo, log: log.Named("panels")}
}

// Open holds the panel of kind open for the active device and returns its
// view after the opening refresh. A failed refresh is reflected in the view
// and also returned.
func (s *PanelService) Open(ctx context.Context, kind models.SensorKind) (models.View, error) {
	c, err := s.reg.Open(ctx, kind)
	if c == nil {
		return models.View{}, err
	}
	return c.View(), err
}

func (s *PanelService) Close(_ context.Context, kind models.SensorKind) {
	s.reg.Close(kind)
}

func (s *PanelService) View(_ context.Context, kind models.SensorKind) (models.View, error) {
	c, err := s.reg.Lookup(kind)
	if err != nil {
		return models.View{}, err
	}
	return c.View(), nil
}

func (s *PanelService) Views(_ context.Context) []models.View {
	return s.reg.Views()
}

func (s *PanelService) Refresh(ctx context.Context, kind models.SensorKind) (models.View, error) {
	c, err := s.active(ctx, kind)
	if err != nil {
		return models.View{}, err
	}
	err = c.Refresh(ctx)
	return c.View(), err
}

// SetMode changes the power mode and journals the attempt.
func (s *PanelService) SetMode(ctx context.Context, kind models.SensorKind, p ModeParams) (models.View, error) {
	mode, err := models.ParsePowerMode(p.Mode)
	if err != nil {
		return models.View{}, fmt.Errorf("%w: %v", controller.ErrInvalidMode, err)
	}
	c, err := s.active(ctx, kind)
	if err != nil {
		return models.View{}, err
	}

	before := c.View()
	err = c.SetMode(ctx, mode)
	after := c.View()

	meta := map[string]any{"mode": string(mode), "previous_mode": string(before.State.Mode)}
	switch {
	case errors.Is(err, controller.ErrAuthDenied):
		s.record(ctx, models.EventAuthDenied, after.Identity, fmt.Sprintf("mode change to %s not approved", mode), meta)
	case errors.Is(err, controller.ErrModeUnsupported):
		// nothing was attempted
	case err != nil:
		s.record(ctx, models.EventCommandFailed, after.Identity, after.Feedback, meta)
	case before.State.Mode != after.State.Mode:
		s.record(ctx, models.EventModeChange, after.Identity, after.Feedback, meta)
	}
	return after, err
}

// SetSwitch forces the sensor on or off and journals the attempt.
func (s *PanelService) SetSwitch(ctx context.Context, kind models.SensorKind, p SwitchParams) (models.View, error) {
	action, err := models.ParseSwitchAction(p.Action)
	if err != nil {
		return models.View{}, fmt.Errorf("%w: %v", controller.ErrInvalidAction, err)
	}
	c, err := s.active(ctx, kind)
	if err != nil {
		return models.View{}, err
	}

	err = c.SetSwitch(ctx, action)
	v := c.View()

	meta := map[string]any{"action": string(action)}
	switch {
	case errors.Is(err, controller.ErrAuthDenied):
		s.record(ctx, models.EventAuthDenied, v.Identity, fmt.Sprintf("%s command not approved", action), meta)
	case err != nil:
		s.record(ctx, models.EventCommandFailed, v.Identity, v.Feedback, meta)
	default:
		meta["via"] = v.State.LastCommandSource
		s.record(ctx, models.EventSwitch, v.Identity, v.Feedback, meta)
	}
	return v, err
}

func (s *PanelService) ActiveDevice(_ context.Context) string {
	return s.reg.ActiveDevice()
}

// SelectDevice changes the active device; open panels follow immediately.
func (s *PanelService) SelectDevice(ctx context.Context, deviceID string) (string, error) {
	previous := s.reg.ActiveDevice()
	if err := s.reg.RebindActiveDevice(ctx, deviceID); err != nil {
		if errors.Is(err, registry.ErrEmptyDeviceID) {
			return previous, err
		}
		// the selection itself succeeded; refresh failures show in the views
		s.log.Warnw("panels_rebind_refresh_failed", "device_id", deviceID, "err", err)
	}
	current := s.reg.ActiveDevice()
	if current != previous {
		s.record(ctx, models.EventContextChange, models.SensorIdentity{DeviceID: current},
			fmt.Sprintf("active device changed from %s to %s", previous, current),
			map[string]any{"previous": previous})
	}
	return current, nil
}

// active returns the controller of kind bound to the active device.
func (s *PanelService) active(ctx context.Context, kind models.SensorKind) (*controller.Controller, error) {
	return s.reg.Get(ctx, models.NewIdentity(s.reg.ActiveDevice(), kind))
}

// record journals an operator action. Journal failures never fail the action.
func (s *PanelService) record(ctx context.Context, typ string, id models.SensorIdentity, msg string, meta map[string]any) {
	if s.eventRepo == nil {
		return
	}
	err := s.eventRepo.Append(context.WithoutCancel(ctx), models.ControlEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		DeviceID:    id.DeviceID,
		Kind:        id.Kind,
		Description: msg,
		Metadata:    meta,
	})
	if err != nil {
		s.log.Errorw("panels_journal_append_failed", "type", typ, "err", err)
	}
}
