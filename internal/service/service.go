package service

import (
	"context"

	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/registry"
	"envmon_dashboard/internal/repository"
)

// Panels exposes the per-sensor control panels of the active device.
type Panels interface {
	Open(ctx context.Context, kind models.SensorKind) (models.View, error)
	Close(ctx context.Context, kind models.SensorKind)
	View(ctx context.Context, kind models.SensorKind) (models.View, error)
	Views(ctx context.Context) []models.View
	Refresh(ctx context.Context, kind models.SensorKind) (models.View, error)
	SetMode(ctx context.Context, kind models.SensorKind, p ModeParams) (models.View, error)
	SetSwitch(ctx context.Context, kind models.SensorKind, p SwitchParams) (models.View, error)
	ActiveDevice(ctx context.Context) string
	SelectDevice(ctx context.Context, deviceID string) (string, error)
}

// Devices exposes the upstream device directory.
type Devices interface {
	List(ctx context.Context) ([]models.Device, error)
}

// EventLog exposes the operator command journal with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ControlEvent, error)
}

type Service struct {
	Panels
	Devices
	EventLog
}

// NewService wires the registry, the gateway and the journal into services.
func NewService(repos *repository.Repository, reg *registry.Registry, gw gateway.Gateway, log *logger.Logger) *Service {
	return &Service{
		Panels:   NewPanelService(reg, repos.EventRepo, log),
		Devices:  NewDeviceService(gw),
		EventLog: NewEventLogService(repos.EventRepo),
	}
}
