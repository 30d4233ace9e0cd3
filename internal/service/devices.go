package service

import (
	"context"

	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/models"
)

type DeviceService struct {
	gw gateway.Gateway
}

func NewDeviceService(gw gateway.Gateway) *DeviceService {
	return &DeviceService{gw: gw}
}

func (s *DeviceService) List(ctx context.Context) ([]models.Device, error) {
	return s.gw.ListDevices(ctx)
}
