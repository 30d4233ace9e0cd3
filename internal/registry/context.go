package registry

import (
	"errors"
	"sync"

	"envmon_dashboard/internal/models"
)

// DefaultDeviceID is selected until the operator picks another device.
const DefaultDeviceID = "D01"

// ErrEmptyDeviceID is returned when selecting a blank device id.
var ErrEmptyDeviceID = errors.New("device id is empty")

// ActiveDeviceContext holds the operator's currently selected device.
type ActiveDeviceContext struct {
	mu       sync.RWMutex
	deviceID string
}

// NewActiveDeviceContext starts with deviceID, or DefaultDeviceID when blank.
func NewActiveDeviceContext(deviceID string) *ActiveDeviceContext {
	id := models.NormalizeDeviceID(deviceID)
	if id == "" {
		id = DefaultDeviceID
	}
	return &ActiveDeviceContext{deviceID: id}
}

// DeviceID returns the selected device.
func (a *ActiveDeviceContext) DeviceID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.deviceID
}

// Set selects deviceID and reports whether the selection changed.
func (a *ActiveDeviceContext) Set(deviceID string) (string, bool, error) {
	id := models.NormalizeDeviceID(deviceID)
	if id == "" {
		return "", false, ErrEmptyDeviceID
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := id != a.deviceID
	a.deviceID = id
	return id, changed, nil
}
