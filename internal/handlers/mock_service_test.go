package handlers

import (
	"context"
	"sync"
	"time"

	"envmon_dashboard/internal/accessgate"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockPanels struct {
	mu sync.Mutex

	view      models.View
	viewErr   error
	openErr   error
	noView    bool
	actionErr error
	active    string
	selectErr error

	opened, closed int
	lastMode       service.ModeParams
	lastSwitch     service.SwitchParams
	lastKind       models.SensorKind
	lastSecret     string
	hadPrompter    bool
}

func (m *mockPanels) viewFor(kind models.SensorKind) models.View {
	v := m.view
	v.Identity.Kind = kind
	return v
}

func (m *mockPanels) Open(_ context.Context, kind models.SensorKind) (models.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
	m.lastKind = kind
	if m.noView {
		return models.View{}, m.openErr
	}
	v := m.viewFor(kind)
	v.Open = true
	return v, m.openErr
}

func (m *mockPanels) Close(_ context.Context, kind models.SensorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	m.lastKind = kind
}

func (m *mockPanels) View(_ context.Context, kind models.SensorKind) (models.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.viewErr != nil {
		return models.View{}, m.viewErr
	}
	return m.viewFor(kind), nil
}

func (m *mockPanels) Views(context.Context) []models.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []models.View{m.viewFor(models.KindMQ2)}
}

func (m *mockPanels) Refresh(_ context.Context, kind models.SensorKind) (models.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastKind = kind
	return m.viewFor(kind), m.actionErr
}

// SetMode answers the gate the way the real controller would, so tests can
// check which secret the middleware attached.
func (m *mockPanels) SetMode(ctx context.Context, kind models.SensorKind, p service.ModeParams) (models.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastKind = kind
	m.lastMode = p
	m.capturePrompt(ctx)
	return m.viewFor(kind), m.actionErr
}

func (m *mockPanels) SetSwitch(ctx context.Context, kind models.SensorKind, p service.SwitchParams) (models.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastKind = kind
	m.lastSwitch = p
	m.capturePrompt(ctx)
	return m.viewFor(kind), m.actionErr
}

func (m *mockPanels) capturePrompt(ctx context.Context) {
	p, ok := accessgate.PrompterFrom(ctx)
	m.hadPrompter = ok
	if ok {
		m.lastSecret, _ = p.Prompt(ctx, "", 1)
	}
}

func (m *mockPanels) ActiveDevice(context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" {
		return "D01"
	}
	return m.active
}

func (m *mockPanels) SelectDevice(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectErr != nil {
		return m.active, m.selectErr
	}
	m.active = models.NormalizeDeviceID(id)
	return m.active, nil
}

func (m *mockPanels) counts() (opened, closed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed
}

type mockDevices struct {
	resp []models.Device
	err  error
}

func (m *mockDevices) List(context.Context) ([]models.Device, error) {
	return m.resp, m.err
}

type mockEventLog struct {
	resp   []models.ControlEvent
	err    error
	last   service.LogFilter
	called int
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.ControlEvent, error) {
	m.called++
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, opts ...Option) *gin.Engine {
	h := NewHandler(s, nil, opts...)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// fixedView returns a view of an MQ2 panel in its on phase.
func fixedView() models.View {
	deadline := float64(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).Unix())
	return models.View{
		Identity: models.SensorIdentity{DeviceID: "D01", Kind: models.KindMQ2},
		State: models.ControllerState{
			Phase:         models.PhaseOn,
			Mode:          models.ModeEco,
			BinaryState:   models.StateOn,
			PhaseDeadline: &deadline,
		},
		Remaining: "1m 5s",
		ModeAware: true,
	}
}
