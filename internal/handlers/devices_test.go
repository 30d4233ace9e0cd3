package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/metrics"
	"envmon_dashboard/internal/models"
	"envmon_dashboard/internal/registry"
	"envmon_dashboard/internal/service"
)

func TestDevicesHandler_List(t *testing.T) {
	devices := &mockDevices{resp: []models.Device{
		{ID: "D01", Name: "Lab", Online: true, HasBLE: true},
		{ID: "D02", Name: "Greenhouse", HasMQTT: true},
	}}
	r := newTestRouter(&service.Service{Devices: devices})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count   int             `json:"count"`
		Devices []models.Device `json:"devices"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Devices[1].Name != "Greenhouse" || !out.Devices[1].HasMQTT {
		t.Fatalf("unexpected response: %+v", out)
	}

	devices.err = &gateway.Error{Kind: gateway.KindNetwork, Op: gateway.OpListDevices}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestContextHandlers(t *testing.T) {
	panels := &mockPanels{view: fixedView()}
	r := newTestRouter(&service.Service{Panels: panels})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/context", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"device_id":"D01"`) {
		t.Fatalf("get context status=%d body=%s", w.Code, w.Body.String())
	}

	w, _ = doJSON(t, r, http.MethodPut, "/api/v1/context", `{"device_id":"d02"}`, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"device_id":"D02"`) {
		t.Fatalf("put context status=%d body=%s", w.Code, w.Body.String())
	}

	w, _ = doJSON(t, r, http.MethodPut, "/api/v1/context", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing device_id status=%d", w.Code)
	}

	panels.selectErr = registry.ErrEmptyDeviceID
	w, _ = doJSON(t, r, http.MethodPut, "/api/v1/context", `{"device_id":"  "}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank device_id status=%d", w.Code)
	}
}

func TestSystemRoutes(t *testing.T) {
	r := newTestRouter(&service.Service{}, WithMetrics(metrics.New().Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", w.Code)
	}

	// /metrics is absent without a metrics handler
	r = newTestRouter(&service.Service{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", w.Code)
	}
}
