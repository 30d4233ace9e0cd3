package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gateway call outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNetwork  = "network_error"
	OutcomeProtocol = "protocol_error"
)

// Metrics holds the service collectors on a private registry so tests
// can build as many instances as they like. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	gatewayRequests *prometheus.CounterVec
	refreshShared   *prometheus.CounterVec
	pendingRetries  *prometheus.CounterVec
	expiryRefreshes *prometheus.CounterVec
	gateDecisions   *prometheus.CounterVec
	openPanels      *prometheus.GaugeVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envmon_gateway_requests_total",
				Help: "Remote state gateway calls by sensor kind, operation and outcome",
			},
			[]string{"kind", "op", "outcome"},
		),
		refreshShared: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envmon_refresh_shared_total",
				Help: "Refresh calls whose state fetch was shared with a concurrent caller",
			},
			[]string{"kind"},
		),
		pendingRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envmon_pending_retries_total",
				Help: "Delayed re-refreshes fired while a mode change was pending",
			},
			[]string{"kind"},
		),
		expiryRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envmon_expiry_refreshes_total",
				Help: "Refreshes triggered by a phase deadline reaching zero",
			},
			[]string{"kind"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "envmon_gate_decisions_total",
				Help: "Shared-secret gate outcomes (approved, denied, cancelled)",
			},
			[]string{"outcome"},
		),
		openPanels: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "envmon_open_panels",
				Help: "Number of UI sessions currently watching a sensor panel",
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(
		m.gatewayRequests,
		m.refreshShared,
		m.pendingRetries,
		m.expiryRefreshes,
		m.gateDecisions,
		m.openPanels,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) GatewayRequest(kind, op, outcome string) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(kind, op, outcome).Inc()
}

func (m *Metrics) RefreshShared(kind string) {
	if m == nil {
		return
	}
	m.refreshShared.WithLabelValues(kind).Inc()
}

func (m *Metrics) PendingRetry(kind string) {
	if m == nil {
		return
	}
	m.pendingRetries.WithLabelValues(kind).Inc()
}

func (m *Metrics) ExpiryRefresh(kind string) {
	if m == nil {
		return
	}
	m.expiryRefreshes.WithLabelValues(kind).Inc()
}

func (m *Metrics) GateDecision(outcome string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetOpenPanels(kind string, n int) {
	if m == nil {
		return
	}
	m.openPanels.WithLabelValues(kind).Set(float64(n))
}
