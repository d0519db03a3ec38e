// Package metrics provides the admin process's Prometheus collectors,
// exposed over the debug HTTP listener.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tiiuae/ghaf-givc/internal/obs/config"
)

// Metrics holds every collector the control plane records into.
type Metrics struct {
	// Registry state
	RegistryEntries prometheus.Gauge
	EventsTotal     *prometheus.CounterVec

	// Supervisor
	SupervisorTickDuration prometheus.Histogram
	ProbeFailuresTotal     *prometheus.CounterVec

	// Agent RPC
	AgentRPCTotal    *prometheus.CounterVec
	AgentRPCDuration *prometheus.HistogramVec
	BreakerTripped   *prometheus.GaugeVec

	// Admin RPC surface
	AdminRequestsTotal *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a Metrics instance registered on the default registerer.
func New(serviceName, version string) *Metrics {
	return NewWithRegistry(serviceName, version, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered on registerer; tests
// pass a private registry to avoid duplicate-registration panics.
func NewWithRegistry(serviceName, version string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RegistryEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "givc_registry_entries",
				Help: "Current number of registered units",
			},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "givc_registry_events_total",
				Help: "Total number of registry lifecycle events published",
			},
			[]string{"kind"},
		),
		SupervisorTickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "givc_supervisor_tick_duration_seconds",
				Help:    "Duration of one full supervision pass",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
			},
		),
		ProbeFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "givc_supervisor_probe_failures_total",
				Help: "Total number of failed unit status probes",
			},
			[]string{"unit"},
		),
		AgentRPCTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "givc_agent_rpc_total",
				Help: "Total number of agent RPC calls",
			},
			[]string{"method", "status"},
		),
		AgentRPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "givc_agent_rpc_duration_seconds",
				Help:    "Agent RPC call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		BreakerTripped: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "givc_agent_breaker_tripped",
				Help: "1 while the named agent's failure breaker is tripped",
			},
			[]string{"agent"},
		),
		AdminRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "givc_admin_requests_total",
				Help: "Total number of admin RPC requests handled",
			},
			[]string{"method", "status"},
		),
		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "givc_service_uptime_seconds",
				Help: "Admin process uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "givc_service_info",
				Help: "Admin process build information",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RegistryEntries,
			m.EventsTotal,
			m.SupervisorTickDuration,
			m.ProbeFailuresTotal,
			m.AgentRPCTotal,
			m.AgentRPCDuration,
			m.BreakerTripped,
			m.AdminRequestsTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, version).Set(1)
	return m
}

// SetRegistryEntries records the current registry size.
func (m *Metrics) SetRegistryEntries(count int) {
	m.RegistryEntries.Set(float64(count))
}

// RecordEvent counts one published registry event.
func (m *Metrics) RecordEvent(kind string) {
	m.EventsTotal.WithLabelValues(kind).Inc()
}

// ObserveSupervisorTick records the duration of one supervision pass.
func (m *Metrics) ObserveSupervisorTick(d time.Duration) {
	m.SupervisorTickDuration.Observe(d.Seconds())
}

// RecordProbeFailure counts one failed status probe.
func (m *Metrics) RecordProbeFailure(unit string) {
	m.ProbeFailuresTotal.WithLabelValues(unit).Inc()
}

// RecordAgentRPC records the outcome and duration of one agent RPC call.
func (m *Metrics) RecordAgentRPC(method, status string, d time.Duration) {
	m.AgentRPCTotal.WithLabelValues(method, status).Inc()
	m.AgentRPCDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordBreakerState reflects an agent breaker's trip/close transitions.
func (m *Metrics) RecordBreakerState(agent string, tripped bool) {
	v := 0.0
	if tripped {
		v = 1.0
	}
	m.BreakerTripped.WithLabelValues(agent).Set(v)
}

// RecordAdminRequest records one handled admin RPC.
func (m *Metrics) RecordAdminRequest(method, status string) {
	m.AdminRequestsTotal.WithLabelValues(method, status).Inc()
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// Enabled reports whether the metrics endpoint should be exposed, defaulting
// to on and switchable via GIVC_METRICS_ENABLED.
func Enabled() bool {
	raw := strings.ToLower(config.GetEnv("GIVC_METRICS_ENABLED", "true"))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the process-wide metrics instance once.
func Init(serviceName, version string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New(serviceName, version)
	}
	return globalMetrics
}

// Global returns the process-wide metrics instance, initializing a fallback
// if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = New("givc", "dev")
	}
	return globalMetrics
}
