package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewWithRegistry("givc-admin", "test", prometheus.NewRegistry())
}

func TestRegistryEntriesGauge(t *testing.T) {
	m := newTestMetrics(t)
	m.SetRegistryEntries(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RegistryEntries))
}

func TestCounters(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordEvent("UnitRegistered")
	m.RecordEvent("UnitRegistered")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("UnitRegistered")))

	m.RecordProbeFailure("givc-net-vm.service")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeFailuresTotal.WithLabelValues("givc-net-vm.service")))

	m.RecordAdminRequest("StartVM", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdminRequestsTotal.WithLabelValues("StartVM", "ok")))

	m.RecordAgentRPC("Get", "ok", 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AgentRPCTotal.WithLabelValues("Get", "ok")))
}

func TestBreakerStateGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordBreakerState("givc-net-vm.service", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTripped.WithLabelValues("givc-net-vm.service")))

	m.RecordBreakerState("givc-net-vm.service", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerTripped.WithLabelValues("givc-net-vm.service")))
}

func TestDuplicateRegistrationPanicsOnSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry("givc-admin", "test", reg)
	require.Panics(t, func() {
		NewWithRegistry("givc-admin", "test", reg)
	})
}

func TestUpdateUptime(t *testing.T) {
	m := newTestMetrics(t)
	m.UpdateUptime(time.Now().Add(-2 * time.Second))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.ServiceUptime), 2.0)
}

func TestEnabledDefaultsOn(t *testing.T) {
	t.Setenv("GIVC_METRICS_ENABLED", "")
	assert.True(t, Enabled())

	t.Setenv("GIVC_METRICS_ENABLED", "false")
	assert.False(t, Enabled())

	t.Setenv("GIVC_METRICS_ENABLED", "yes")
	assert.True(t, Enabled())
}
