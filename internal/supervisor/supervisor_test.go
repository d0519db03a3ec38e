package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

type fakeActions struct {
	mu        sync.Mutex
	statuses  map[string]units.UnitStatus
	probeErr  map[string]error
	startedVM []string
}

func newFakeActions() *fakeActions {
	return &fakeActions{
		statuses: make(map[string]units.UnitStatus),
		probeErr: make(map[string]error),
	}
}

func (f *fakeActions) GetUnitStatus(_ context.Context, entry registry.RegistryEntry) (units.UnitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.probeErr[entry.Name]; err != nil {
		return units.UnitStatus{}, err
	}
	return f.statuses[entry.Name], nil
}

func (f *fakeActions) StartVM(_ context.Context, vmName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startedVM = append(f.startedVM, vmName)
	return nil
}

func running(name string) units.UnitStatus {
	return units.UnitStatus{
		Name:         name,
		LoadState:    units.LoadLoaded,
		ActiveState:  units.ActiveActive,
		SubState:     units.SubRunning,
		FreezerState: units.FreezerRunning,
	}
}

func exitted(name string) units.UnitStatus {
	s := running(name)
	s.ActiveState = units.ActiveInactive
	s.SubState = units.SubDead
	return s
}

func newSupervisor(t *testing.T, reg *registry.Registry, actions Actions) *Supervisor {
	t.Helper()
	sup, err := New(reg, actions, zerolog.Nop(), nil)
	require.NoError(t, err)
	return sup
}

func TestTickPersistsStatus(t *testing.T) {
	reg := registry.New(nil)
	actions := newFakeActions()

	mgr := registry.RegistryEntry{
		Name:  units.AgentUnit("chromium"),
		Type:  units.UnitType{VM: units.AppVM, Service: units.Mgr},
		Watch: true,
	}
	reg.Register(mgr)
	actions.statuses[mgr.Name] = running(mgr.Name)

	newSupervisor(t, reg, actions).Tick(context.Background())

	got, ok := reg.ByName(mgr.Name)
	require.True(t, ok)
	assert.Equal(t, units.ActiveActive, got.Status.ActiveState)
	assert.Empty(t, actions.startedVM)
}

func TestExittedAppIsDeregistered(t *testing.T) {
	reg := registry.New(nil)
	actions := newFakeActions()

	app := registry.RegistryEntry{
		Name:      units.IndexedUnit("chromium", 0),
		Type:      units.UnitType{VM: units.AppVM, Service: units.App},
		Placement: registry.ManagedPlacement("chromium", units.AgentUnit("chromium")),
		Watch:     true,
	}
	reg.Register(app)
	actions.statuses[app.Name] = exitted(app.Name)

	newSupervisor(t, reg, actions).Tick(context.Background())

	_, ok := reg.ByName(app.Name)
	assert.False(t, ok)
}

func TestDeadManagerTriggersVMRecovery(t *testing.T) {
	reg := registry.New(nil)
	actions := newFakeActions()

	mgr := registry.RegistryEntry{
		Name:  units.AgentUnit("net"),
		Type:  units.UnitType{VM: units.SysVM, Service: units.Mgr},
		Watch: true,
	}
	reg.Register(mgr)
	actions.probeErr[mgr.Name] = errors.New("connection refused")

	newSupervisor(t, reg, actions).Tick(context.Background())

	assert.Equal(t, []string{"net"}, actions.startedVM)
}

func TestNonStandardManagerNameSoftFails(t *testing.T) {
	reg := registry.New(nil)
	actions := newFakeActions()

	mgr := registry.RegistryEntry{
		Name:  "oddly-named.service",
		Type:  units.UnitType{VM: units.SysVM, Service: units.Mgr},
		Watch: true,
	}
	reg.Register(mgr)
	actions.probeErr[mgr.Name] = errors.New("connection refused")

	newSupervisor(t, reg, actions).Tick(context.Background())

	assert.Empty(t, actions.startedVM)
}

func TestUnwatchedEntriesAreSkipped(t *testing.T) {
	reg := registry.New(nil)
	actions := newFakeActions()

	svc := registry.RegistryEntry{
		Name:  "sshd.service",
		Type:  units.UnitType{VM: units.SysVM, Service: units.Svc},
		Watch: false,
	}
	reg.Register(svc)
	actions.probeErr[svc.Name] = errors.New("should never be probed")

	newSupervisor(t, reg, actions).Tick(context.Background())

	_, ok := reg.ByName(svc.Name)
	assert.True(t, ok)
}

func TestInactiveStatusStillPersistedBeforeRecovery(t *testing.T) {
	reg := registry.New(nil)
	actions := newFakeActions()

	mgr := registry.RegistryEntry{
		Name:  units.AgentUnit("audio"),
		Type:  units.UnitType{VM: units.SysVM, Service: units.Mgr},
		Watch: true,
	}
	reg.Register(mgr)
	inactive := running(mgr.Name)
	inactive.ActiveState = units.ActiveFailed
	actions.statuses[mgr.Name] = inactive

	newSupervisor(t, reg, actions).Tick(context.Background())

	got, _ := reg.ByName(mgr.Name)
	assert.Equal(t, units.ActiveFailed, got.Status.ActiveState)
	assert.Equal(t, []string{"audio"}, actions.startedVM)
}
