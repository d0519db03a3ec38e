// Package supervisor polls every watched registry entry on a fixed tick,
// persists the probed status, and drives the recovery policy: exitted apps
// are deregistered, dead VM managers get their VM restarted, everything else
// is logged and left alone.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tiiuae/ghaf-givc/internal/obs/metrics"
	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

// defaultSchedule is the supervision cadence. Expressed as a cron descriptor
// so the tick policy stays declarative and swappable from configuration.
const defaultSchedule = "@every 5s"

// Actions is the slice of the admin service the supervisor drives: probing a
// unit's status over the computed endpoint and restarting a VM.
type Actions interface {
	GetUnitStatus(ctx context.Context, entry registry.RegistryEntry) (units.UnitStatus, error)
	StartVM(ctx context.Context, vmName string) error
}

// Supervisor is the periodic watch loop. One instance runs per admin
// process.
type Supervisor struct {
	reg      *registry.Registry
	actions  Actions
	schedule cron.Schedule
	log      zerolog.Logger
	metrics  *metrics.Metrics

	tickMu   sync.Mutex
	lastTick time.Time
}

// New builds a Supervisor ticking on the default 5 s schedule. m may be nil
// when metrics are disabled.
func New(reg *registry.Registry, actions Actions, log zerolog.Logger, m *metrics.Metrics) (*Supervisor, error) {
	return NewWithSchedule(reg, actions, log, m, defaultSchedule)
}

// NewWithSchedule parses spec as a cron schedule ("@every 5s", "*/1 * * * *").
func NewWithSchedule(reg *registry.Registry, actions Actions, log zerolog.Logger, m *metrics.Metrics, spec string) (*Supervisor, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		reg:      reg,
		actions:  actions,
		schedule: schedule,
		log:      log,
		metrics:  m,
	}, nil
}

// Run ticks until ctx is cancelled. The next tick is always computed from
// the current time after the previous tick finishes, so a tick that overruns
// its slot delays the following one rather than bursting to catch up.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.Tick(ctx)
	}
}

// Tick runs one supervision pass over every watched entry. Per-entry errors
// never propagate: a dead agent must not stop the rest of the fleet being
// checked.
func (s *Supervisor) Tick(ctx context.Context) {
	start := time.Now()
	s.tickMu.Lock()
	s.lastTick = start
	s.tickMu.Unlock()

	entries := s.reg.All()

	watched := 0
	for _, entry := range entries {
		if !entry.Watch {
			continue
		}
		watched++
		s.superviseEntry(ctx, entry)
	}

	if s.metrics != nil {
		s.metrics.ObserveSupervisorTick(time.Since(start))
		s.metrics.SetRegistryEntries(s.reg.Count())
	}
	s.log.Debug().
		Int("watched", watched).
		Dur("elapsed", time.Since(start)).
		Msg("supervision tick")
}

// LastTick returns when the last supervision pass started (zero before the
// first pass); the debug listener's health report uses it to detect a
// wedged loop.
func (s *Supervisor) LastTick() time.Time {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.lastTick
}

// Probe runs one immediate supervision pass over a single entry, the hook
// register_service uses for units that announce an invalid status.
func (s *Supervisor) Probe(ctx context.Context, entry registry.RegistryEntry) {
	s.superviseEntry(ctx, entry)
}

func (s *Supervisor) superviseEntry(ctx context.Context, entry registry.RegistryEntry) {
	status, err := s.actions.GetUnitStatus(ctx, entry)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordProbeFailure(entry.Name)
		}
		s.log.Warn().Err(err).Str("unit", entry.Name).Msg("status probe failed")
		s.handleError(ctx, entry)
		return
	}

	invalid := !status.IsValid()
	inactive := status.ActiveState != units.ActiveActive

	// Persist the observed status before any recovery touches the entry.
	if err := s.reg.UpdateState(entry.Name, status); err != nil {
		s.log.Warn().Err(err).Str("unit", entry.Name).Msg("status update failed")
		return
	}
	entry.Status = status

	if invalid || inactive {
		s.handleError(ctx, entry)
	}
}

// handleError is the recovery dispatch. It deliberately swallows its own
// failures: recovery is retried on the next tick anyway.
func (s *Supervisor) handleError(ctx context.Context, entry registry.RegistryEntry) {
	switch {
	case entry.Type.VM == units.AppVM && entry.Type.Service == units.App:
		if entry.Status.IsExitted() {
			if err := s.reg.Deregister(entry.Name); err != nil {
				s.log.Warn().Err(err).Str("unit", entry.Name).Msg("deregister failed")
				return
			}
			s.log.Info().Str("unit", entry.Name).Msg("exitted application deregistered")
		}

	case (entry.Type.VM == units.AppVM || entry.Type.VM == units.SysVM) && entry.Type.Service == units.Mgr:
		vmName, ok := units.ParseAgentUnit(entry.Name)
		if !ok {
			// Soft-fail: a manager registered under a non-standard name has
			// no VM unit the host can restart for it.
			s.log.Warn().Str("unit", entry.Name).Msg("cannot derive vm name, skipping recovery")
			return
		}
		s.log.Info().Str("unit", entry.Name).Str("vm", vmName).Msg("attempting vm recovery")
		if err := s.actions.StartVM(ctx, vmName); err != nil {
			s.log.Warn().Err(err).Str("vm", vmName).Msg("vm recovery failed")
		}

	default:
		s.log.Debug().Str("unit", entry.Name).Msg("no recovery policy for unit, leaving as-is")
	}
}
