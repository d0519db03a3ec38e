// Package admin implements the control plane's request pipeline: the
// multi-step operations a CLI or other client drives (start_app, start_vm,
// start_service, pause/resume/stop, poweroff/reboot/suspend, locale and
// timezone broadcast, stats, query_list and watch), each grounded in the
// registry for state and the agent client for remote unit control.
package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tiiuae/ghaf-givc/internal/agentclient"
	"github.com/tiiuae/ghaf-givc/internal/obs/config"
	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
	"github.com/tiiuae/ghaf-givc/internal/obs/logging"
	"github.com/tiiuae/ghaf-givc/internal/obs/metrics"
	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/resilience"
	"github.com/tiiuae/ghaf-givc/internal/rpcapi"
	"github.com/tiiuae/ghaf-givc/internal/transport"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

// vmStartupBudget is how long start_vm waits after issuing start before
// re-reading status.
const vmStartupBudget = 10 * time.Second

// Service implements the admin request pipeline described above. It is safe
// for concurrent use by multiple RPC handlers.
type Service struct {
	reg *registry.Registry
	log *logging.Logger
	tls *transport.TLSConfig // nil iff no_auth mode

	localeFile   string
	timezoneFile string

	breakers *resilience.BreakerSet
	metrics  *metrics.Metrics

	connMu sync.Mutex
	conns  map[string]*agentclient.Client

	localeMu sync.RWMutex
	locale   string
	timezone string

	probe func(ctx context.Context, entry registry.RegistryEntry)
	sleep func(time.Duration)
}

// New constructs a Service. tls is nil in no_auth mode. sleep defaults to
// time.Sleep; tests override it to skip the real vmStartupBudget wait.
func New(reg *registry.Registry, log *logging.Logger, tls *transport.TLSConfig, localeFile, timezoneFile string) *Service {
	if log == nil {
		log = logging.Default()
	}
	s := &Service{
		reg:          reg,
		log:          log,
		tls:          tls,
		localeFile:   localeFile,
		timezoneFile: timezoneFile,
		conns:        make(map[string]*agentclient.Client),
		sleep:        time.Sleep,
	}
	s.breakers = resilience.NewBreakerSet(resilience.DefaultBreakerConfig(), s.breakerChanged)
	return s
}

// SetMetrics attaches the process metrics so breaker transitions are
// reflected on the gauge; nil leaves them log-only.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) breakerChanged(agent string, tripped bool) {
	entry := s.log.WithFields(map[string]interface{}{"agent": agent})
	if tripped {
		entry.Warn("agent breaker tripped, failing calls fast")
	} else {
		entry.Info("agent breaker closed, traffic restored")
	}
	if s.metrics != nil {
		s.metrics.RecordBreakerState(agent, tripped)
	}
}

// agentFor returns (dialing and caching if necessary) the agentclient for
// the manager entry mgr.
func (s *Service) agentFor(ctx context.Context, mgr registry.RegistryEntry) (*agentclient.Client, error) {
	if mgr.Placement.Kind != registry.PlacementEndpoint {
		return nil, givcerrors.New(givcerrors.FailedPrecondition, "entry "+mgr.Name+" has no reachable endpoint")
	}
	key := mgr.Placement.Address.String()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if c, ok := s.conns[key]; ok {
		return c, nil
	}
	c, err := agentclient.DialWithBreaker(ctx, mgr.Name,
		transport.EndpointConfig{Address: mgr.Placement.Address, TLS: s.tls},
		s.breakers.For(mgr.Name))
	if err != nil {
		return nil, err
	}
	s.conns[key] = c
	return c, nil
}

// hostManager resolves the single (Host, Mgr) registry entry.
func (s *Service) hostManager() (registry.RegistryEntry, error) {
	return s.reg.ExactlyOneByType(units.UnitType{VM: units.Host, Service: units.Mgr})
}

// SetProber installs the supervisor hook register_service uses to schedule
// an immediate probe of an entry that registered with an invalid status.
func (s *Service) SetProber(probe func(ctx context.Context, entry registry.RegistryEntry)) {
	s.probe = probe
}

// RegisterService handles register_service: validates the request, builds
// a RegistryEntry and inserts it. An invalid reported status is accepted but
// triggers an immediate supervisor probe; a freshly-registered Mgr
// opportunistically receives the current locale/timezone.
func (s *Service) RegisterService(ctx context.Context, req rpcapi.RegisterServiceRequest) error {
	if req.Name == "" {
		return givcerrors.New(givcerrors.InvalidArgument, "register_service: name required")
	}
	if _, err := units.Encode(req.Type); err != nil {
		return givcerrors.Wrap(givcerrors.InvalidArgument, "register_service: bad unit type", err)
	}
	if req.Placement.Kind == registry.PlacementManaged {
		mgr, ok := s.reg.ByName(req.Placement.By)
		if !ok {
			return givcerrors.New(givcerrors.InvalidArgument,
				"register_service: manager "+req.Placement.By+" not registered")
		}
		// one level of delegation only
		if mgr.Placement.Kind != registry.PlacementEndpoint {
			return givcerrors.New(givcerrors.InvalidArgument,
				"register_service: manager "+req.Placement.By+" is not directly reachable")
		}
	}

	entry := registry.RegistryEntry{
		Name:      req.Name,
		Type:      req.Type,
		Status:    req.Status,
		Placement: req.Placement,
		Watch:     registry.NewWatch(req.Type),
	}
	s.reg.Register(entry)
	s.log.LogAudit(ctx, "register_service", req.Name, "ok")

	if !req.Status.IsValid() && s.probe != nil {
		go s.probe(context.Background(), entry)
	}
	if req.Type.Service == units.Mgr {
		go s.pushLocaleAndTimezone(context.Background(), entry)
	}
	return nil
}

func (s *Service) pushLocaleAndTimezone(ctx context.Context, mgr registry.RegistryEntry) {
	s.localeMu.RLock()
	locale, tz := s.locale, s.timezone
	s.localeMu.RUnlock()
	if locale == "" && tz == "" {
		return
	}
	client, err := s.agentFor(ctx, mgr)
	if err != nil {
		return
	}
	if locale != "" {
		var resp rpcapi.Empty
		_ = client.Invoke(ctx, rpcapi.MethodSetLocale, &rpcapi.LocaleRequest{Locale: locale}, &resp)
	}
	if tz != "" {
		var resp rpcapi.Empty
		_ = client.Invoke(ctx, rpcapi.MethodSetTimezone, &rpcapi.TimezoneRequest{Timezone: tz}, &resp)
	}
}

// StartVM implements start_vm: resolve the Host manager, check the microvm
// unit's status, start it if inactive, wait vmStartupBudget, re-check.
func (s *Service) StartVM(ctx context.Context, vmName string) error {
	host, err := s.hostManager()
	if err != nil {
		return err
	}
	client, err := s.agentFor(ctx, host)
	if err != nil {
		return err
	}

	unitName := units.MicroVMUnit(vmName)
	status, err := client.Get(ctx, unitName)
	if err != nil {
		return givcerrors.Wrap(givcerrors.Unavailable, "start_vm: get_status "+unitName, err)
	}
	if status.LoadState != units.LoadLoaded {
		return givcerrors.New(givcerrors.NotFound, "start_vm: "+unitName+" not loaded")
	}
	if status.ActiveState == units.ActiveActive {
		return nil
	}

	if err := client.Start(ctx, unitName); err != nil {
		return givcerrors.Wrap(givcerrors.Unavailable, "start_vm: start "+unitName, err)
	}
	s.sleep(vmStartupBudget)

	status, err = client.Get(ctx, unitName)
	if err != nil {
		return givcerrors.Wrap(givcerrors.Unavailable, "start_vm: re-read "+unitName, err)
	}
	if status.ActiveState != units.ActiveActive {
		return givcerrors.New(givcerrors.Unavailable, "start_vm: "+unitName+" failed to become active")
	}
	return nil
}

// StartApp implements start_app: resolve (starting if absent) the target
// VM's agent, allocate a unique app unit name, launch it, and on success
// register the new entry as Managed.
func (s *Service) StartApp(ctx context.Context, req rpcapi.ApplicationRequest) (string, error) {
	vmName := req.VMName
	if vmName == "" {
		vmName = req.AppName
	}
	agentName := units.AgentUnit(vmName)

	mgr, ok := s.reg.ByName(agentName)
	if !ok {
		if err := s.StartVM(ctx, vmName); err != nil {
			return "", err
		}
		mgr, ok = s.reg.ByName(agentName)
		if !ok {
			return "", givcerrors.New(givcerrors.Unavailable, "start_app: agent "+agentName+" did not register after start_vm")
		}
	}

	client, err := s.agentFor(ctx, mgr)
	if err != nil {
		return "", err
	}

	appUnit := s.reg.CreateUniqueEntryName(req.AppName)
	status, err := client.StartApplication(ctx, appUnit, req.Args)
	if err != nil {
		return "", givcerrors.Wrap(givcerrors.Unavailable, "start_app: start_application "+appUnit, err)
	}
	if status.ActiveState != units.ActiveActive {
		return "", givcerrors.New(givcerrors.Unavailable, "start_app: "+appUnit+" did not become active")
	}
	// The agent reports the unit name it actually created; trust it over the
	// allocation if it differs.
	if status.Name != "" {
		appUnit = status.Name
	}

	entry := registry.RegistryEntry{
		Name:      appUnit,
		Type:      units.UnitType{VM: units.AppVM, Service: units.App},
		Status:    status,
		Placement: registry.ManagedPlacement(vmName, mgr.Name),
		Watch:     true,
	}
	s.reg.Register(entry)
	return appUnit, nil
}

// StartService implements start_service: no-op if already loaded+running,
// else start; fail if not loaded.
func (s *Service) StartService(ctx context.Context, serviceName, vmName string) error {
	agentName := units.AgentUnit(vmName)
	mgr, ok := s.reg.ByName(agentName)
	if !ok {
		return givcerrors.New(givcerrors.NotFound, "start_service: agent "+agentName+" not registered")
	}
	client, err := s.agentFor(ctx, mgr)
	if err != nil {
		return err
	}

	status, err := client.Get(ctx, serviceName)
	if err != nil {
		return givcerrors.Wrap(givcerrors.Unavailable, "start_service: get_status "+serviceName, err)
	}
	if status.LoadState != units.LoadLoaded {
		return givcerrors.New(givcerrors.NotFound, "start_service: "+serviceName+" not loaded")
	}
	if status.ActiveState == units.ActiveActive && status.SubState == units.SubRunning {
		return nil
	}
	if err := client.Start(ctx, serviceName); err != nil {
		return givcerrors.Wrap(givcerrors.Unavailable, "start_service: start "+serviceName, err)
	}
	return nil
}

// expandWildcard resolves a possibly-wildcarded unit name ("chromium@*.service")
// into the concrete matching registry entries.
func (s *Service) expandWildcard(name string) []registry.RegistryEntry {
	base, isWildcard := units.WildcardBase(name)
	if !isWildcard {
		if e, ok := s.reg.ByName(name); ok {
			return []registry.RegistryEntry{e}
		}
		return nil
	}
	return s.reg.ByPrefix(base + "@")
}

type agentAction func(*agentclient.Client, context.Context, string) error
type stateCheck func(units.UnitStatus) bool

// applyToMatching runs action against every entry matching name (expanding
// a trailing "@*.service" wildcard), verifying check against the
// post-action status; the first failure aborts and is returned.
func (s *Service) applyToMatching(ctx context.Context, name string, action agentAction, check stateCheck, verb string) error {
	matches := s.expandWildcard(name)
	if len(matches) == 0 {
		return givcerrors.New(givcerrors.NotFound, verb+": no entry matches "+name)
	}
	for _, entry := range matches {
		mgr, ok := s.reg.ByName(entry.AgentName())
		if !ok {
			return givcerrors.New(givcerrors.FailedPrecondition, verb+": no agent for "+entry.Name)
		}
		client, err := s.agentFor(ctx, mgr)
		if err != nil {
			return err
		}
		if err := action(client, ctx, entry.Name); err != nil {
			return givcerrors.Wrap(givcerrors.Unavailable, verb+": "+entry.Name, err)
		}
		status, err := client.Get(ctx, entry.Name)
		if err != nil {
			return givcerrors.Wrap(givcerrors.Unavailable, verb+": re-read "+entry.Name, err)
		}
		if !check(status) {
			return givcerrors.New(givcerrors.Unavailable, verb+": "+entry.Name+" did not reach expected state")
		}
	}
	return nil
}

// Pause implements pause(name): freeze every matching entry, verifying each
// becomes paused.
func (s *Service) Pause(ctx context.Context, name string) error {
	return s.applyToMatching(ctx, name,
		func(c *agentclient.Client, ctx context.Context, n string) error { return c.Freeze(ctx, n) },
		func(st units.UnitStatus) bool { return st.IsPaused() },
		"pause")
}

// Resume implements resume(name): unfreeze every matching entry, verifying
// each becomes running.
func (s *Service) Resume(ctx context.Context, name string) error {
	return s.applyToMatching(ctx, name,
		func(c *agentclient.Client, ctx context.Context, n string) error { return c.Unfreeze(ctx, n) },
		func(st units.UnitStatus) bool { return st.IsRunning() },
		"resume")
}

// StopApplication implements stop_application(name): stop every matching
// entry, verifying each exits.
func (s *Service) StopApplication(ctx context.Context, name string) error {
	return s.applyToMatching(ctx, name,
		func(c *agentclient.Client, ctx context.Context, n string) error { return c.Stop(ctx, n) },
		func(st units.UnitStatus) bool { return st.IsExitted() },
		"stop_application")
}

// systemTarget fires a host-manager system target unit (poweroff/reboot/
// suspend) and does not wait for a post-state, since the host is expected to
// go away.
func (s *Service) systemTarget(ctx context.Context, target string) error {
	host, err := s.hostManager()
	if err != nil {
		return err
	}
	client, err := s.agentFor(ctx, host)
	if err != nil {
		return err
	}
	if err := client.Start(ctx, target); err != nil {
		return givcerrors.Wrap(givcerrors.Unavailable, target, err)
	}
	return nil
}

func (s *Service) Poweroff(ctx context.Context) error { return s.systemTarget(ctx, "poweroff.target") }
func (s *Service) Reboot(ctx context.Context) error   { return s.systemTarget(ctx, "reboot.target") }
func (s *Service) Suspend(ctx context.Context) error  { return s.systemTarget(ctx, "suspend.target") }

// Wakeup is reserved.
func (s *Service) Wakeup(ctx context.Context) error {
	return givcerrors.New(givcerrors.Unimplemented, "wakeup is not implemented")
}

// SetLocale implements set_locale: validate, persist, broadcast to every
// Mgr concurrently (best-effort), update in-memory value last.
func (s *Service) SetLocale(ctx context.Context, locale string) error {
	if !config.ValidLocale(locale) {
		return givcerrors.New(givcerrors.InvalidArgument, "set_locale: invalid locale "+locale)
	}
	if err := config.WriteLocaleFile(s.localeFile, locale); err != nil {
		return givcerrors.Wrap(givcerrors.Internal, "set_locale: persist", err)
	}

	mgrs := s.reg.ByType(units.UnitType{VM: units.Host, Service: units.Mgr})
	mgrs = append(mgrs, s.reg.ByType(units.UnitType{VM: units.AdmVM, Service: units.Mgr})...)
	mgrs = append(mgrs, s.reg.ByType(units.UnitType{VM: units.SysVM, Service: units.Mgr})...)
	mgrs = append(mgrs, s.reg.ByType(units.UnitType{VM: units.AppVM, Service: units.Mgr})...)

	var wg sync.WaitGroup
	for _, mgr := range mgrs {
		wg.Add(1)
		go func(mgr registry.RegistryEntry) {
			defer wg.Done()
			client, err := s.agentFor(ctx, mgr)
			if err != nil {
				return
			}
			var resp rpcapi.Empty
			if err := client.Invoke(ctx, rpcapi.MethodSetLocale, &rpcapi.LocaleRequest{Locale: locale}, &resp); err != nil {
				s.log.WithError(err).Warn("set_locale broadcast to " + mgr.Name + " failed")
			}
		}(mgr)
	}
	wg.Wait()

	s.localeMu.Lock()
	s.locale = locale
	s.localeMu.Unlock()
	return nil
}

// SetTimezone implements set_timezone, mirroring SetLocale.
func (s *Service) SetTimezone(ctx context.Context, timezone string) error {
	if !config.ValidTimezone(timezone) {
		return givcerrors.New(givcerrors.InvalidArgument, "set_timezone: invalid timezone "+timezone)
	}
	if err := config.WriteTimezoneFile(s.timezoneFile, timezone); err != nil {
		return givcerrors.Wrap(givcerrors.Internal, "set_timezone: persist", err)
	}

	mgrs := s.reg.ByType(units.UnitType{VM: units.Host, Service: units.Mgr})
	mgrs = append(mgrs, s.reg.ByType(units.UnitType{VM: units.AdmVM, Service: units.Mgr})...)
	mgrs = append(mgrs, s.reg.ByType(units.UnitType{VM: units.SysVM, Service: units.Mgr})...)
	mgrs = append(mgrs, s.reg.ByType(units.UnitType{VM: units.AppVM, Service: units.Mgr})...)

	var wg sync.WaitGroup
	for _, mgr := range mgrs {
		wg.Add(1)
		go func(mgr registry.RegistryEntry) {
			defer wg.Done()
			client, err := s.agentFor(ctx, mgr)
			if err != nil {
				return
			}
			var resp rpcapi.Empty
			if err := client.Invoke(ctx, rpcapi.MethodSetTimezone, &rpcapi.TimezoneRequest{Timezone: timezone}, &resp); err != nil {
				s.log.WithError(err).Warn("set_timezone broadcast to " + mgr.Name + " failed")
			}
		}(mgr)
	}
	wg.Wait()

	s.localeMu.Lock()
	s.timezone = timezone
	s.localeMu.Unlock()
	return nil
}

// GetStats implements get_stats(vm_name): resolve the VM's Mgr endpoint and
// relay its one-shot stats response.
func (s *Service) GetStats(ctx context.Context, vmName string) (rpcapi.StatsResponse, error) {
	if vmName == HostStatsName {
		return LocalStats(ctx)
	}
	agentName := units.AgentUnit(vmName)
	mgr, ok := s.reg.ByName(agentName)
	if !ok {
		return rpcapi.StatsResponse{}, givcerrors.New(givcerrors.NotFound, "get_stats: agent "+agentName+" not registered")
	}
	client, err := s.agentFor(ctx, mgr)
	if err != nil {
		return rpcapi.StatsResponse{}, err
	}
	var resp rpcapi.StatsResponse
	if err := client.Invoke(ctx, rpcapi.MethodGetStats, &rpcapi.Empty{}, &resp); err != nil {
		return rpcapi.StatsResponse{}, givcerrors.Wrap(givcerrors.Unavailable, "get_stats", err)
	}
	return resp, nil
}

// QueryList implements query_list: a snapshot of the registry, optionally
// filtered by name prefix and/or unit type.
func (s *Service) QueryList(req rpcapi.QueryListRequest) rpcapi.QueryListResponse {
	var out []registry.QueryResult
	for _, e := range s.reg.All() {
		if req.NamePrefix != "" && !strings.HasPrefix(e.Name, req.NamePrefix) {
			continue
		}
		if req.HasType && e.Type != req.Type {
			continue
		}
		out = append(out, e.Query())
	}
	return rpcapi.QueryListResponse{Units: out}
}

// Watch implements watch: an Initial snapshot followed by the registry's
// event stream. The caller is responsible for draining events until ctx is
// canceled.
func (s *Service) Watch(ctx context.Context) ([]registry.QueryResult, <-chan registry.Event) {
	snapshot, events := s.reg.Subscribe()
	out := make([]registry.QueryResult, 0, len(snapshot))
	for _, e := range snapshot {
		out = append(out, e.Query())
	}
	return out, events
}
