package admin

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/rpcapi"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

// HostStatsName is the pseudo VM name resolving to the admin's own host, so
// `get-stats host` needs no agent round-trip.
const HostStatsName = "host"

// LocalStats samples the admin host's own resource usage.
func LocalStats(ctx context.Context) (rpcapi.StatsResponse, error) {
	var resp rpcapi.StatsResponse

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return resp, givcerrors.Wrap(givcerrors.Internal, "read memory stats", err)
	}
	resp.MemoryUsed = vm.Used
	resp.MemoryTotal = vm.Total

	if avg, err := load.AvgWithContext(ctx); err == nil {
		resp.LoadAverage1 = avg.Load1
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		resp.UptimeSeconds = uptime
	}
	return resp, nil
}

// GetUnitStatus probes the current status of entry over its computed
// endpoint: a Managed entry is asked about via its manager, everything else
// via its own placement.
func (s *Service) GetUnitStatus(ctx context.Context, entry registry.RegistryEntry) (units.UnitStatus, error) {
	target := entry
	if entry.Placement.Kind == registry.PlacementManaged {
		mgr, ok := s.reg.ByName(entry.Placement.By)
		if !ok {
			return units.UnitStatus{}, givcerrors.New(givcerrors.NotFound,
				"manager "+entry.Placement.By+" for "+entry.Name+" not registered")
		}
		target = mgr
	}
	client, err := s.agentFor(ctx, target)
	if err != nil {
		return units.UnitStatus{}, err
	}
	return client.Get(ctx, entry.Name)
}
