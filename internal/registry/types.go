// Package registry implements the admin process's in-memory unit directory:
// a mutex-guarded map of RegistryEntry plus a bounded pub/sub broadcast of
// lifecycle Events. No entry is ever persisted; on restart agents must
// re-register (Non-goal: no persistent registry).
package registry

import (
	"fmt"

	"github.com/tiiuae/ghaf-givc/internal/transport"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

// PlacementKind discriminates the Placement sum type.
type PlacementKind int

const (
	PlacementHost PlacementKind = iota
	PlacementEndpoint
	PlacementManaged
)

// Placement describes where a unit lives and how it's reached.
//   - Host: the entry is the host manager itself.
//   - Endpoint{Address,VM}: directly reachable at Address, living on VM.
//   - Managed{VM,By}: lifecycle delegated to the agent named By.
type Placement struct {
	Kind    PlacementKind
	Address transport.EndpointAddress // PlacementEndpoint
	VM      string                    // PlacementEndpoint, PlacementManaged
	By      string                    // PlacementManaged
}

func HostPlacement() Placement { return Placement{Kind: PlacementHost} }

func EndpointPlacement(addr transport.EndpointAddress, vm string) Placement {
	return Placement{Kind: PlacementEndpoint, Address: addr, VM: vm}
}

func ManagedPlacement(vm, by string) Placement {
	return Placement{Kind: PlacementManaged, VM: vm, By: by}
}

func (p Placement) String() string {
	switch p.Kind {
	case PlacementHost:
		return "Host"
	case PlacementEndpoint:
		return fmt.Sprintf("Endpoint{%s,vm=%s}", p.Address, p.VM)
	case PlacementManaged:
		return fmt.Sprintf("Managed{vm=%s,by=%s}", p.VM, p.By)
	default:
		return "Unknown"
	}
}

// RegistryEntry is one unit tracked by the admin process.
type RegistryEntry struct {
	Name      string
	Type      units.UnitType
	Status    units.UnitStatus
	Placement Placement
	Watch     bool
}

// NewWatch computes the registration-time watch flag: true iff
// service=Mgr or vm=AppVM.
func NewWatch(t units.UnitType) bool {
	return t.Service == units.Mgr || t.VM == units.AppVM
}

// AgentName returns the name of the agent responsible for this entry's
// lifecycle: itself if the entry is a Mgr, the delegating agent if Managed,
// else "".
func (e RegistryEntry) AgentName() string {
	if e.Placement.Kind == PlacementManaged {
		return e.Placement.By
	}
	if e.Type.Service == units.Mgr {
		return e.Name
	}
	return ""
}

// VMName returns the VM this entry belongs to, derived from its placement
// or, for Mgr/VM-unit entries, parsed from its own name.
func (e RegistryEntry) VMName() string {
	switch e.Placement.Kind {
	case PlacementManaged, PlacementEndpoint:
		if e.Placement.VM != "" {
			return e.Placement.VM
		}
	}
	if e.Type.Service == units.Mgr {
		if vm, ok := units.ParseAgentUnit(e.Name); ok {
			return vm
		}
	}
	if e.Type.Service == units.VM {
		if vm, ok := units.ParseMicroVMUnit(e.Name); ok {
			return vm
		}
	}
	return ""
}

// QueryResult is the read-only projection of a RegistryEntry exposed over
// query_list, watch and event payloads.
type QueryResult struct {
	Name      string
	Type      units.UnitType
	Status    units.UnitStatus
	Placement Placement
	Watch     bool
}

func (e RegistryEntry) Query() QueryResult {
	return QueryResult{Name: e.Name, Type: e.Type, Status: e.Status, Placement: e.Placement, Watch: e.Watch}
}

// EventKind discriminates the Event sum type.
type EventKind int

const (
	EventUnitRegistered EventKind = iota
	EventUnitStatusChanged
	EventUnitShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventUnitRegistered:
		return "UnitRegistered"
	case EventUnitStatusChanged:
		return "UnitStatusChanged"
	case EventUnitShutdown:
		return "UnitShutdown"
	default:
		return "Unknown"
	}
}

// Event is a registry lifecycle notification delivered to subscribers.
type Event struct {
	Kind   EventKind
	Result QueryResult
}
