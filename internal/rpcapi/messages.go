// Package rpcapi defines the bidirectional RPC message shapes exchanged
// between the admin process, agents and CLI clients. The wire protocol
// itself is abstract (any bidirectional RPC transport is acceptable); this
// package provides hand-written Go structs plus thin gRPC codec glue rather
// than machine-generated protobuf bindings, mirroring how the control plane
// treats gRPC as a transport detail, not a schema source of truth.
package rpcapi

import (
	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

// RegisterServiceRequest is sent by an agent manager announcing itself (and
// optionally the units it already supervises) to the admin process.
type RegisterServiceRequest struct {
	Name      string
	Type      units.UnitType
	Placement registry.Placement
	Status    units.UnitStatus
}

// UnitRequest names a single target unit for start/stop/pause/resume-style
// operations.
type UnitRequest struct {
	Name string
}

// ApplicationRequest starts a new application instance, optionally pinned
// to an existing VM.
type ApplicationRequest struct {
	AppName string
	VMName  string // empty: admin chooses/creates a VM
	Args    []string
}

// StartServiceRequest starts a systemd service inside a named VM.
type StartServiceRequest struct {
	Service string
	VM      string
}

// StatsRequest asks for resource statistics of one VM; the pseudo name
// "host" targets the admin host itself.
type StatsRequest struct {
	VMName string
}

// QueryListRequest filters query_list results; an empty NamePrefix matches
// every name and HasType false matches every type.
type QueryListRequest struct {
	NamePrefix string
	Type       units.UnitType
	HasType    bool
}

// QueryListResponse carries a consistent-at-call-time slice of registry
// entries.
type QueryListResponse struct {
	Units []registry.QueryResult
}

// WatchEvent mirrors registry.Event over the wire for the watch stream.
type WatchEvent struct {
	Kind   string
	Result registry.QueryResult
}

// WatchItem is one frame of the watch stream: exactly one of Initial (the
// first frame, carrying the subscription snapshot) or Event is set.
type WatchItem struct {
	Initial []registry.QueryResult
	Event   *WatchEvent
}

// StartAppResponse returns the unit name the admin allocated for a freshly
// launched application.
type StartAppResponse struct {
	Name string
}

// LocaleRequest sets the system-wide locale; Locale must match the locale
// grammar enforced by internal/obs/config.
type LocaleRequest struct {
	Locale string
}

// TimezoneRequest sets the system-wide timezone; Timezone must match the
// IANA-style grammar enforced by internal/obs/config.
type TimezoneRequest struct {
	Timezone string
}

// StatsResponse reports host resource usage, sourced from gopsutil.
type StatsResponse struct {
	CPUPercent    float64
	MemoryUsed    uint64
	MemoryTotal   uint64
	LoadAverage1  float64
	UptimeSeconds uint64
}

// Empty is the zero-value response for operations with no return payload.
type Empty struct{}
