// Package units defines the control plane's unit taxonomy: VM and service
// kinds, their bijective wire encoding, and the name formatters/parsers used
// to go between registry entries and the unit names systemd-style agents
// expose (microvm@<vm>.service, givc-<vm>-vm.service, <app>@<k>.service).
package units

import "fmt"

// VMType is the kind of virtual machine (or the host) an entry lives on.
type VMType int

const (
	Host VMType = iota
	AdmVM
	SysVM
	AppVM
)

func (v VMType) String() string {
	switch v {
	case Host:
		return "Host"
	case AdmVM:
		return "AdmVM"
	case SysVM:
		return "SysVM"
	case AppVM:
		return "AppVM"
	default:
		return "Unknown"
	}
}

// ServiceType is the role a registered unit plays within its VM.
type ServiceType int

const (
	Mgr ServiceType = iota
	Svc
	App
	VM
)

func (s ServiceType) String() string {
	switch s {
	case Mgr:
		return "Mgr"
	case Svc:
		return "Svc"
	case App:
		return "App"
	case VM:
		return "VM"
	default:
		return "Unknown"
	}
}

// UnitType is the (vm, service) pair identifying a registry entry's role.
type UnitType struct {
	VM      VMType
	Service ServiceType
}

func (t UnitType) String() string {
	return fmt.Sprintf("%s/%s", t.VM, t.Service)
}

// IllegalSentinel is the wire value produced (alongside an error) when
// encoding the illegal combination (Host, VM). A prior revision of this
// encoder returned only the sentinel with no error; callers must check the
// error rather than compare against this constant, since the error is now
// authoritative (see DESIGN.md "(Host,VM) encoding").
const IllegalSentinel uint32 = 100500

var ErrIllegalUnitType = fmt.Errorf("unit type (Host, VM) is illegal")

// wire table: vm contributes a multiple of 10, service the remainder.
// Chosen to keep the table dense and trivially invertible.
func Encode(t UnitType) (uint32, error) {
	if t.VM == Host && t.Service == VM {
		return IllegalSentinel, ErrIllegalUnitType
	}
	return uint32(t.VM)*10 + uint32(t.Service), nil
}

// Decode inverts Encode. It rejects codes that don't correspond to a known
// VMType/ServiceType pair, and rejects the illegal (Host, VM) combination
// even if some future caller constructs its code by hand.
func Decode(code uint32) (UnitType, error) {
	vm := VMType(code / 10)
	svc := ServiceType(code % 10)
	if vm < Host || vm > AppVM || svc < Mgr || svc > VM {
		return UnitType{}, fmt.Errorf("unit type code %d does not decode to a known (vm,service) pair", code)
	}
	t := UnitType{VM: vm, Service: svc}
	if t.VM == Host && t.Service == VM {
		return UnitType{}, ErrIllegalUnitType
	}
	return t, nil
}
