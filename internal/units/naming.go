package units

import (
	"fmt"
	"strconv"
	"strings"
)

// MicroVMUnit returns the host-side systemd unit name for a VM, e.g.
// "microvm@chromium.service".
func MicroVMUnit(vm string) string {
	return fmt.Sprintf("microvm@%s.service", vm)
}

// ParseMicroVMUnit inverts MicroVMUnit.
func ParseMicroVMUnit(name string) (vm string, ok bool) {
	const prefix, suffix = "microvm@", ".service"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	vm = name[len(prefix) : len(name)-len(suffix)]
	if vm == "" {
		return "", false
	}
	return vm, true
}

// AgentUnit returns the manager-agent unit name for a VM, e.g.
// "givc-chromium-vm.service".
func AgentUnit(vm string) string {
	return fmt.Sprintf("givc-%s-vm.service", vm)
}

// ParseAgentUnit inverts AgentUnit, returning the VM name it names.
func ParseAgentUnit(name string) (vm string, ok bool) {
	const prefix, suffix = "givc-", "-vm.service"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	vm = name[len(prefix) : len(name)-len(suffix)]
	if vm == "" {
		return "", false
	}
	return vm, true
}

// IndexedUnit formats a "<base>@<k>.service" name, used both for
// "app@<k>.service" and the generic create_unique_entry_name contract.
func IndexedUnit(base string, k int) string {
	return fmt.Sprintf("%s@%d.service", base, k)
}

// ParseIndexedUnit inverts IndexedUnit.
func ParseIndexedUnit(name string) (base string, k int, ok bool) {
	const suffix = ".service"
	if !strings.HasSuffix(name, suffix) {
		return "", 0, false
	}
	trimmed := name[:len(name)-len(suffix)]
	at := strings.LastIndexByte(trimmed, '@')
	if at < 0 {
		return "", 0, false
	}
	base = trimmed[:at]
	idxStr := trimmed[at+1:]
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 || base == "" {
		return "", 0, false
	}
	return base, idx, true
}

// WildcardBase returns the base name used to match "<base>@*.service" for
// pause/resume/stop wildcard expansion, and reports whether name used the
// wildcard form.
func WildcardBase(name string) (base string, isWildcard bool) {
	const suffix = "@*.service"
	if strings.HasSuffix(name, suffix) {
		return name[:len(name)-len(suffix)], true
	}
	return name, false
}
