package group

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/tiiuae/ghaf-givc/internal/ota"
	"github.com/tiiuae/ghaf-givc/internal/ota/lvm"
	"github.com/tiiuae/ghaf-givc/internal/ota/manifest"
	"github.com/tiiuae/ghaf-givc/internal/ota/uki"
)

// DefaultBootDir is where the ESP is mounted on a production host.
const DefaultBootDir = "/boot"

// Runtime is the read-only OS state a plan is computed against: the LVM
// volume list, the classified boot entries and the running kernel's
// parameters. It is re-read for every plan; nothing here is cached across
// invocations.
type Runtime struct {
	Volumes []lvm.Volume
	Ukis    []uki.UkiEntry
	Kernel  KernelParams
	Boot    string
}

// NewRuntime assembles a Runtime from pre-captured tool output. The tests
// use it; the ota-update command builds its Runtime with Load.
func NewRuntime(lvsOutput, cmdline string, entries []uki.UkiEntry, boot string) *Runtime {
	if boot == "" {
		boot = DefaultBootDir
	}
	return &Runtime{
		Volumes: lvm.ParseLVSOutput(lvsOutput),
		Ukis:    entries,
		Kernel:  ParseCmdline(cmdline),
		Boot:    boot,
	}
}

// Load captures the live system state: `lvs` for volumes, `bootctl` for boot
// entries, /proc/cmdline for kernel parameters.
func Load(ctx context.Context, boot string) (*Runtime, error) {
	cmd := exec.CommandContext(ctx, "lvs", "--all", "--nameprefixes", "--noheadings")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("lvs: %w: %s", err, stderr.String())
	}

	bootEntries, err := uki.RunBootctl(ctx)
	if err != nil {
		return nil, err
	}
	var entries []uki.UkiEntry
	for _, e := range bootEntries {
		if e.Kind == uki.KindManaged {
			entries = append(entries, e.Managed)
		}
	}

	kernel, err := ReadKernelParams()
	if err != nil {
		return nil, fmt.Errorf("read /proc/cmdline: %w", err)
	}

	if boot == "" {
		boot = DefaultBootDir
	}
	return &Runtime{
		Volumes: lvm.ParseLVSOutput(stdout.String()),
		Ukis:    entries,
		Kernel:  kernel,
		Boot:    boot,
	}, nil
}

// SlotGroups builds the full grouped view: volumes paired by (version, hash)
// with UKIs attached.
func (rt *Runtime) SlotGroups() ([]SlotGroup, error) {
	groups := GroupVolumes(lvm.ParseSlots(rt.Volumes))
	return GroupUKIs(groups, rt.Ukis)
}

// SelectUpdateSlot decides where the manifest's image goes: nil when the
// exact (version, hash) is already completely installed, otherwise the first
// complete, non-active, empty group. No such group is an error.
func (rt *Runtime) SelectUpdateSlot(m *manifest.Manifest) (*SlotGroup, error) {
	groups, err := rt.SlotGroups()
	if err != nil {
		return nil, err
	}
	targetHash := m.HashFragment()

	for _, g := range groups {
		if g.Version == m.Version && g.Hash == targetHash && g.IsComplete() {
			return nil, nil // already installed
		}
	}

	for i := range groups {
		g := groups[i]
		if g.IsActive(rt.Kernel) || !g.IsComplete() || !g.IsEmpty() {
			continue
		}
		return &groups[i], nil
	}
	return nil, fmt.Errorf("no empty slot available for update")
}

// ActiveSlot returns the group the running kernel booted from.
func (rt *Runtime) ActiveSlot() (SlotGroup, error) {
	groups, err := rt.SlotGroups()
	if err != nil {
		return SlotGroup{}, err
	}
	for _, g := range groups {
		if g.IsActive(rt.Kernel) {
			return g, nil
		}
	}
	return SlotGroup{}, fmt.Errorf("no active slot found")
}

// FindSlot resolves a group by Version; a version without a hash matches any
// hash, so `remove 25.12.1` works without spelling the fragment out.
func (rt *Runtime) FindSlot(v ota.Version) (SlotGroup, error) {
	groups, err := rt.SlotGroups()
	if err != nil {
		return SlotGroup{}, err
	}
	for _, g := range groups {
		if g.Version != v.Revision {
			continue
		}
		if v.Hash != "" && g.Hash != v.Hash {
			continue
		}
		return g, nil
	}
	return SlotGroup{}, fmt.Errorf("no slot matching version %s", v)
}

// HasEmptyWithID reports whether some empty group other than exclude already
// uses the given empty identifier.
func (rt *Runtime) HasEmptyWithID(id string, exclude SlotGroup) bool {
	groups, err := rt.SlotGroups()
	if err != nil {
		return false
	}
	for _, g := range groups {
		if !g.IsEmpty() || g.key() == exclude.key() {
			continue
		}
		if g.EmptyID() == id {
			return true
		}
	}
	return false
}

// AllocateEmptyID returns the smallest non-negative integer (as a decimal
// string) no empty group currently uses as its identifier.
func (rt *Runtime) AllocateEmptyID() (string, error) {
	groups, err := rt.SlotGroups()
	if err != nil {
		return "", err
	}
	used := make(map[string]bool)
	for _, g := range groups {
		if g.IsEmpty() && g.EmptyID() != "" {
			used[g.EmptyID()] = true
		}
	}
	for k := 0; ; k++ {
		id := strconv.Itoa(k)
		if !used[id] {
			return id, nil
		}
	}
}

// SourceUsage reports filesystem usage for the update source directory, the
// preflight the install CLI logs before streaming multi-GB images.
func SourceUsage(source string) (*disk.UsageStat, error) {
	return disk.Usage(source)
}
