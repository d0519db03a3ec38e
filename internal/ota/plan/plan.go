// Package plan turns a Runtime snapshot and a Manifest into the ordered
// command pipelines realizing an install, a removal or the legacy-bootloader
// migration. Plan building is pure: nothing here touches the system, the
// executor does.
package plan

import (
	"fmt"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
	"github.com/tiiuae/ghaf-givc/internal/ota"
	"github.com/tiiuae/ghaf-givc/internal/ota/group"
	"github.com/tiiuae/ghaf-givc/internal/ota/lvm"
	"github.com/tiiuae/ghaf-givc/internal/ota/manifest"
	"github.com/tiiuae/ghaf-givc/internal/ota/uki"
)

// Plan is an ordered list of pipelines; executing them in order realizes the
// requested slot transition.
type Plan struct {
	Steps []ota.Pipeline
}

// IsEmpty reports whether there is nothing to do.
func (p Plan) IsEmpty() bool { return len(p.Steps) == 0 }

// Script renders every step as its shell command line, in order.
func (p Plan) Script() []string {
	lines := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		lines[i] = step.FormatShell()
	}
	return lines
}

// Install builds the pipeline list installing m's image from source. An
// already-installed (version, hash) yields an empty plan; no usable empty
// slot is a FailedPrecondition.
func Install(rt *group.Runtime, m *manifest.Manifest, source string) (Plan, error) {
	selected, err := rt.SelectUpdateSlot(m)
	if err != nil {
		return Plan{}, givcerrors.Wrap(givcerrors.FailedPrecondition, "select update slot", err)
	}
	if selected == nil {
		return Plan{}, nil // already installed
	}
	return installIntoSlot(rt, m, *selected, source)
}

func installIntoSlot(rt *group.Runtime, m *manifest.Manifest, slot group.SlotGroup, source string) (Plan, error) {
	if slot.Root == nil || slot.Verity == nil {
		return Plan{}, givcerrors.New(givcerrors.Internal, "selected slot is missing a volume")
	}
	root, verity := *slot.Root, *slot.Verity
	version := m.ToVersion()

	steps := []ota.Pipeline{
		installVolume(root.Volume, m.Store, source),
		installVolume(verity.Volume, m.Verity, source),
		flush(root.Volume),
		flush(verity.Volume),
		root.Rename(usedName(lvm.KindRoot, version)),
		verity.Rename(usedName(lvm.KindVerity, version)),
		installUKI(rt.Boot, m, source),
	}

	active, err := rt.ActiveSlot()
	if err != nil {
		return Plan{}, givcerrors.Wrap(givcerrors.Internal, "resolve active slot", err)
	}
	if active.IsLegacy() {
		steps = append(steps, legacyBootloaderMigration(rt.Boot)...)
	}

	return Plan{Steps: steps}, nil
}

// installVolume streams an image file onto the slot's block device,
// decompressing on the fly when the file is zstd-compressed.
func installVolume(volume lvm.Volume, file manifest.FileRef, source string) ota.Pipeline {
	target := volume.Device()
	input := file.FullName(source)

	if file.IsCompressed() {
		return ota.NewPipeline(ota.NewCommand("zstdcat", input)).
			Pipe(ota.NewCommand("dd", "of="+target, "bs=4M", "status=progress"))
	}
	return ota.NewPipeline(ota.NewCommand("dd", "if="+input, "of="+target, "bs=4M", "status=progress"))
}

func flush(volume lvm.Volume) ota.Pipeline {
	return ota.NewPipeline(ota.NewCommand("blockdev", "--flushbufs", volume.Device()))
}

func installUKI(boot string, m *manifest.Manifest, source string) ota.Pipeline {
	name := uki.UkiEntry{Version: m.ToVersion()}.String()
	return ota.NewPipeline(ota.NewCommand("install",
		"-m", "0644",
		m.Kernel.FullName(source),
		fmt.Sprintf("%s/EFI/Linux/%s", boot, name)))
}

// legacyBootloaderMigration hands boot-entry selection over from the type1
// loader.conf scheme to bootctl-managed defaults.
func legacyBootloaderMigration(boot string) []ota.Pipeline {
	return []ota.Pipeline{
		ota.NewPipeline(ota.NewCommand("sed", "-i", "s/^default .*/default @saved/",
			boot+"/loader/loader.conf")),
		ota.NewPipeline(ota.NewCommand("rm", "-f", boot+"/loader/entries.srel")),
		ota.NewPipeline(ota.NewCommand("bootctl", "set-default", "auto")),
	}
}

func usedName(kind lvm.Kind, v ota.Version) string {
	return lvm.Slot{
		Kind:   kind,
		Status: lvm.SlotStatus{Kind: lvm.StatusUsed, Version: v},
	}.String()
}

func emptyName(kind lvm.Kind, id string) string {
	return lvm.Slot{
		Kind:   kind,
		Status: lvm.SlotStatus{Kind: lvm.StatusEmpty, EmptyID: id},
	}.String()
}

// Remove builds the pipeline list returning the slot matching version to the
// empty state. Removing the active slot is refused. UKI removal, when one is
// attached, is emitted before the volume renames so the plan is
// deterministic.
func Remove(rt *group.Runtime, version ota.Version) (Plan, error) {
	slot, err := rt.FindSlot(version)
	if err != nil {
		return Plan{}, givcerrors.Wrap(givcerrors.NotFound, "resolve slot", err)
	}
	if slot.IsActive(rt.Kernel) {
		return Plan{}, givcerrors.New(givcerrors.FailedPrecondition, "cannot remove active slot")
	}

	var steps []ota.Pipeline
	if slot.Uki != nil {
		steps = append(steps, ota.NewPipeline(ota.NewCommand("rm", "-f",
			fmt.Sprintf("%s/EFI/Linux/%s", rt.Boot, slot.Uki.String()))))
	}

	id := slot.EmptyID()
	if id == "" || rt.HasEmptyWithID(id, slot) {
		id, err = rt.AllocateEmptyID()
		if err != nil {
			return Plan{}, givcerrors.Wrap(givcerrors.Internal, "allocate empty identifier", err)
		}
	}

	if slot.Root != nil {
		steps = append(steps, slot.Root.Rename(emptyName(lvm.KindRoot, id)))
	}
	if slot.Verity != nil {
		steps = append(steps, slot.Verity.Rename(emptyName(lvm.KindVerity, id)))
	}

	return Plan{Steps: steps}, nil
}
