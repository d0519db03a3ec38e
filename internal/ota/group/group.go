// Package group assembles the OTA engine's runtime picture: root and verity
// volumes paired into slot groups by (version, hash), UKI boot entries
// attached to their matching group, and the active/empty/inactive/broken
// classification driven by the running kernel's parameters.
package group

import (
	"fmt"

	"github.com/tiiuae/ghaf-givc/internal/ota/lvm"
	"github.com/tiiuae/ghaf-givc/internal/ota/uki"
)

// SlotClass is the computed state of a slot group; it is never stored.
type SlotClass int

const (
	// ClassBroken marks a structurally invalid group.
	ClassBroken SlotClass = iota
	// ClassActive marks the group the running kernel booted from.
	ClassActive
	// ClassEmpty marks a valid group with no installed content.
	ClassEmpty
	// ClassInactive marks an installed but not booted group.
	ClassInactive
)

func (c SlotClass) String() string {
	switch c {
	case ClassBroken:
		return "broken"
	case ClassActive:
		return "active"
	case ClassEmpty:
		return "empty"
	case ClassInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// SlotGroup pairs the volumes and UKI that together realize one bootable
// image. Version is "" for an empty group; Hash carries the content-hash
// fragment for a used group and the empty identifier for an empty one ("" in
// either role meaning "none", the legacy forms).
type SlotGroup struct {
	Version string
	Hash    string
	Root    *lvm.Slot
	Verity  *lvm.Slot
	Uki     *uki.UkiEntry
}

type slotKey struct {
	version string
	hash    string
}

func (g SlotGroup) key() slotKey { return slotKey{version: g.Version, hash: g.Hash} }

func keyOf(s lvm.Slot) slotKey {
	if s.IsUsed() {
		return slotKey{version: s.Status.Version.Revision, hash: s.Status.Version.Hash}
	}
	return slotKey{hash: s.Status.EmptyID}
}

// IsEmpty reports whether the group holds no installed content.
func (g SlotGroup) IsEmpty() bool { return g.Version == "" }

// IsComplete reports whether both the root and verity volume are present.
func (g SlotGroup) IsComplete() bool { return g.Root != nil && g.Verity != nil }

// IsLegacy reports whether the group predates the version+hash scheme.
func (g SlotGroup) IsLegacy() bool { return g.Version == "0" }

// EmptyID returns the empty identifier tag of an empty group, "" when the
// group is used or untagged.
func (g SlotGroup) EmptyID() string {
	if !g.IsEmpty() {
		return ""
	}
	return g.Hash
}

// IsActive reports whether this group is the one the running kernel booted:
// the unique legacy group when no storehash is on the cmdline, or the group
// whose (version, hash) matches (ghaf.revision, storehash[..16]).
func (g SlotGroup) IsActive(kernel KernelParams) bool {
	if g.IsLegacy() && kernel.StoreHash == "" {
		return true
	}
	kh := kernel.VerityHashFragment()
	if g.Version == "" || g.Hash == "" || kernel.Revision == "" || kh == "" {
		return false
	}
	return g.Version == kernel.Revision && g.Hash == kh
}

// Validate checks the group's structural invariants: root and verity must be
// present together, and an installed version must carry a hash.
func (g SlotGroup) Validate() error {
	if (g.Root == nil) != (g.Verity == nil) {
		return fmt.Errorf("incomplete slot: root and verity must be present together")
	}
	if g.Version != "" && g.Hash == "" {
		return fmt.Errorf("invalid slot: version is set but hash is missing")
	}
	return nil
}

// Classify computes the group's SlotClass for the given kernel parameters.
// Structural validation always comes first, so a legacy group (version set,
// no hash) classifies as Broken even though IsActive reports it active.
func (g SlotGroup) Classify(kernel KernelParams) SlotClass {
	if g.Validate() != nil {
		return ClassBroken
	}
	if g.IsActive(kernel) {
		return ClassActive
	}
	if g.Version == "" {
		return ClassEmpty
	}
	return ClassInactive
}

// GroupVolumes pairs parsed slots into SlotGroups by (version, hash),
// preserving the order in which keys first appear so slot selection is
// deterministic across runs.
func GroupVolumes(slots []lvm.Slot) []SlotGroup {
	byKey := make(map[slotKey]*SlotGroup)
	var order []slotKey

	for i := range slots {
		s := slots[i]
		key := keyOf(s)
		g, ok := byKey[key]
		if !ok {
			g = &SlotGroup{Version: key.version, Hash: key.hash}
			byKey[key] = g
			order = append(order, key)
		}
		switch s.Kind {
		case lvm.KindRoot:
			g.Root = &slots[i]
		case lvm.KindVerity:
			g.Verity = &slots[i]
		}
	}

	groups := make([]SlotGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// GroupUKIs attaches each UKI entry to the non-legacy, non-empty group with
// the same (version, hash); a second UKI for one key is an error. Orphan
// UKIs become new groups with no volumes.
func GroupUKIs(groups []SlotGroup, entries []uki.UkiEntry) ([]SlotGroup, error) {
	byKey := make(map[slotKey]uki.UkiEntry)
	var order []slotKey
	for _, e := range entries {
		key := slotKey{version: e.Version.Revision, hash: e.Version.Hash}
		if _, dup := byKey[key]; dup {
			return nil, fmt.Errorf("invalid state: multiple UKIs for version=%s hash=%s",
				e.Version.Revision, e.Version.Hash)
		}
		byKey[key] = e
		order = append(order, key)
	}

	for i := range groups {
		g := &groups[i]
		if g.IsLegacy() || g.IsEmpty() {
			continue
		}
		if e, ok := byKey[g.key()]; ok {
			entry := e
			g.Uki = &entry
			delete(byKey, g.key())
		}
	}

	for _, key := range order {
		e, ok := byKey[key]
		if !ok {
			continue
		}
		entry := e
		groups = append(groups, SlotGroup{
			Version: e.Version.Revision,
			Hash:    e.Version.Hash,
			Uki:     &entry,
		})
	}
	return groups, nil
}
