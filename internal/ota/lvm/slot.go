package lvm

import (
	"fmt"
	"strings"

	"github.com/tiiuae/ghaf-givc/internal/ota"
)

// Kind distinguishes the two logical volumes an OTA slot group owns.
type Kind int

const (
	KindRoot Kind = iota
	KindVerity
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindVerity:
		return "verity"
	default:
		return "unknown"
	}
}

// ParseKind decodes the leading component of a slot volume name.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "root":
		return KindRoot, true
	case "verity":
		return KindVerity, true
	default:
		return 0, false
	}
}

// StatusKind distinguishes a used slot (carries a Version) from an empty
// one (available for the next install, optionally tagged with an id).
type StatusKind int

const (
	StatusUsed StatusKind = iota
	StatusEmpty
)

// SlotStatus is the decoded suffix of a slot volume name: either a Version
// (used slot, Hash empty for the legacy pre-hash naming scheme) or an
// EmptyID (empty slot, "" when untagged).
type SlotStatus struct {
	Kind    StatusKind
	Version ota.Version
	EmptyID string
}

// Slot is a single root or verity logical volume, decoded from its LVM
// name per the scheme `<kind>_empty[_<id>]`, `<kind>_<revision>_<hash>` or
// `<kind>_<revision>` (legacy, no hash). A bare `<kind>` name is rejected.
type Slot struct {
	Kind   Kind
	Status SlotStatus
	Volume Volume
}

// IsUsed reports whether the slot currently holds installed content.
func (s Slot) IsUsed() bool { return s.Status.Kind == StatusUsed }

// IsEmpty reports whether the slot is free for the next install.
func (s Slot) IsEmpty() bool { return s.Status.Kind == StatusEmpty }

// IsLegacy reports whether a used slot predates the content-hash naming
// scheme (no Hash fragment, root/verity paired by revision alone).
func (s Slot) IsLegacy() bool {
	return s.Status.Kind == StatusUsed && !s.Status.Version.HasHash()
}

// ParseSlotName decodes an LVM logical volume name into its Kind and
// SlotStatus. It replicates Rust's `rsplitn(3, '_')` parse: the name is
// split from the right into at most three components and the leftmost one
// is taken as the kind, so a name whose revision or hash contains further
// underscores leaves them in that component and is rejected as an unknown
// kind.
func ParseSlotName(name string) (Kind, SlotStatus, error) {
	parts := rsplitUnderscore(name, 3)
	if len(parts) < 2 {
		return 0, SlotStatus{}, fmt.Errorf("missing version in slot name: %q", name)
	}
	kind, ok := ParseKind(parts[0])
	if !ok {
		return 0, SlotStatus{}, fmt.Errorf("unknown slot kind: %q", parts[0])
	}
	switch len(parts) {
	case 2:
		if parts[1] == "empty" {
			return kind, SlotStatus{Kind: StatusEmpty}, nil
		}
		return kind, SlotStatus{Kind: StatusUsed, Version: ota.Version{Revision: parts[1]}}, nil
	case 3:
		if parts[1] == "empty" {
			return kind, SlotStatus{Kind: StatusEmpty, EmptyID: parts[2]}, nil
		}
		return kind, SlotStatus{Kind: StatusUsed, Version: ota.Version{Revision: parts[1], Hash: parts[2]}}, nil
	default:
		return 0, SlotStatus{}, fmt.Errorf("malformed slot name: %q", name)
	}
}

// String renders the LVM logical volume name for s, the inverse of
// ParseSlotName for every name it accepts. A used slot with an empty
// Revision renders as the bare kind, which ParseSlotName rejects.
func (s Slot) String() string {
	switch s.Status.Kind {
	case StatusEmpty:
		if s.Status.EmptyID == "" {
			return s.Kind.String() + "_empty"
		}
		return s.Kind.String() + "_empty_" + s.Status.EmptyID
	default:
		if s.Status.Version.Revision == "" {
			return s.Kind.String()
		}
		if !s.Status.Version.HasHash() {
			return s.Kind.String() + "_" + s.Status.Version.Revision
		}
		return s.Kind.String() + "_" + s.Status.Version.Revision + "_" + s.Status.Version.Hash
	}
}

// Rename returns the pipeline that renames this slot's volume to newName
// within its volume group.
func (s Slot) Rename(newName string) ota.Pipeline {
	return ota.NewPipeline(ota.NewCommand("lvrename", s.Volume.VGName, s.Volume.LVName, newName))
}

// rsplitUnderscore splits s on '_' from the right into at most n parts,
// returned in left-to-right order; any underscores beyond the first n-1
// (counted from the right) remain joined in the leftmost part.
func rsplitUnderscore(s string, n int) []string {
	if n <= 1 {
		return []string{s}
	}
	var reversedParts []string
	rest := s
	for len(reversedParts) < n-1 {
		idx := strings.LastIndexByte(rest, '_')
		if idx < 0 {
			break
		}
		reversedParts = append(reversedParts, rest[idx+1:])
		rest = rest[:idx]
	}
	reversedParts = append(reversedParts, rest)
	parts := make([]string, len(reversedParts))
	for i, p := range reversedParts {
		parts[len(parts)-1-i] = p
	}
	return parts
}
