// Package uki decodes Unified Kernel Image filenames and bootctl's boot
// entry listing, the counterpart to package lvm on the boot-loader side of
// an OTA slot group.
package uki

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tiiuae/ghaf-givc/internal/ota"
)

// BootCounter is the systemd-boot boot-counting suffix on a UKI filename:
// `+<remaining>` or `+<remaining>-<used>`.
type BootCounter struct {
	Remaining uint32
	Used      uint32
	HasUsed   bool
}

// String renders the `+rem[-used]` suffix, without the leading separator.
func (c BootCounter) String() string {
	if !c.HasUsed {
		return strconv.FormatUint(uint64(c.Remaining), 10)
	}
	return fmt.Sprintf("%d-%d", c.Remaining, c.Used)
}

// UkiEntry is a decoded managed UKI filename: `ghaf-<version>-<hash>.efi`
// optionally followed by a boot counter, `ghaf-<version>-<hash>+<rem>[-<used>].efi`.
type UkiEntry struct {
	Version     ota.Version
	BootCounter BootCounter
	HasCounter  bool
}

const (
	ukiPrefix = "ghaf-"
	ukiSuffix = ".efi"
)

// ParseUkiFilename decodes name per the `ghaf-<ver>-<hash>[+rem[-used]].efi`
// grammar. Version.Hash is always present for a managed UKI (unlike slot
// names, there is no legacy no-hash UKI form).
func ParseUkiFilename(name string) (UkiEntry, error) {
	if !strings.HasPrefix(name, ukiPrefix) || !strings.HasSuffix(name, ukiSuffix) {
		return UkiEntry{}, fmt.Errorf("not a managed UKI filename: %q", name)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, ukiPrefix), ukiSuffix)

	counterPart := ""
	hasCounter := false
	if idx := strings.IndexByte(body, '+'); idx >= 0 {
		counterPart = body[idx+1:]
		body = body[:idx]
		hasCounter = true
	}

	dash := strings.IndexByte(body, '-')
	if dash < 0 {
		return UkiEntry{}, fmt.Errorf("missing hash fragment in UKI filename: %q", name)
	}
	version := body[:dash]
	hash := body[dash+1:]
	if version == "" || hash == "" {
		return UkiEntry{}, fmt.Errorf("malformed UKI filename: %q", name)
	}

	entry := UkiEntry{Version: ota.Version{Revision: version, Hash: hash}}
	if !hasCounter {
		return entry, nil
	}
	counter, err := parseBootCounter(counterPart)
	if err != nil {
		return UkiEntry{}, fmt.Errorf("malformed boot counter in %q: %w", name, err)
	}
	entry.BootCounter = counter
	entry.HasCounter = true
	return entry, nil
}

func parseBootCounter(s string) (BootCounter, error) {
	if s == "" {
		return BootCounter{}, fmt.Errorf("empty boot counter")
	}
	remPart, usedPart, hasUsed := strings.Cut(s, "-")
	remaining, err := strconv.ParseUint(remPart, 10, 32)
	if err != nil {
		return BootCounter{}, fmt.Errorf("invalid remaining count: %q", remPart)
	}
	counter := BootCounter{Remaining: uint32(remaining)}
	if hasUsed {
		used, err := strconv.ParseUint(usedPart, 10, 32)
		if err != nil {
			return BootCounter{}, fmt.Errorf("invalid used count: %q", usedPart)
		}
		counter.Used = uint32(used)
		counter.HasUsed = true
	}
	return counter, nil
}

// String renders the filename, the inverse of ParseUkiFilename.
func (e UkiEntry) String() string {
	var b strings.Builder
	b.WriteString(ukiPrefix)
	b.WriteString(e.Version.Revision)
	b.WriteByte('-')
	b.WriteString(e.Version.Hash)
	if e.HasCounter {
		b.WriteByte('+')
		b.WriteString(e.BootCounter.String())
	}
	b.WriteString(ukiSuffix)
	return b.String()
}
