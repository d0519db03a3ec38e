// Package manifest parses the signed update manifest and verifies the
// referenced image files against their SHA-256 digests.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tiiuae/ghaf-givc/internal/ota"
)

// Digest is a SHA-256 digest, unmarshalled from a 64-character hex string.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func (d *Digest) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("invalid sha256 hex: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("sha256 must be 32 bytes, got %d", len(decoded))
	}
	copy(d[:], decoded)
	return nil
}

// FileRef is one image file referenced by the manifest: a name relative to
// the update source directory plus its expected content digest.
type FileRef struct {
	Name   string `json:"file"`
	SHA256 Digest `json:"sha256"`
}

// FullName joins the file name onto the update source directory.
func (f FileRef) FullName(baseDir string) string {
	return filepath.Join(baseDir, f.Name)
}

// IsCompressed reports whether the file carries a .zst extension and must be
// decompressed on the way to the block device.
func (f FileRef) IsCompressed() bool {
	return strings.EqualFold(filepath.Ext(f.Name), ".zst")
}

// Validate checks the referenced file below baseDir: it must exist and be a
// regular file, and when checksum is set its full SHA-256 must match.
func (f FileRef) Validate(baseDir string, checksum bool) error {
	fullName := f.FullName(baseDir)
	info, err := os.Stat(fullName)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("missing file %s", fullName)
		}
		return fmt.Errorf("reading metadata for %s: %w", fullName, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file %s", fullName)
	}
	if checksum {
		actual, err := ReadSHA256(fullName)
		if err != nil {
			return err
		}
		if actual != f.SHA256 {
			return fmt.Errorf("checksum mismatch for %s: expected %s, got %s",
				fullName, f.SHA256, actual)
		}
	}
	return nil
}

// Manifest describes one installable system image: its version, the dm-verity
// root hash the kernel will enforce, and the three files (store image, verity
// image, UKI kernel) realizing it.
type Manifest struct {
	Meta            map[string]string `json:"meta"`
	ManifestVersion uint32            `json:"manifest_version"`
	System          string            `json:"system,omitempty"`
	Version         string            `json:"version"`
	RootVerityHash  string            `json:"root_verity_hash"`
	Kernel          FileRef           `json:"kernel"`
	Store           FileRef           `json:"root"`
	Verity          FileRef           `json:"verity"`
}

// FromFile reads and decodes a manifest from filename.
func FromFile(filename string) (*Manifest, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("deserializing manifest: %w", err)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("manifest has no version")
	}
	if len(m.RootVerityHash) < 16 {
		return nil, fmt.Errorf("manifest root_verity_hash too short: %q", m.RootVerityHash)
	}
	return &m, nil
}

// HashFragment returns the first 16 hex characters of the root verity hash,
// the fragment carried in slot volume and UKI names.
func (m *Manifest) HashFragment() string {
	return m.RootVerityHash[:16]
}

// ToVersion returns the slot-identity Version this manifest installs as.
func (m *Manifest) ToVersion() ota.Version {
	return ota.Version{Revision: m.Version, Hash: m.HashFragment()}
}

// Validate checks every file the manifest mentions below baseDir; checksum
// selects between a cheap existence check and the full SHA-256 pass.
func (m *Manifest) Validate(baseDir string, checksum bool) error {
	if err := m.Kernel.Validate(baseDir, checksum); err != nil {
		return fmt.Errorf("while validating kernel: %w", err)
	}
	if err := m.Store.Validate(baseDir, checksum); err != nil {
		return fmt.Errorf("while validating store image: %w", err)
	}
	if err := m.Verity.Validate(baseDir, checksum); err != nil {
		return fmt.Errorf("while validating verity image: %w", err)
	}
	return nil
}
