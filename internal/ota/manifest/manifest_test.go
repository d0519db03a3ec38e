package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestJSON = `{
 "meta": {},
 "version": "25.12.1",
 "root_verity_hash": "44cc41b403a2d323a68f42941131169899545eaceebe332e24426e9ff7d7f3bc",
 "root": {
  "file": "ghaf_root_25.12.1_44cc41b403a2d323.raw.zst",
  "sha256": "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
 },
 "verity": {
  "file": "ghaf_verity_25.12.1_44cc41b403a2d323.raw.zst",
  "sha256": "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
 },
 "kernel": {
  "file": "ghaf_kernel_25.12.1_44cc41b403a2d323.efi",
  "sha256": "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
 }
}`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFromFile(t *testing.T) {
	m, err := FromFile(writeManifest(t, manifestJSON))
	require.NoError(t, err)

	assert.Equal(t, "25.12.1", m.Version)
	assert.Equal(t, "44cc41b403a2d323", m.HashFragment())
	assert.Equal(t, "25.12.1", m.ToVersion().Revision)
	assert.Equal(t, "44cc41b403a2d323", m.ToVersion().Hash)
	assert.True(t, m.Store.IsCompressed())
	assert.False(t, m.Kernel.IsCompressed())
}

func TestFromFileRejectsBadHash(t *testing.T) {
	_, err := FromFile(writeManifest(t, `{"version":"1","root_verity_hash":"short",
		"root":{"file":"r","sha256":"af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		"verity":{"file":"v","sha256":"af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
		"kernel":{"file":"k","sha256":"af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"}}`))
	require.ErrorContains(t, err, "root_verity_hash")
}

func TestDigestUnmarshalRejectsBadHex(t *testing.T) {
	var d Digest
	require.Error(t, d.UnmarshalJSON([]byte(`"zz"`)))
	require.Error(t, d.UnmarshalJSON([]byte(`"abcd"`))) // too short
	require.NoError(t, d.UnmarshalJSON([]byte(`"af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"`)))
}

func TestReadSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.raw")
	content := []byte("ota image payload")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	digest, err := ReadSHA256(path)
	require.NoError(t, err)
	expected := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(expected[:]), digest.String())
}

func TestReadSHA256EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	digest, err := ReadSHA256(path)
	require.NoError(t, err)
	expected := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(expected[:]), digest.String())
}

func TestValidateExistenceAndChecksum(t *testing.T) {
	dir := t.TempDir()
	content := []byte("payload")
	digest := sha256.Sum256(content)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.raw"), content, 0o644))

	ref := FileRef{Name: "image.raw", SHA256: Digest(digest)}
	require.NoError(t, ref.Validate(dir, false))
	require.NoError(t, ref.Validate(dir, true))

	missing := FileRef{Name: "nope.raw"}
	require.ErrorContains(t, missing.Validate(dir, false), "missing file")

	wrong := FileRef{Name: "image.raw"}
	require.ErrorContains(t, wrong.Validate(dir, true), "checksum mismatch")
}

func TestValidateRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	ref := FileRef{Name: "subdir"}
	require.ErrorContains(t, ref.Validate(dir, false), "not a regular file")
}
