package uki

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUkiFilenameRoundtrip(t *testing.T) {
	cases := []string{
		"ghaf-1.2.3-deadbeefdeadbeef.efi",
		"ghaf-1.2.3-deadbeefdeadbeef+3.efi",
		"ghaf-1.2.3-deadbeefdeadbeef+3-1.efi",
		"ghaf-25.12.1-44cc41b403a2d323.efi",
	}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			entry, err := ParseUkiFilename(name)
			require.NoError(t, err)
			assert.Equal(t, name, entry.String())
		})
	}
}

func TestParseUkiFilenameRejectsGarbage(t *testing.T) {
	cases := []string{
		"not-a-uki.efi",
		"ghaf-onlyversion.efi",
		"ghaf--.efi",
		"ghaf-1.2.3-abc+x-y.efi",
	}
	for _, name := range cases {
		_, err := ParseUkiFilename(name)
		assert.Error(t, err, name)
	}
}

func TestClassifyBootctlJSON(t *testing.T) {
	data := []byte(`[
		{"type":"type2","id":"ghaf-25.12.1-44cc41b403a2d323.efi"},
		{"type":"type2","id":"other-thing.efi"},
		{"type":"type1","id":"auto-windows.conf"},
		{"type":"loader","id":"loader"}
	]`)
	entries, err := ClassifyBootctlJSON(data)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, KindManaged, entries[0].Kind)
	assert.Equal(t, "25.12.1", entries[0].Managed.Version.Revision)
	assert.Equal(t, KindUnmanaged, entries[1].Kind)
	assert.Equal(t, KindLegacy, entries[2].Kind)
}
