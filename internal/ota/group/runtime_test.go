package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/ghaf-givc/internal/ota"
	"github.com/tiiuae/ghaf-givc/internal/ota/manifest"
)

const lvsFactory = `
  LVM2_LV_NAME='persist' LVM2_VG_NAME='pool' LVM2_LV_ATTR='-wi-ao----' LVM2_LV_SIZE='<829.38g'
  LVM2_LV_NAME='root_0' LVM2_VG_NAME='pool' LVM2_LV_ATTR='-wi-ao----' LVM2_LV_SIZE='50.00g'
  LVM2_LV_NAME='root_empty' LVM2_VG_NAME='pool' LVM2_LV_ATTR='-wi-a-----' LVM2_LV_SIZE='50.00g'
  LVM2_LV_NAME='swap' LVM2_VG_NAME='pool' LVM2_LV_ATTR='-wi-ao----' LVM2_LV_SIZE='12.00g'
  LVM2_LV_NAME='verity_0' LVM2_VG_NAME='pool' LVM2_LV_ATTR='-wi-a-----' LVM2_LV_SIZE='6.00g'
  LVM2_LV_NAME='verity_empty' LVM2_VG_NAME='pool' LVM2_LV_ATTR='-wi-a-----' LVM2_LV_SIZE='6.00g'
`

func testManifest(version, hash string) *manifest.Manifest {
	return &manifest.Manifest{
		Version:        version,
		RootVerityHash: hash,
		Kernel:         manifest.FileRef{Name: "k.efi"},
		Store:          manifest.FileRef{Name: "s.raw"},
		Verity:         manifest.FileRef{Name: "v.raw"},
	}
}

func TestSelectSlotNoopIfAlreadyInstalled(t *testing.T) {
	rt := NewRuntime(`
  LVM2_LV_NAME='root_1.2.3_deadbeefdeadbeef' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='verity_1.2.3_deadbeefdeadbeef' LVM2_VG_NAME='pool'
`, "ghaf.revision=1.2.3 storehash=deadbeefdeadbeef", nil, "")

	selected, err := rt.SelectUpdateSlot(testManifest("1.2.3", "deadbeefdeadbeefpadding"))
	require.NoError(t, err)
	assert.Nil(t, selected)
}

func TestSelectEmptySlotPair(t *testing.T) {
	rt := NewRuntime(`
  LVM2_LV_NAME='root_1.0.0_aaaaaaaaaaaaaaaa' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='verity_1.0.0_aaaaaaaaaaaaaaaa' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='root_empty_01' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='verity_empty_01' LVM2_VG_NAME='pool'
`, "ghaf.revision=1.0.0 storehash=aaaaaaaaaaaaaaaa", nil, "")

	selected, err := rt.SelectUpdateSlot(testManifest("2.0.0", "bbbbbbbbbbbbbbbb"))
	require.NoError(t, err)
	require.NotNil(t, selected)
	assert.True(t, selected.IsEmpty())
}

func TestIncompleteEmptySlotNotSelected(t *testing.T) {
	rt := NewRuntime(`
  LVM2_LV_NAME='root_empty_01' LVM2_VG_NAME='pool'
`, "", nil, "")

	_, err := rt.SelectUpdateSlot(testManifest("1.0.0", "aaaaaaaaaaaaaaaa"))
	require.ErrorContains(t, err, "no empty slot")
}

func TestActiveSlotLegacy(t *testing.T) {
	rt := NewRuntime(lvsFactory, "root=fstab", nil, "")
	active, err := rt.ActiveSlot()
	require.NoError(t, err)
	assert.True(t, active.IsLegacy())
}

func TestFindSlotWithAndWithoutHash(t *testing.T) {
	rt := NewRuntime(`
  LVM2_LV_NAME='root_25.12.1_deadbeefdeadbeef' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='verity_25.12.1_deadbeefdeadbeef' LVM2_VG_NAME='pool'
`, "", nil, "")

	byRevision, err := rt.FindSlot(ota.Version{Revision: "25.12.1"})
	require.NoError(t, err)
	assert.Equal(t, "deadbeefdeadbeef", byRevision.Hash)

	byBoth, err := rt.FindSlot(ota.Version{Revision: "25.12.1", Hash: "deadbeefdeadbeef"})
	require.NoError(t, err)
	assert.Equal(t, byRevision.Version, byBoth.Version)

	_, err = rt.FindSlot(ota.Version{Revision: "9.9.9"})
	require.ErrorContains(t, err, "no slot matching")
}

func TestAllocateEmptyID(t *testing.T) {
	rt := NewRuntime(`
  LVM2_LV_NAME='root_empty_0' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='verity_empty_0' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='root_empty_2' LVM2_VG_NAME='pool'
  LVM2_LV_NAME='verity_empty_2' LVM2_VG_NAME='pool'
`, "", nil, "")

	id, err := rt.AllocateEmptyID()
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}
