package lvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/ghaf-givc/internal/ota"
)

func TestParseSlotNameAndRoundtrip(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		status SlotStatus
	}{
		{
			name: "root_1.2.3_deadbeefdeadbeef",
			kind: KindRoot,
			status: SlotStatus{
				Kind:    StatusUsed,
				Version: ota.Version{Revision: "1.2.3", Hash: "deadbeefdeadbeef"},
			},
		},
		{
			name:   "root_empty_3",
			kind:   KindRoot,
			status: SlotStatus{Kind: StatusEmpty, EmptyID: "3"},
		},
		{
			name:   "verity_empty",
			kind:   KindVerity,
			status: SlotStatus{Kind: StatusEmpty},
		},
		{
			name:   "verity_0",
			kind:   KindVerity,
			status: SlotStatus{Kind: StatusUsed, Version: ota.Version{Revision: "0"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, status, err := ParseSlotName(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.status, status)

			slot := Slot{Kind: kind, Status: status}
			assert.Equal(t, tc.name, slot.String())
		})
	}
}

func TestParseSlotNameUnknownKind(t *testing.T) {
	_, _, err := ParseSlotName("bogus_1_2")
	require.Error(t, err)
}

func TestParseSlotNameBareKindRejected(t *testing.T) {
	_, _, err := ParseSlotName("root")
	require.Error(t, err)
}

func TestSlotPredicates(t *testing.T) {
	used := Slot{Kind: KindRoot, Status: SlotStatus{Kind: StatusUsed, Version: ota.Version{Revision: "1", Hash: "abc"}}}
	assert.True(t, used.IsUsed())
	assert.False(t, used.IsEmpty())
	assert.False(t, used.IsLegacy())

	legacy := Slot{Kind: KindRoot, Status: SlotStatus{Kind: StatusUsed, Version: ota.Version{Revision: "1"}}}
	assert.True(t, legacy.IsUsed())
	assert.True(t, legacy.IsLegacy())

	empty := Slot{Kind: KindVerity, Status: SlotStatus{Kind: StatusEmpty}}
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsUsed())
}

func TestParseLVSOutput(t *testing.T) {
	output := "  LVM2_LV_NAME='root_1.2.3_deadbeefdeadbeef' LVM2_VG_NAME='ghaf' LVM2_LV_ATTR='-wi-a-----' LVM2_LV_SIZE='2,00g'\n" +
		"  LVM2_LV_NAME='verity_empty' LVM2_VG_NAME='ghaf' LVM2_LV_ATTR='-wi-------' LVM2_LV_SIZE='256,00m'\n" +
		"\n"

	volumes := ParseLVSOutput(output)
	require.Len(t, volumes, 2)
	assert.Equal(t, "root_1.2.3_deadbeefdeadbeef", volumes[0].LVName)
	assert.Equal(t, "ghaf", volumes[0].VGName)
	assert.True(t, volumes[0].HasSize)
	assert.Equal(t, uint64(2*1024*1024*1024), volumes[0].LVSizeBytes)
	assert.Equal(t, "/dev/mapper/ghaf-verity_empty", volumes[1].Device())
}

func TestParseLVSizeUnits(t *testing.T) {
	cases := map[string]uint64{
		"1k": 1024,
		"1m": 1024 * 1024,
		"1g": 1024 * 1024 * 1024,
		"1t": 1024 * 1024 * 1024 * 1024,
	}
	for in, want := range cases {
		got, err := parseLVSize(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parseLVSize("1x")
	require.Error(t, err)
}
