package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/ghaf-givc/internal/ota"
	"github.com/tiiuae/ghaf-givc/internal/ota/lvm"
	"github.com/tiiuae/ghaf-givc/internal/ota/uki"
)

func vols(names ...string) []lvm.Volume {
	out := make([]lvm.Volume, len(names))
	for i, n := range names {
		out[i] = lvm.Volume{LVName: n, VGName: "vg"}
	}
	return out
}

func groupsOf(t *testing.T, names ...string) []SlotGroup {
	t.Helper()
	return GroupVolumes(lvm.ParseSlots(vols(names...)))
}

func TestGroupRootAndVerityIntoSingleSlot(t *testing.T) {
	groups := groupsOf(t, "root_1.2.3_deadbeefdeadbeef", "verity_1.2.3_deadbeefdeadbeef")
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "1.2.3", g.Version)
	assert.Equal(t, "deadbeefdeadbeef", g.Hash)
	assert.NotNil(t, g.Root)
	assert.NotNil(t, g.Verity)
	assert.True(t, g.IsComplete())
}

func TestEmptySlotIsGrouped(t *testing.T) {
	groups := groupsOf(t, "root_empty_01", "verity_empty_01")
	require.Len(t, groups, 1)

	g := groups[0]
	assert.True(t, g.IsEmpty())
	assert.Equal(t, "01", g.EmptyID())
	assert.True(t, g.IsComplete())
}

func TestBrokenSlotWithOnlyRootIsPreserved(t *testing.T) {
	groups := groupsOf(t, "root_2.0.0_abcdabcdabcdabcd")
	require.Len(t, groups, 1)
	assert.NotNil(t, groups[0].Root)
	assert.Nil(t, groups[0].Verity)
	assert.Equal(t, ClassBroken, groups[0].Classify(KernelParams{}))
}

func TestNonSlotVolumesAreIgnored(t *testing.T) {
	groups := groupsOf(t, "swap", "home", "persist", "root_1.0.0_aaaaaaaaaaaaaaaa")
	require.Len(t, groups, 1)
}

func TestMultipleSlotsGroupSeparately(t *testing.T) {
	groups := groupsOf(t,
		"root_1.0.0_aaaaaaaaaaaaaaaa", "verity_1.0.0_aaaaaaaaaaaaaaaa",
		"root_2.0.0_bbbbbbbbbbbbbbbb", "verity_2.0.0_bbbbbbbbbbbbbbbb")
	require.Len(t, groups, 2)
	assert.Equal(t, "1.0.0", groups[0].Version)
	assert.Equal(t, "2.0.0", groups[1].Version)
}

func TestValidate(t *testing.T) {
	full := groupsOf(t, "root_1.2.3_abcdabcdabcdabcd", "verity_1.2.3_abcdabcdabcdabcd")[0]
	assert.NoError(t, full.Validate())

	empty := groupsOf(t, "root_empty_1", "verity_empty_1")[0]
	assert.NoError(t, empty.Validate())

	incomplete := groupsOf(t, "root_1.2.3_abcdabcdabcdabcd")[0]
	assert.ErrorContains(t, incomplete.Validate(), "incomplete slot")

	legacy := groupsOf(t, "root_0", "verity_0")[0]
	assert.ErrorContains(t, legacy.Validate(), "hash is missing")
}

func TestActiveClassification(t *testing.T) {
	legacy := SlotGroup{Version: "0"}
	assert.True(t, legacy.IsActive(KernelParams{}))
	assert.False(t, legacy.IsActive(KernelParams{StoreHash: "deadbeefdeadbeefffff"}))

	normal := SlotGroup{Version: "1.2.3", Hash: "abcdabcdabcdabcd"}
	kernel := KernelParams{Revision: "1.2.3", StoreHash: "abcdabcdabcdabcdffffffff"}
	assert.True(t, normal.IsActive(kernel))
	assert.False(t, normal.IsActive(KernelParams{Revision: "1.2.3", StoreHash: "ffffffffffffffff"}))
	assert.False(t, normal.IsActive(KernelParams{}))
}

func TestClassify(t *testing.T) {
	kernel := KernelParams{Revision: "1.0.0", StoreHash: "aaaaaaaaaaaaaaaa"}

	active := groupsOf(t, "root_1.0.0_aaaaaaaaaaaaaaaa", "verity_1.0.0_aaaaaaaaaaaaaaaa")[0]
	assert.Equal(t, ClassActive, active.Classify(kernel))

	inactive := groupsOf(t, "root_2.0.0_bbbbbbbbbbbbbbbb", "verity_2.0.0_bbbbbbbbbbbbbbbb")[0]
	assert.Equal(t, ClassInactive, inactive.Classify(kernel))

	empty := groupsOf(t, "root_empty", "verity_empty")[0]
	assert.Equal(t, ClassEmpty, empty.Classify(kernel))

	broken := groupsOf(t, "root_3.0.0_cccccccccccccccc")[0]
	assert.Equal(t, ClassBroken, broken.Classify(kernel))
}

func ukiEntry(version, hash string) uki.UkiEntry {
	return uki.UkiEntry{Version: ota.Version{Revision: version, Hash: hash}}
}

func TestUkiAttachedToMatchingSlot(t *testing.T) {
	groups, err := GroupUKIs(
		groupsOf(t, "root_1.2.3_deadbeefdeadbeef", "verity_1.2.3_deadbeefdeadbeef"),
		[]uki.UkiEntry{ukiEntry("1.2.3", "deadbeefdeadbeef")})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].Uki)
	assert.Equal(t, "deadbeefdeadbeef", groups[0].Uki.Version.Hash)
}

func TestLegacySlotDoesNotReceiveUki(t *testing.T) {
	groups, err := GroupUKIs(
		groupsOf(t, "root_0", "verity_0"),
		[]uki.UkiEntry{ukiEntry("0", "deadbeefdeadbeef")})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	var legacy, orphan *SlotGroup
	for i := range groups {
		if groups[i].IsLegacy() && groups[i].Root != nil {
			legacy = &groups[i]
		}
		if groups[i].Uki != nil {
			orphan = &groups[i]
		}
	}
	require.NotNil(t, legacy)
	assert.Nil(t, legacy.Uki)
	require.NotNil(t, orphan)
	assert.Equal(t, "0", orphan.Version)
}

func TestOrphanUkiCreatesNewSlotGroup(t *testing.T) {
	groups, err := GroupUKIs(nil, []uki.UkiEntry{ukiEntry("2.0.0", "cafebabecafebabe")})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "2.0.0", groups[0].Version)
	assert.Equal(t, "cafebabecafebabe", groups[0].Hash)
	assert.NotNil(t, groups[0].Uki)
}

func TestEmptySlotIgnoredByUkiGrouping(t *testing.T) {
	groups, err := GroupUKIs(
		groupsOf(t, "root_empty", "verity_empty"),
		[]uki.UkiEntry{ukiEntry("1.2.3", "deadbeefdeadbeef")})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	withUki := 0
	for _, g := range groups {
		if g.Uki != nil {
			withUki++
		}
	}
	assert.Equal(t, 1, withUki)
}

func TestDuplicateUkiIsError(t *testing.T) {
	_, err := GroupUKIs(nil, []uki.UkiEntry{
		ukiEntry("1.2.3", "deadbeefdeadbeef"),
		ukiEntry("1.2.3", "deadbeefdeadbeef"),
	})
	require.ErrorContains(t, err, "multiple UKIs")
}
