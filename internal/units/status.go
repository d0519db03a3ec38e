package units

// FreezerState, LoadState, ActiveState and SubState enumerate the fixed
// systemd-derived vocabularies UnitStatus.IsValid checks against. Spellings
// match the wire vocabulary verbatim, including "exitted".
type FreezerState string

const (
	FreezerFrozen           FreezerState = "frozen"
	FreezerRunning          FreezerState = "running"
	FreezerFreezing         FreezerState = "freezing"
	FreezerThawing          FreezerState = "thawing"
	FreezerFrozenByParent   FreezerState = "frozen-by-parent"
	FreezerFreezingByParent FreezerState = "freezing-by-parent"
)

type LoadState string

const (
	LoadStub       LoadState = "stub"
	LoadLoaded     LoadState = "loaded"
	LoadNotFound   LoadState = "not-found"
	LoadBadSetting LoadState = "bad-setting"
	LoadMerged     LoadState = "merged"
	LoadMasked     LoadState = "masked"
)

type ActiveState string

const (
	ActiveActive       ActiveState = "active"
	ActiveReloading    ActiveState = "reloading"
	ActiveInactive     ActiveState = "inactive"
	ActiveFailed       ActiveState = "failed"
	ActiveActivating   ActiveState = "activating"
	ActiveDeactivating ActiveState = "deactivating"
	ActiveMaintenance  ActiveState = "maintenance"
	ActiveRefreshing   ActiveState = "refreshing"
)

type SubState string

const (
	SubDead    SubState = "dead"
	SubRunning SubState = "running"
	SubExitted SubState = "exitted"
)

var validFreezerStates = map[FreezerState]bool{
	FreezerFrozen: true, FreezerRunning: true, FreezerFreezing: true,
	FreezerThawing: true, FreezerFrozenByParent: true, FreezerFreezingByParent: true,
}

var validLoadStates = map[LoadState]bool{
	LoadStub: true, LoadLoaded: true, LoadNotFound: true,
	LoadBadSetting: true, LoadMerged: true, LoadMasked: true,
}

var validActiveStates = map[ActiveState]bool{
	ActiveActive: true, ActiveReloading: true, ActiveInactive: true, ActiveFailed: true,
	ActiveActivating: true, ActiveDeactivating: true, ActiveMaintenance: true, ActiveRefreshing: true,
}

var validSubStates = map[SubState]bool{
	SubDead: true, SubRunning: true, SubExitted: true,
}

// UnitStatus is the last-known state of a unit as reported by an agent.
type UnitStatus struct {
	Name         string
	Description  string
	LoadState    LoadState
	ActiveState  ActiveState
	SubState     SubState
	FreezerState FreezerState
	Path         string
}

// IsValid reports whether every enum field is drawn from its fixed
// vocabulary.
func (s UnitStatus) IsValid() bool {
	return validLoadStates[s.LoadState] &&
		validActiveStates[s.ActiveState] &&
		validSubStates[s.SubState] &&
		validFreezerStates[s.FreezerState]
}

// IsPaused reports whether the unit's freezer cgroup is frozen.
func (s UnitStatus) IsPaused() bool {
	return s.FreezerState == FreezerFrozen
}

// IsRunning reports the conjunction required for "the unit is up and not
// paused".
func (s UnitStatus) IsRunning() bool {
	return !s.IsPaused() && s.ActiveState == ActiveActive && s.LoadState == LoadLoaded && s.SubState == SubRunning
}

// IsExitted reports whether the unit ran to completion and stopped cleanly.
func (s UnitStatus) IsExitted() bool {
	return s.ActiveState == ActiveInactive && s.SubState == SubDead
}
