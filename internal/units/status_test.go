package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func runningStatus() UnitStatus {
	return UnitStatus{
		Name:         "app@0.service",
		LoadState:    LoadLoaded,
		ActiveState:  ActiveActive,
		SubState:     SubRunning,
		FreezerState: FreezerRunning,
	}
}

func TestIsValid(t *testing.T) {
	s := runningStatus()
	assert.True(t, s.IsValid())

	bad := s
	bad.LoadState = "wedged"
	assert.False(t, bad.IsValid())

	bad = s
	bad.ActiveState = "sleeping"
	assert.False(t, bad.IsValid())

	bad = s
	bad.SubState = "zombie"
	assert.False(t, bad.IsValid())

	bad = s
	bad.FreezerState = "chilly"
	assert.False(t, bad.IsValid())
}

func TestIsRunningPausedExitted(t *testing.T) {
	s := runningStatus()
	assert.True(t, s.IsRunning())
	assert.False(t, s.IsPaused())
	assert.False(t, s.IsExitted())

	paused := s
	paused.FreezerState = FreezerFrozen
	assert.True(t, paused.IsPaused())
	assert.False(t, paused.IsRunning())

	exitted := s
	exitted.ActiveState = ActiveInactive
	exitted.SubState = SubDead
	assert.True(t, exitted.IsExitted())
	assert.False(t, exitted.IsRunning())
}
