package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEquipmentStatus_AllowedTargets(t *testing.T) {
	cases := map[EquipmentStatus][]EquipmentStatus{
		EquipmentStatusPending:        {EquipmentStatusAvailable},
		EquipmentStatusMaintenance:    {EquipmentStatusAvailable, EquipmentStatusBroken, EquipmentStatusDecommissioned},
		EquipmentStatusBroken:         {EquipmentStatusMaintenance, EquipmentStatusDecommissioned},
		EquipmentStatusLost:           {EquipmentStatusDecommissioned},
		EquipmentStatusStolen:         {EquipmentStatusDecommissioned},
		EquipmentStatusDecommissioned: {},
	}
	for from, want := range cases {
		assert.ElementsMatch(t, want, from.AllowedTargets(), "from %s", from)
	}
	assert.Len(t, EquipmentStatusAvailable.AllowedTargets(), 6)
	assert.NotContains(t, EquipmentStatusAssigned.AllowedTargets(), EquipmentStatusDecommissioned)
}

func TestEquipmentStatus_AllowedTargetsReturnsCopy(t *testing.T) {
	targets := EquipmentStatusPending.AllowedTargets()
	targets[0] = EquipmentStatusStolen
	assert.Equal(t, []EquipmentStatus{EquipmentStatusAvailable}, EquipmentStatusPending.AllowedTargets())
}

func TestEquipmentStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, EquipmentStatusAvailable.CanTransitionTo(EquipmentStatusAssigned))
	assert.True(t, EquipmentStatusAssigned.CanTransitionTo(EquipmentStatusAvailable))
	assert.False(t, EquipmentStatusLost.CanTransitionTo(EquipmentStatusAvailable))
	assert.False(t, EquipmentStatusDecommissioned.CanTransitionTo(EquipmentStatusAvailable))
	assert.False(t, EquipmentStatusPending.CanTransitionTo(EquipmentStatusAssigned))
	assert.False(t, EquipmentStatus("bogus").Valid())
	assert.True(t, EquipmentStatusDecommissioned.Terminal())
}

func TestEquipment_CheckInvariants(t *testing.T) {
	owner := int64(7)
	assert.NoError(t, (&Equipment{Status: EquipmentStatusAssigned, CurrentOwnerID: &owner}).CheckInvariants())
	assert.NoError(t, (&Equipment{Status: EquipmentStatusAvailable}).CheckInvariants())
	assert.Error(t, (&Equipment{Status: EquipmentStatusAssigned}).CheckInvariants())
	assert.Error(t, (&Equipment{Status: EquipmentStatusMaintenance, CurrentOwnerID: &owner}).CheckInvariants())
}
