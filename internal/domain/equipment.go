package domain

import (
	"fmt"
	"slices"
	"time"
)

type EquipmentStatus string

const (
	EquipmentStatusPending        EquipmentStatus = "pending"
	EquipmentStatusAvailable      EquipmentStatus = "available"
	EquipmentStatusAssigned       EquipmentStatus = "assigned"
	EquipmentStatusMaintenance    EquipmentStatus = "maintenance"
	EquipmentStatusBroken         EquipmentStatus = "broken"
	EquipmentStatusLost           EquipmentStatus = "lost"
	EquipmentStatusStolen         EquipmentStatus = "stolen"
	EquipmentStatusDecommissioned EquipmentStatus = "decommissioned"
)

// equipmentTransitions lists the allowed targets for every status. lost and
// stolen have no way back.
var equipmentTransitions = map[EquipmentStatus][]EquipmentStatus{
	EquipmentStatusPending: {EquipmentStatusAvailable},
	EquipmentStatusAvailable: {
		EquipmentStatusAssigned, EquipmentStatusMaintenance, EquipmentStatusBroken,
		EquipmentStatusLost, EquipmentStatusStolen, EquipmentStatusDecommissioned,
	},
	EquipmentStatusAssigned: {
		EquipmentStatusAvailable, EquipmentStatusMaintenance, EquipmentStatusBroken,
		EquipmentStatusLost, EquipmentStatusStolen,
	},
	EquipmentStatusMaintenance:    {EquipmentStatusAvailable, EquipmentStatusBroken, EquipmentStatusDecommissioned},
	EquipmentStatusBroken:         {EquipmentStatusMaintenance, EquipmentStatusDecommissioned},
	EquipmentStatusLost:           {EquipmentStatusDecommissioned},
	EquipmentStatusStolen:         {EquipmentStatusDecommissioned},
	EquipmentStatusDecommissioned: {},
}

func (s EquipmentStatus) Valid() bool {
	_, ok := equipmentTransitions[s]
	return ok
}

// AllowedTargets returns a copy of the statuses reachable from s.
func (s EquipmentStatus) AllowedTargets() []EquipmentStatus {
	return slices.Clone(equipmentTransitions[s])
}

func (s EquipmentStatus) CanTransitionTo(target EquipmentStatus) bool {
	return slices.Contains(equipmentTransitions[s], target)
}

func (s EquipmentStatus) Terminal() bool {
	return s == EquipmentStatusDecommissioned
}

type Equipment struct {
	ID             int64           `json:"id"`
	SerialNumber   string          `json:"serial_number"`
	Category       string          `json:"category"`
	Status         EquipmentStatus `json:"status"`
	CurrentOwnerID *int64          `json:"current_owner_id,omitempty"`
	Condition      *string         `json:"condition,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (e *Equipment) Clone() *Equipment {
	if e == nil {
		return nil
	}
	c := *e
	c.CurrentOwnerID = clonePtr(e.CurrentOwnerID)
	c.Condition = clonePtr(e.Condition)
	return &c
}

func (e *Equipment) CheckInvariants() error {
	if (e.CurrentOwnerID != nil) != (e.Status == EquipmentStatusAssigned) {
		return fmt.Errorf("equipment %d: owner does not match status %s", e.ID, e.Status)
	}
	return nil
}
