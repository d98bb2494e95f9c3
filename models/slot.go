package models

// Slot is an addressable physical storage compartment.
type Slot struct {
	SlotId         string         `json:"slotId" validate:"required"`
	SlotIndex      int            `json:"slotIndex"`
	SlotLetter     string         `json:"slotLetter,omitempty"`
	FloorNo        int            `json:"floorNo"`
	ResourceStatus ResourceStatus `json:"resourceStatus" validate:"required"`
	Locked         bool           `json:"locked"`
	LockedUntil    *string        `json:"lockedUntil,omitempty"`
	Capacity       *int           `json:"capacity,omitempty"`
	OccupiedCount  *int           `json:"occupiedCount,omitempty"`
	DisplayName    *string        `json:"displayName,omitempty"`
}

// HasFreeCapacity reports whether the compartment can take another bundle.
// Slots without a declared capacity are treated as unbounded.
func (s Slot) HasFreeCapacity() bool {
	if s.Capacity == nil {
		return true
	}
	occupied := 0
	if s.OccupiedCount != nil {
		occupied = *s.OccupiedCount
	}
	return occupied < *s.Capacity
}
