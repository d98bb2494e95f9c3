package models

import (
	"encoding/json"
	"errors"
)

type ActionType string

const (
	ActionTypePass                ActionType = "PASS"
	ActionTypeDisposeExpired      ActionType = "DISPOSE_EXPIRED"
	ActionTypeUnregisteredDispose ActionType = "UNREGISTERED_DISPOSE"
	ActionTypeWarnInfoMismatch    ActionType = "WARN_INFO_MISMATCH"
	ActionTypeWarnStoragePoor     ActionType = "WARN_STORAGE_POOR"
)

func AllActionTypes() []ActionType {
	return []ActionType{
		ActionTypePass,
		ActionTypeDisposeExpired,
		ActionTypeUnregisteredDispose,
		ActionTypeWarnInfoMismatch,
		ActionTypeWarnStoragePoor,
	}
}

func (t ActionType) Valid() bool {
	switch t {
	case ActionTypePass, ActionTypeDisposeExpired, ActionTypeUnregisteredDispose,
		ActionTypeWarnInfoMismatch, ActionTypeWarnStoragePoor:
		return true
	}
	return false
}

func (t ActionType) String() string { return string(t) }

// The action enum is closed; anything the server sends outside it is rejected
// at the boundary instead of being carried around as a loose string.
func (t *ActionType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("action type must be string")
	}
	parsed := ActionType(str)
	if !parsed.Valid() {
		return errors.New("invalid action type: " + str)
	}
	*t = parsed
	return nil
}

// IsDisposal reports whether the action removes the item from the fridge.
func (t ActionType) IsDisposal() bool {
	return t == ActionTypeDisposeExpired || t == ActionTypeUnregisteredDispose
}

// IsWarning reports whether the action issues a warning to the owner.
func (t ActionType) IsWarning() bool {
	return t == ActionTypeWarnInfoMismatch || t == ActionTypeWarnStoragePoor
}

type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
	SessionStatusCanceled   SessionStatus = "CANCELED"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusInProgress, SessionStatusSubmitted, SessionStatusCanceled:
		return true
	}
	return false
}

func (s SessionStatus) String() string { return string(s) }

// Terminal statuses admit no further transitions visible to this client.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusSubmitted || s == SessionStatusCanceled
}

// Older server builds emit the British spelling for canceled sessions.
func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("session status must be string")
	}
	if str == "CANCELLED" {
		str = string(SessionStatusCanceled)
	}
	parsed := SessionStatus(str)
	if !parsed.Valid() {
		return errors.New("invalid session status: " + str)
	}
	*s = parsed
	return nil
}

type ResourceStatus string

const (
	ResourceStatusActive    ResourceStatus = "ACTIVE"
	ResourceStatusSuspended ResourceStatus = "SUSPENDED"
	ResourceStatusReported  ResourceStatus = "REPORTED"
	ResourceStatusRetired   ResourceStatus = "RETIRED"
)

func (s ResourceStatus) Valid() bool {
	switch s {
	case ResourceStatusActive, ResourceStatusSuspended, ResourceStatusReported, ResourceStatusRetired:
		return true
	}
	return false
}

func (s *ResourceStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("resource status must be string")
	}
	parsed := ResourceStatus(str)
	if !parsed.Valid() {
		return errors.New("invalid resource status: " + str)
	}
	*s = parsed
	return nil
}

type DraftOrigin string

const (
	// DraftOriginLocal marks entries recorded on this terminal.
	DraftOriginLocal DraftOrigin = "local"
	// DraftOriginSync marks entries synthesized during reconciliation against
	// the authoritative summary; they carry no item linkage.
	DraftOriginSync DraftOrigin = "sync"
)

type ReallocationWarning string

const (
	ReallocationWarningInactiveCompartment  ReallocationWarning = "INACTIVE_COMPARTMENT"
	ReallocationWarningCompartmentLocked    ReallocationWarning = "COMPARTMENT_LOCKED"
	ReallocationWarningInspectionInProgress ReallocationWarning = "INSPECTION_IN_PROGRESS"
)

type ScheduleStatus string

const (
	ScheduleStatusScheduled ScheduleStatus = "SCHEDULED"
	ScheduleStatusCompleted ScheduleStatus = "COMPLETED"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
)
