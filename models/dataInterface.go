package models

import "context"

// SessionAPI is the consumed backend contract for the inspection workflow.
// The HTTP implementation lives in the apiclient package; tests and fixture
// mode substitute their own.
type SessionAPI interface {
	// FetchSession returns the session by id.
	FetchSession(ctx context.Context, sessionId string) (*InspectionSession, error)
	// FetchActiveSession returns the in-progress session for the current
	// actor, or nil when none exists.
	FetchActiveSession(ctx context.Context) (*InspectionSession, error)
	// StartSession opens a new session on a slot. scheduleId may be empty.
	StartSession(ctx context.Context, slotId string, scheduleId string) (*InspectionSession, error)
	// CreateActions records a batch of actions (a batch of one in practice)
	// and returns the updated session.
	CreateActions(ctx context.Context, sessionId string, actions []ActionRequest) (*InspectionSession, error)
	// DeleteAction reverts one confirmed action and returns the updated
	// session.
	DeleteAction(ctx context.Context, sessionId string, actionId int) (*InspectionSession, error)
	// SubmitSession finalizes the session. The server rejects it with no
	// state change if any item lacks a recorded action.
	SubmitSession(ctx context.Context, sessionId string, notes string) (*InspectionSession, error)
	// CancelSession discards the session server-side.
	CancelSession(ctx context.Context, sessionId string) error
	// ListSlots lists compartments, optionally filtered to active-only.
	ListSlots(ctx context.Context, activeOnly bool) ([]Slot, error)
}

// ScheduleAPI is the read-only planned-inspection surface.
type ScheduleAPI interface {
	ListSchedules(ctx context.Context, status ScheduleStatus, limit int) ([]InspectionSchedule, error)
	NextSchedule(ctx context.Context) (*InspectionSchedule, error)
}

// AdminAPI is the admin-side reallocation contract. Apply is called once per
// compartment so failures stay independent across compartments.
type AdminAPI interface {
	PreviewReallocation(ctx context.Context, floor int) (*ReallocationPreview, error)
	ApplyCompartmentAssignment(ctx context.Context, floor int, assignment CompartmentAssignment) (int, error)
}
