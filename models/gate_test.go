package models

import (
	"context"
	"errors"
	"testing"

	"github.com/dormstack/dormops_client/config"
	"github.com/dormstack/dormops_client/utils"
)

func TestIsSelectableForStart(t *testing.T) {
	active := Slot{SlotId: "slot-1", ResourceStatus: ResourceStatusActive}

	if !IsSelectableForStart(active, nil) {
		t.Fatal("active unlocked slot must be selectable")
	}
	if IsSelectableForStart(Slot{SlotId: "slot-1", ResourceStatus: ResourceStatusActive, Locked: true}, nil) {
		t.Fatal("locked slot selectable")
	}
	for _, status := range []ResourceStatus{ResourceStatusSuspended, ResourceStatusReported, ResourceStatusRetired} {
		if IsSelectableForStart(Slot{SlotId: "slot-1", ResourceStatus: status}, nil) {
			t.Fatalf("%s slot selectable", status)
		}
	}

	// The slot bound to the active session forces "continue", not a new
	// start; a different slot stays selectable.
	current := inProgressSession("sess-1")
	current.SlotId = "slot-1"
	if IsSelectableForStart(active, current) {
		t.Fatal("slot with active session selectable")
	}
	other := Slot{SlotId: "slot-2", ResourceStatus: ResourceStatusActive}
	if !IsSelectableForStart(other, current) {
		t.Fatal("unrelated slot blocked by active session")
	}
}

func TestEvaluateReallocationPlanWarnings(t *testing.T) {
	slots := []Slot{
		{SlotId: "slot-1", ResourceStatus: ResourceStatusActive},
		{SlotId: "slot-2", ResourceStatus: ResourceStatusSuspended},
		{SlotId: "slot-3", ResourceStatus: ResourceStatusActive, Locked: true},
	}
	busy := inProgressSession("sess-1")
	busy.SlotId = "slot-1"

	plan := ReallocationPlan{
		Floor: 3,
		Assignments: []CompartmentAssignment{
			{CompartmentId: "slot-1", RoomIds: []string{"room-1"}},
			{CompartmentId: "slot-2", RoomIds: []string{"room-2"}},
			{CompartmentId: "slot-3", RoomIds: []string{"room-3"}},
			{CompartmentId: "slot-9", RoomIds: []string{"room-4"}},
		},
	}

	warnings := EvaluateReallocationPlan(slots, []InspectionSession{*busy}, plan)
	if got := warnings["slot-1"]; len(got) != 1 || got[0] != ReallocationWarningInspectionInProgress {
		t.Fatalf("slot-1 warnings: %v", got)
	}
	if got := warnings["slot-2"]; len(got) != 1 || got[0] != ReallocationWarningInactiveCompartment {
		t.Fatalf("slot-2 warnings: %v", got)
	}
	if got := warnings["slot-3"]; len(got) != 1 || got[0] != ReallocationWarningCompartmentLocked {
		t.Fatalf("slot-3 warnings: %v", got)
	}
	// Unknown compartments warn as inactive.
	if got := warnings["slot-9"]; len(got) != 1 || got[0] != ReallocationWarningInactiveCompartment {
		t.Fatalf("slot-9 warnings: %v", got)
	}
}

// flakyAdminAPI fails one named compartment and applies the rest.
type flakyAdminAPI struct {
	failCompartment string
	applied         []string
}

func (f *flakyAdminAPI) PreviewReallocation(ctx context.Context, floor int) (*ReallocationPreview, error) {
	return nil, errors.New("not used")
}

func (f *flakyAdminAPI) ApplyCompartmentAssignment(ctx context.Context, floor int, assignment CompartmentAssignment) (int, error) {
	if assignment.CompartmentId == f.failCompartment {
		return 0, &ConflictError{Msg: "compartment is locked"}
	}
	f.applied = append(f.applied, assignment.CompartmentId)
	return len(assignment.RoomIds), nil
}

func TestApplyReallocationPlanIsolatesFailures(t *testing.T) {
	api := &flakyAdminAPI{failCompartment: "slot-2"}
	plan := ReallocationPlan{
		Floor: 3,
		Assignments: []CompartmentAssignment{
			{CompartmentId: "slot-1", RoomIds: []string{"room-1", "room-2"}},
			{CompartmentId: "slot-2", RoomIds: []string{"room-3"}},
			{CompartmentId: "slot-3", RoomIds: []string{"room-4"}},
		},
	}

	ctx := utils.SetIsAdminInContext(context.Background(), true)
	result, err := ApplyReallocationPlan(ctx, api, plan, config.GetLogger())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.AffectedCompartments != 2 {
		t.Fatalf("expected 2 affected compartments, got %d", result.AffectedCompartments)
	}
	if result.CreatedAssignments != 3 {
		t.Fatalf("expected 3 created assignments, got %d", result.CreatedAssignments)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("expected 1 failure, got %v", result.Failed)
	}
	var conflict *ConflictError
	if !errors.As(result.Failed["slot-2"], &conflict) {
		t.Fatalf("failure cause lost: %v", result.Failed["slot-2"])
	}
	// slot-3 applied even though slot-2 failed before it.
	if len(api.applied) != 2 || api.applied[1] != "slot-3" {
		t.Fatalf("later compartments skipped after a failure: %v", api.applied)
	}
}

func TestApplyReallocationPlanRequiresAdmin(t *testing.T) {
	api := &flakyAdminAPI{}
	plan := ReallocationPlan{
		Floor:       3,
		Assignments: []CompartmentAssignment{{CompartmentId: "slot-1", RoomIds: []string{"room-1"}}},
	}

	ctx := utils.SetActorRolesInContext(context.Background(), []string{utils.RoleFloorManager})
	_, err := ApplyReallocationPlan(ctx, api, plan, config.GetLogger())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(api.applied) != 0 {
		t.Fatalf("non-admin apply reached the backend: %v", api.applied)
	}
}
