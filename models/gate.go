package models

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dormstack/dormops_client/config"
	"github.com/dormstack/dormops_client/utils"
)

// IsSelectableForStart decides whether a slot may host a new inspection
// session. A slot already bound to the active session forces "continue"
// instead of a duplicate start.
func IsSelectableForStart(slot Slot, activeSession *InspectionSession) bool {
	if slot.Locked {
		return false
	}
	if slot.ResourceStatus != ResourceStatusActive {
		return false
	}
	if activeSession != nil && activeSession.SlotId == slot.SlotId {
		return false
	}
	return true
}

// CompartmentAssignment proposes room assignments for one compartment.
type CompartmentAssignment struct {
	CompartmentId string   `json:"compartmentId"`
	RoomIds       []string `json:"roomIds"`
}

// ReallocationPlan is a floor-scoped set of compartment assignments.
type ReallocationPlan struct {
	Floor       int                     `json:"floor"`
	Assignments []CompartmentAssignment `json:"assignments"`
}

// ReallocationPreview is the server's proposed plan plus per-compartment
// warnings.
type ReallocationPreview struct {
	Floor       int                              `json:"floor"`
	Assignments []CompartmentAssignment          `json:"assignments"`
	Warnings    map[string][]ReallocationWarning `json:"warnings,omitempty"`
}

// ReallocationResult aggregates an apply pass. Partial success is expected:
// each compartment is applied all-or-nothing, independently of the others.
type ReallocationResult struct {
	AffectedCompartments int
	CreatedAssignments   int
	Failed               map[string]error
}

// EvaluateReallocationPlan raises per-compartment warnings before an apply.
// Warnings do not block the apply; they are surfaced so the admin can drop
// problem compartments from the plan.
func EvaluateReallocationPlan(slots []Slot, activeSessions []InspectionSession, plan ReallocationPlan) map[string][]ReallocationWarning {
	slotById := make(map[string]Slot, len(slots))
	for _, slot := range slots {
		slotById[slot.SlotId] = slot
	}
	inspecting := make(map[string]bool, len(activeSessions))
	for _, session := range activeSessions {
		if session.Status == SessionStatusInProgress {
			inspecting[session.SlotId] = true
		}
	}

	warnings := make(map[string][]ReallocationWarning)
	for _, assignment := range plan.Assignments {
		slot, known := slotById[assignment.CompartmentId]
		var list []ReallocationWarning
		if !known || slot.ResourceStatus != ResourceStatusActive {
			list = append(list, ReallocationWarningInactiveCompartment)
		}
		if known && slot.Locked {
			list = append(list, ReallocationWarningCompartmentLocked)
		}
		if inspecting[assignment.CompartmentId] {
			list = append(list, ReallocationWarningInspectionInProgress)
		}
		if len(list) > 0 {
			warnings[assignment.CompartmentId] = list
		}
	}
	return warnings
}

// ApplyReallocationPlan applies each compartment assignment independently.
// One compartment failing does not roll back the others; the result reports
// affected compartments, created assignments, and per-compartment failures.
// Only admin actors may apply; non-admin calls fail before any network call.
func ApplyReallocationPlan(ctx context.Context, api AdminAPI, plan ReallocationPlan, logger *logrus.Logger) (ReallocationResult, error) {
	if !utils.IsAdmin(ctx) {
		return ReallocationResult{}, NewValidationError("current actor may not apply reallocations")
	}
	result := ReallocationResult{Failed: map[string]error{}}
	for _, assignment := range plan.Assignments {
		created, err := api.ApplyCompartmentAssignment(ctx, plan.Floor, assignment)
		if err != nil {
			result.Failed[assignment.CompartmentId] = err
			if logger != nil {
				config.LogError(logger, "models/gate.go", "ApplyReallocationPlan", "apply", assignment.CompartmentId, err)
			}
			continue
		}
		result.AffectedCompartments++
		result.CreatedAssignments += created
	}
	return result, nil
}
