package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormstack/dormops_client/utils"
)

// InspectionSession is the authoritative session document as served by the
// dormitory backend. The summary counts are the single source of truth for
// how many actions of each type exist; the local draft log is supplemental.
type InspectionSession struct {
	SessionId string           `json:"sessionId" validate:"required"`
	SlotId    string           `json:"slotId" validate:"required"`
	SlotIndex int              `json:"slotIndex"`
	FloorNo   int              `json:"floorNo"`
	Status    SessionStatus    `json:"status" validate:"required"`
	StartedBy string           `json:"startedBy"`
	StartedAt time.Time        `json:"startedAt"`
	EndedAt   *time.Time       `json:"endedAt,omitempty"`
	Items     []InspectionItem `json:"items"`
	Summary   []ActionSummary  `json:"summary"`
	Actions   []ActionRecord   `json:"actions"`
	Notes     *string          `json:"notes,omitempty"`
}

// InspectionItem is one physical unit to inspect.
type InspectionItem struct {
	UnitId                 string `json:"unitId" validate:"required"`
	BundleId               string `json:"bundleId,omitempty"`
	BundleName             string `json:"bundleName,omitempty"`
	BundleLabel            string `json:"bundleLabel,omitempty"`
	Name                   string `json:"name,omitempty"`
	ExpiryDate             string `json:"expiryDate,omitempty"`
	SeqNo                  int    `json:"seqNo,omitempty"`
	UpdatedAfterInspection bool   `json:"updatedAfterInspection,omitempty"`
}

// ActionSummary is one per-action-type authoritative count.
type ActionSummary struct {
	Action ActionType `json:"action" validate:"required"`
	Count  int        `json:"count"`
}

// ActionRecord is a server-confirmed action. ActionId is assigned by the
// server and is 0 only on payloads that were never confirmed.
type ActionRecord struct {
	ActionId      int                  `json:"actionId" validate:"required"`
	ActionType    ActionType           `json:"actionType" validate:"required"`
	ItemId        *string              `json:"itemId,omitempty"`
	BundleId      *string              `json:"bundleId,omitempty"`
	Note          *string              `json:"note,omitempty"`
	CorrelationId string               `json:"correlationId,omitempty"`
	RecordedAt    time.Time            `json:"recordedAt"`
	RecordedBy    *string              `json:"recordedBy,omitempty"`
	Items         []ActionItemSnapshot `json:"items,omitempty"`
	Penalties     []PenaltyRecord      `json:"penalties,omitempty"`
}

// ActionItemSnapshot freezes the item's display fields at action time; the
// live item may be edited or removed afterwards.
type ActionItemSnapshot struct {
	Id               int     `json:"id"`
	FridgeItemId     *string `json:"fridgeItemId,omitempty"`
	SnapshotName     *string `json:"snapshotName,omitempty"`
	SnapshotExpires  *string `json:"snapshotExpiresOn,omitempty"`
	QuantityAtAction *int    `json:"quantityAtAction,omitempty"`
	CorrelationId    *string `json:"correlationId,omitempty"`
}

// PenaltyRecord is attached read-only to an ActionRecord. Points may be
// fractional (half-point demerits exist in the house rules).
type PenaltyRecord struct {
	Id            string          `json:"id"`
	Points        decimal.Decimal `json:"points"`
	Reason        *string         `json:"reason,omitempty"`
	IssuedAt      time.Time       `json:"issuedAt"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
	CorrelationId *string         `json:"correlationId,omitempty"`
}

// ActionRequest is one entry of the create-actions batch.
type ActionRequest struct {
	Action   ActionType `json:"action" validate:"required"`
	ItemId   *string    `json:"itemId,omitempty"`
	BundleId *string    `json:"bundleId,omitempty"`
	Note     *string    `json:"note,omitempty"`
}

// Normalize validates a session payload received from the server before any
// of its fields are trusted. Enum narrowing already happened during JSON
// decoding; this checks structural requirements.
func (s *InspectionSession) Normalize() error {
	if s == nil {
		return NewValidationError("session payload is empty")
	}
	if err := utils.ValidateStruct(s); err != nil {
		return NewValidationError("invalid session payload: " + err.Error())
	}
	if s.Items == nil {
		s.Items = []InspectionItem{}
	}
	if s.Summary == nil {
		s.Summary = []ActionSummary{}
	}
	if s.Actions == nil {
		s.Actions = []ActionRecord{}
	}
	return nil
}

// SummaryCount returns the authoritative count for one action type.
func (s *InspectionSession) SummaryCount(t ActionType) int {
	for _, entry := range s.Summary {
		if entry.Action == t {
			return entry.Count
		}
	}
	return 0
}

// TotalActionCount sums the authoritative summary.
func (s *InspectionSession) TotalActionCount() int {
	total := 0
	for _, entry := range s.Summary {
		total += entry.Count
	}
	return total
}

// ConfirmedActionIds returns the set of actionIds present on the session.
func (s *InspectionSession) ConfirmedActionIds() map[int]bool {
	ids := make(map[int]bool, len(s.Actions))
	for _, action := range s.Actions {
		ids[action.ActionId] = true
	}
	return ids
}

// NewestActionNotIn picks the action created by the most recent mutation:
// the one whose id is absent from the pre-call set, falling back to the last
// action on the document.
func (s *InspectionSession) NewestActionNotIn(previous map[int]bool) *ActionRecord {
	for i := range s.Actions {
		if !previous[s.Actions[i].ActionId] {
			return &s.Actions[i]
		}
	}
	if len(s.Actions) == 0 {
		return nil
	}
	return &s.Actions[len(s.Actions)-1]
}

// SummaryMetrics is the rollup shown before submitting.
type SummaryMetrics struct {
	PassCount                 int
	WarnCount                 int
	RegisteredDisposalCount   int
	UnregisteredDisposalCount int
	DisposalCount             int
	TotalActions              int
}

func (s *InspectionSession) Metrics() SummaryMetrics {
	m := SummaryMetrics{
		PassCount:                 s.SummaryCount(ActionTypePass),
		RegisteredDisposalCount:   s.SummaryCount(ActionTypeDisposeExpired),
		UnregisteredDisposalCount: s.SummaryCount(ActionTypeUnregisteredDispose),
		TotalActions:              s.TotalActionCount(),
	}
	m.WarnCount = s.SummaryCount(ActionTypeWarnInfoMismatch) + s.SummaryCount(ActionTypeWarnStoragePoor)
	m.DisposalCount = m.RegisteredDisposalCount + m.UnregisteredDisposalCount
	return m
}

// InspectionSchedule is the read-only planned-inspection surface.
type InspectionSchedule struct {
	ScheduleId          string         `json:"scheduleId" validate:"required"`
	ScheduledAt         time.Time      `json:"scheduledAt"`
	Title               *string        `json:"title,omitempty"`
	Notes               *string        `json:"notes,omitempty"`
	Status              ScheduleStatus `json:"status"`
	CompletedAt         *time.Time     `json:"completedAt,omitempty"`
	InspectionSessionId *string        `json:"inspectionSessionId,omitempty"`
	FridgeCompartmentId *string        `json:"fridgeCompartmentId,omitempty"`
	SlotIndex           *int           `json:"slotIndex,omitempty"`
	FloorNo             *int           `json:"floorNo,omitempty"`
}
