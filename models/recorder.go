package models

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dormstack/dormops_client/config"
	"github.com/dormstack/dormops_client/utils"
)

var tracer = otel.Tracer("dormops-client")

// Recorder drives the user-initiated mutations of an inspection session:
// record an action, undo one, submit, cancel. Every mutation replaces the
// session document wholesale with the server's response before touching the
// local draft log. Failures are never retried automatically.
type Recorder struct {
	API    SessionAPI
	Store  *SessionStore
	Logger *logrus.Logger
}

func NewRecorder(api SessionAPI, store *SessionStore, logger *logrus.Logger) *Recorder {
	return &Recorder{API: api, Store: store, Logger: logger}
}

// StartSession opens a session on the slot after the local gate admits it,
// then binds the store to the new session.
func (r *Recorder) StartSession(ctx context.Context, slot Slot, scheduleId string) (*InspectionSession, error) {
	if !utils.CanInspect(ctx) {
		return nil, NewValidationError("current actor may not run inspections")
	}
	if !IsSelectableForStart(slot, r.Store.Session()) {
		return nil, &ConflictError{Msg: "slot " + slot.SlotId + " is not selectable for a new session"}
	}

	session, err := r.API.StartSession(ctx, slot.SlotId, scheduleId)
	if err != nil {
		return nil, err
	}
	if err := r.Store.BeginSession(ctx, session); err != nil {
		// Hydration failure is not fatal; the session itself is bound.
		config.LogError(r.Logger, "models/recorder.go", "StartSession", "hydrate", session.SessionId, err)
	}
	return session, nil
}

// OpenSession binds an already-fetched session document (resume flow).
func (r *Recorder) OpenSession(ctx context.Context, session *InspectionSession) error {
	if err := session.Normalize(); err != nil {
		return err
	}
	return r.Store.BeginSession(ctx, session)
}

// SubmitAction records one action against an item or bundle. On success the
// session state is replaced with the server response, the skip-once
// reconcile latch is armed, and an enriched local draft entry is appended.
// On remote failure nothing changes locally.
//
// The returned error may be a *PersistenceError even though the action was
// confirmed remotely: the draft write failed, and the next reconciliation
// pass will restore the row as a synthetic entry.
func (r *Recorder) SubmitAction(ctx context.Context, actionType ActionType, item *InspectionItem, note string) (*DraftEntry, error) {
	ctx, span := tracer.Start(ctx, "recorder.SubmitAction")
	defer span.End()
	span.SetAttributes(attribute.String("action_type", actionType.String()))

	session := r.Store.Session()
	if session == nil {
		return nil, NewValidationError("no active session")
	}
	if session.Status != SessionStatusInProgress {
		return nil, NewValidationError("session is " + session.Status.String() + "; actions are only recordable while in progress")
	}
	if !actionType.Valid() {
		return nil, NewValidationError("invalid action type")
	}

	request := ActionRequest{Action: actionType}
	if item != nil {
		request.ItemId = &item.UnitId
		if item.BundleId != "" {
			bundleId := item.BundleId
			request.BundleId = &bundleId
		}
	}
	if note != "" {
		request.Note = &note
	}

	previousIds := session.ConfirmedActionIds()
	response, err := r.API.CreateActions(ctx, session.SessionId, []ActionRequest{request})
	if err != nil {
		return nil, err
	}

	newAction := response.NewestActionNotIn(previousIds)
	r.Store.ReplaceSession(response)
	r.Store.SetSkipNextReconcile()

	entry := buildDraftEntry(actionType, item, note, newAction)
	if err := r.Store.AppendEntry(ctx, entry); err != nil {
		return &entry, err
	}
	return &entry, nil
}

// UndoAction reverts a previously confirmed action. Entries with no bound
// action id (synthetic sync rows, or local rows whose confirmation is
// pending) are rejected and the draft list is left untouched.
func (r *Recorder) UndoAction(ctx context.Context, entry DraftEntry) error {
	ctx, span := tracer.Start(ctx, "recorder.UndoAction")
	defer span.End()

	session := r.Store.Session()
	if session == nil {
		return NewValidationError("no active session")
	}
	if !entry.Revertible() {
		return &NotRevertibleError{EntryId: entry.Id}
	}
	span.SetAttributes(attribute.Int("action_id", entry.ActionRecordId))

	response, err := r.API.DeleteAction(ctx, session.SessionId, entry.ActionRecordId)
	if err != nil {
		return err
	}

	r.Store.ReplaceSession(response)
	r.Store.SetSkipNextReconcile()
	return r.Store.RemoveEntry(ctx, entry.Id)
}

// SubmitSession finalizes the session. The remaining-items guard pre-empts
// the server round-trip entirely: submit with unprocessed items issues zero
// network calls.
func (r *Recorder) SubmitSession(ctx context.Context, notes string) (*InspectionSession, error) {
	ctx, span := tracer.Start(ctx, "recorder.SubmitSession")
	defer span.End()

	session := r.Store.Session()
	if session == nil {
		return nil, NewValidationError("no active session")
	}
	if session.Status != SessionStatusInProgress {
		return nil, NewValidationError("session is already " + session.Status.String())
	}
	if remaining := r.Store.RemainingItemCount(); remaining > 0 {
		return nil, NewValidationError(strconv.Itoa(remaining) + " item(s) have no recorded action; submit is not allowed")
	}

	response, err := r.API.SubmitSession(ctx, session.SessionId, notes)
	if err != nil {
		return nil, err
	}
	r.Store.ReplaceSession(response)
	r.Store.EndSession(ctx, true)
	return response, nil
}

// CancelSession discards the session remotely and drops its local draft.
func (r *Recorder) CancelSession(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "recorder.CancelSession")
	defer span.End()

	session := r.Store.Session()
	if session == nil {
		return NewValidationError("no active session")
	}
	if err := r.API.CancelSession(ctx, session.SessionId); err != nil {
		return err
	}
	r.Store.EndSession(ctx, true)
	return nil
}

func buildDraftEntry(actionType ActionType, item *InspectionItem, note string, action *ActionRecord) DraftEntry {
	entry := DraftEntry{
		Id:         NewDraftEntryId(),
		Time:       time.Now().UnixMilli(),
		ActionType: actionType,
		Note:       note,
		Origin:     DraftOriginLocal,
	}
	if item != nil {
		entry.ItemId = item.UnitId
		entry.BundleId = item.BundleId
		entry.BundleName = item.BundleName
		entry.BundleLabel = item.BundleLabel
		entry.Name = item.Name
		entry.ExpiryDate = item.ExpiryDate
	}
	if action != nil {
		entry.ActionRecordId = action.ActionId
		entry.CorrelationId = action.CorrelationId
		entry.PenaltyCount = len(action.Penalties)
		if !action.RecordedAt.IsZero() {
			entry.RecordedAt = action.RecordedAt.Format(time.RFC3339)
		}
	}
	return entry
}
