package models

import "fmt"

// The error taxonomy mirrors how the backend's failures surface on a kiosk:
// every error here is recoverable by explicit retry or a full reload, never
// fatal to the process.

// ValidationError is pre-empted client-side and never round-trips.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

// NotFoundError typically means another actor canceled the session or deleted
// the action concurrently.
type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	if e.Id == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Id)
}

// ConflictError means slot capacity or lock state changed between read and
// write.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// TransientServiceError is surfaced with a retry suggestion and is never
// retried automatically.
type TransientServiceError struct {
	Msg string
	Err error
}

func (e *TransientServiceError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// PersistenceError is a local draft store write failure. It never blocks
// in-memory operation; the session stays fully usable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "draft persistence failed (" + e.Op + "): " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotRevertibleError rejects undo on entries with no confirmed action id:
// synthetic sync-origin rows, or local rows whose confirmation is pending.
type NotRevertibleError struct {
	EntryId string
}

func (e *NotRevertibleError) Error() string {
	return "entry " + e.EntryId + " is not revertible: no confirmed action id"
}
