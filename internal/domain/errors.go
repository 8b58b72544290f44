package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// CorruptSnapshotError means a stored snapshot blob failed to decode.
// Distinct from NotFoundError so operators can tell "never existed"
// from "history damaged".
type CorruptSnapshotError struct {
	Reason string
}

func (e CorruptSnapshotError) Error() string {
	if e.Reason == "" {
		return "corrupt snapshot"
	}
	return fmt.Sprintf("corrupt snapshot: %s", e.Reason)
}

// Is enables errors.Is matching on CorruptSnapshotError.
func (e CorruptSnapshotError) Is(target error) bool {
	_, ok := target.(CorruptSnapshotError)
	if ok {
		return true
	}
	_, ok = target.(*CorruptSnapshotError)
	return ok
}

// ErrCorruptSnapshot is the sentinel error for undecodable snapshots.
var ErrCorruptSnapshot = CorruptSnapshotError{}

// ConflictError means a write raced with another writer, e.g. two
// transactions assigning the same version number.
type ConflictError struct {
	Resource string
}

func (e ConflictError) Error() string {
	if e.Resource == "" {
		return "conflict"
	}
	return fmt.Sprintf("conflict on %s", e.Resource)
}

// Is enables errors.Is matching on ConflictError.
func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// ErrConflict is the sentinel error for write races.
var ErrConflict = ConflictError{}

// ValidationError represents malformed mutation input, rejected before
// any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is enables errors.Is matching on ValidationError.
func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

// ErrValidation is the sentinel error for invalid input.
var ErrValidation = ValidationError{}
