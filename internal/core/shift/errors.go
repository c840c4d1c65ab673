package shift

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrConflict means the active slot is not in the state the caller assumed.
	ErrConflict = errors.New("conflict")
	// ErrNotFound means the referenced shift does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyEnded means the shift exists but is no longer active.
	ErrAlreadyEnded = errors.New("shift already ended")
	// ErrValidation means a request was rejected before any state changed.
	ErrValidation = errors.New("validation failed")
	// ErrNoActiveShift is surfaced by linkage as a result code, never returned.
	ErrNoActiveShift = errors.New("no active shift")
	// ErrPartialFailure means a handover committed only part of its steps.
	ErrPartialFailure = errors.New("handover partially applied")
)

// ValidationError names the offending field of a rejected request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Stages reported by PartialFailureError.
const (
	StageStartSuccessor = "start_successor"
	StageRecordChange   = "record_change"
)

// PartialFailureError reports a handover whose outgoing shift is ended but
// whose successor or audit record could not be committed.
type PartialFailureError struct {
	PreviousShiftID string
	ClosingCash     decimal.Decimal
	Stage           string
	Err             error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("handover of %s partially applied (stage %s, closing cash %s): %v",
		e.PreviousShiftID, e.Stage, e.ClosingCash.String(), e.Err)
}

// Is lets errors.Is match ErrPartialFailure.
func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// NotFound returns an ErrNotFound wrapped with the entity and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// Conflict returns an ErrConflict wrapped with a reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
