// Package apperr holds the error taxonomy surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is invalid or missing input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AuthorizationError is an actor attempting something its role or ownership forbids.
type AuthorizationError struct {
	ActorID int64
	Action  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %d is not allowed to %s", e.ActorID, e.Action)
}

func Forbidden(actorID int64, action string) error {
	return &AuthorizationError{ActorID: actorID, Action: action}
}

// PreconditionError lists every unmet requirement so the caller can render a checklist.
type PreconditionError struct {
	Message string
	Reasons []string
}

func (e *PreconditionError) Error() string {
	if len(e.Reasons) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Reasons, ", ")
}

func Precondition(message string, reasons ...string) error {
	return &PreconditionError{Message: message, Reasons: reasons}
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ProcessorError is a failure reported by the payment processor.
type ProcessorError struct {
	Code string
	// Retryable means the user can fix it (re-authenticate the card) and try again.
	Retryable bool
	Message   string
	Err       error
}

func (e *ProcessorError) Error() string {
	return e.Message
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// Is matches on Code so callers can use errors.Is with the sentinels below.
func (e *ProcessorError) Is(target error) bool {
	t, ok := target.(*ProcessorError)
	return ok && t.Code == e.Code
}

var (
	ErrAuthenticationRequired = &ProcessorError{
		Code:      "authentication_required",
		Retryable: true,
		Message:   "the card requires authentication; ask the homeowner to re-authenticate it and try again",
	}
	ErrChargeFailed = &ProcessorError{
		Code:    "charge_failed",
		Message: "the escrow charge could not be completed",
	}
	ErrProcessorUnavailable = &ProcessorError{
		Code:    "processor_unavailable",
		Message: "the payment processor could not be reached",
	}
)

// AuthenticationRequired wraps cause as a retryable authentication error.
func AuthenticationRequired(cause error) error {
	e := *ErrAuthenticationRequired
	e.Err = cause
	return &e
}

// ChargeFailed wraps cause as a generic charge failure.
func ChargeFailed(cause error) error {
	e := *ErrChargeFailed
	e.Err = cause
	return &e
}

// ProcessorUnavailable wraps a processor call that failed outside of a charge,
// or a charge that was never sent.
func ProcessorUnavailable(cause error) error {
	e := *ErrProcessorUnavailable
	e.Err = cause
	return &e
}

// Reasons returns the itemized reasons of a PreconditionError anywhere in err's chain.
func Reasons(err error) []string {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Reasons
	}
	return nil
}
