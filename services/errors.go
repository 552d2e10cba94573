package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Lookup errors
	ErrEventNotFound    = errors.New("event not found")
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrTempleNotFound   = errors.New("temple not found")
	ErrPathigamNotFound = errors.New("pathigam not found")

	// Authorization errors
	ErrForbidden          = errors.New("not authorized to perform this action")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Membership errors
	ErrAlreadyJoined    = errors.New("already joined this event")
	ErrNotJoined        = errors.New("not a member of this event")
	ErrEventFull        = errors.New("event is full")
	ErrEventNotJoinable = errors.New("event is not open for joining")

	// Expense lifecycle errors
	ErrAlreadyApproved   = errors.New("expense already approved")
	ErrAlreadyRejected   = errors.New("expense already rejected")
	ErrAlreadyReimbursed = errors.New("expense already reimbursed")
	ErrReimbursedLocked  = errors.New("cannot modify reimbursed expense")

	ErrEmailExists = errors.New("email already registered")
	ErrValidation  = errors.New("validation failed")
)

// FieldError is one failed field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field errors; it matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// fieldErrors accumulates problems while validating one input.
type fieldErrors []FieldError

func (f *fieldErrors) add(field, format string, args ...any) {
	*f = append(*f, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrExpenseNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrTempleNotFound) ||
		errors.Is(err, ErrPathigamNotFound)
}

// IsConflict covers membership and state-machine violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyJoined) ||
		errors.Is(err, ErrNotJoined) ||
		errors.Is(err, ErrEventFull) ||
		errors.Is(err, ErrEventNotJoinable) ||
		errors.Is(err, ErrAlreadyApproved) ||
		errors.Is(err, ErrAlreadyRejected) ||
		errors.Is(err, ErrAlreadyReimbursed) ||
		errors.Is(err, ErrReimbursedLocked)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
