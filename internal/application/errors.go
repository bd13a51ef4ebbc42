package application

import "errors"

var (
	// ErrInvalidInput is returned when a field is blank or out of its allowed range.
	ErrInvalidInput = errors.New("application: invalid input")
	// ErrInvalidTimeSlot is returned when a day or slot lies outside the weekly grid.
	ErrInvalidTimeSlot = errors.New("application: invalid time slot")
	// ErrNotFound is returned when a resource, user, or reservation key is unknown.
	ErrNotFound = errors.New("application: not found")
	// ErrDuplicateIdentity is returned when a resource key or username is already taken.
	ErrDuplicateIdentity = errors.New("application: duplicate identity")
	// ErrConflict is returned when the requested slot already holds an active reservation.
	ErrConflict = errors.New("application: slot already booked")
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrWrongResourceType is returned when a type-specific edit targets the other variant.
	ErrWrongResourceType = errors.New("application: wrong resource type")
	// ErrHasActiveBookings is returned when removing a resource that still has active reservations.
	ErrHasActiveBookings = errors.New("application: resource has active bookings")
)

// ValidationError captures field level validation issues that callers can surface to users.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 1 {
		for field, msg := range v.FieldErrors {
			return "validation failed: " + field + ": " + msg
		}
	}
	return "validation failed"
}

// Is reports whether target is ErrInvalidInput.
func (v *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func invalidField(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}
