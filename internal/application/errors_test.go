package application

import (
	"errors"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	single := &ValidationError{FieldErrors: map[string]string{"capacity": "capacity must be positive"}}
	if got := single.Error(); got != "validation failed: capacity: capacity must be positive" {
		t.Fatalf("expected field detail for single error, got %q", got)
	}

	multi := &ValidationError{FieldErrors: map[string]string{"id": "id is required", "name": "name is required"}}
	if got := multi.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for multiple errors, got %q", got)
	}
}

func TestValidationError_MatchesInvalidInput(t *testing.T) {
	t.Parallel()

	var err error = invalidField("username", "username is required")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ValidationError to match ErrInvalidInput")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ValidationError not to match ErrNotFound")
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}
