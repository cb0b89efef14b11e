package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateGateEntry checks the fields a lookup cannot proceed without.
// A missing vehicle number is not a validation failure; reconciliation
// reports it as a mismatch.
func ValidateGateEntry(r *GateEntryRequest) error {
	var ve ValidationError

	if strings.TrimSpace(r.PermitNumber) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "permitNumber", Message: "is required"})
	} else if len(r.PermitNumber) > 64 {
		ve.Errors = append(ve.Errors, FieldError{Field: "permitNumber", Message: "must be 64 characters or fewer"})
	}

	if r.GateType == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "gateType", Message: "is required"})
	} else if !r.GateType.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "gateType",
			Message: fmt.Sprintf("invalid value %q (must be IN or OUT)", r.GateType),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
