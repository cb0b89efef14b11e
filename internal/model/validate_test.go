package model

import (
	"strings"
	"testing"
)

// validRequest returns a GateEntryRequest that passes all validation rules.
func validRequest() GateEntryRequest {
	return GateEntryRequest{
		PermitNumber:  "PMA1001",
		GateType:      DirectionIn,
		VehicleNumber: "MH12AB1234",
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_Valid(t *testing.T) {
	r := validRequest()
	if err := ValidateGateEntry(&r); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestValidate_PermitRequired(t *testing.T) {
	r := validRequest()
	r.PermitNumber = "   "
	errs := fieldErrors(t, ValidateGateEntry(&r))
	if !hasFieldError(errs, "permitNumber") {
		t.Error("expected error on field 'permitNumber'")
	}
}

func TestValidate_PermitTooLong(t *testing.T) {
	r := validRequest()
	r.PermitNumber = strings.Repeat("P", 65)
	errs := fieldErrors(t, ValidateGateEntry(&r))
	if !hasFieldError(errs, "permitNumber") {
		t.Error("expected error on field 'permitNumber'")
	}
}

func TestValidate_GateType(t *testing.T) {
	for _, tc := range []struct {
		name string
		gate Direction
	}{
		{"empty", ""},
		{"unknown", "SIDEWAYS"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := validRequest()
			r.GateType = tc.gate
			errs := fieldErrors(t, ValidateGateEntry(&r))
			if !hasFieldError(errs, "gateType") {
				t.Errorf("expected error on field 'gateType' for %q", tc.gate)
			}
		})
	}
}

func TestValidate_MissingVehicleIsNotAnError(t *testing.T) {
	r := validRequest()
	r.VehicleNumber = ""
	if err := ValidateGateEntry(&r); err != nil {
		t.Fatalf("missing vehicle should be left to reconciliation, got %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "permitNumber", Message: "is required"},
		{Field: "gateType", Message: "is required"},
	}}
	want := "validation failed: permitNumber: is required; gateType: is required"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
