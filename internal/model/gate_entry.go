package model

import (
	"strings"
)

// Direction is the gate a transaction passes through.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid reports whether the direction is a known value.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionIn, DirectionOut:
		return true
	}
	return false
}

// ParseDirection maps the wire forms accepted from operators ("IN", "OUT",
// "GATE_IN", "GATE_OUT", any case) onto a Direction. Unknown values are
// returned verbatim so validation can report them.
func ParseDirection(s string) Direction {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "GATE_")
	v = strings.TrimPrefix(v, "GATE-")
	return Direction(v)
}

// UnmarshalText accepts any of the wire forms understood by ParseDirection.
func (d *Direction) UnmarshalText(b []byte) error {
	*d = ParseDirection(string(b))
	return nil
}

// GateEntryRequest is the operator-submitted side of a transaction.
type GateEntryRequest struct {
	PermitNumber    string    `json:"permitNumber"`
	GateType        Direction `json:"gateType"`
	VehicleNumber   string    `json:"vehicleNumber,omitempty"`
	ContainerNumber string    `json:"containerNumber,omitempty"`
	ContainerSize   string    `json:"containerSize,omitempty"`
	ContainerType   string    `json:"containerType,omitempty"`
	ConfirmedByUser bool      `json:"confirmedByUser,omitempty"`
}

// Normalize canonicalizes an identifier for comparison: surrounding and inner
// whitespace and hyphens are dropped and letters are upper-cased.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
