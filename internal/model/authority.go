package model

import "time"

// AuthorityRecord is the canonical permit record returned by the legacy
// permit authority, whatever response shape it arrived in.
type AuthorityRecord struct {
	PermitNumber    string `json:"permitNumber,omitempty"`
	ContainerNumber string `json:"containerNumber,omitempty"`
	ContainerSize   string `json:"containerSize,omitempty"`
	ContainerType   string `json:"containerType,omitempty"`
	ContainerStatus string `json:"containerStatus,omitempty"`
	VehicleNumber   string `json:"vehicleNumber,omitempty"`
	LineCode        string `json:"lineCode,omitempty"`

	// Validity indicators. Depending on the response shape the authority
	// reports an expiry timestamp, a boolean flag, or neither.
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Valid     *bool      `json:"valid,omitempty"`

	// Shape names the response schema the record was normalized from.
	Shape string `json:"shape,omitempty"`
}
