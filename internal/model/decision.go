package model

import "time"

// Outcome classifies a reconciled transaction.
type Outcome string

const (
	OutcomeMatched  Outcome = "matched"
	OutcomeMismatch Outcome = "mismatch"
	OutcomeExpired  Outcome = "expired"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// Source records who vouched for a matched decision.
type Source string

const (
	SourceManual    Source = "manual"
	SourceAuthority Source = "authority"
)

// Mismatch reasons.
const (
	ReasonAbsent    = "absent"
	ReasonDifferent = "different"
)

// MismatchDetail is one disagreement between submitted and authoritative data.
type MismatchDetail struct {
	Field     string `json:"field"`
	Submitted string `json:"submitted"`
	Authority string `json:"authority"`
	Reason    string `json:"reason"`
}

// Decision is the immutable result of reconciling one GateEntryRequest.
type Decision struct {
	ID            string           `json:"id"`
	Outcome       Outcome          `json:"outcome"`
	Source        Source           `json:"source,omitempty"`
	Mismatches    []MismatchDetail `json:"mismatches,omitempty"`
	Request       GateEntryRequest `json:"request"`
	Record        *AuthorityRecord `json:"record,omitempty"`
	PolicyID      string           `json:"policyId"`
	PolicyVersion string           `json:"policyVersion"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// IsMatched reports whether the decision is a match.
func (d *Decision) IsMatched() bool {
	return d.Outcome == OutcomeMatched
}

// Category returns the audit category the decision is recorded under.
func (d *Decision) Category() Category {
	switch d.Outcome {
	case OutcomeMatched:
		return CategoryMatched
	case OutcomeMismatch:
		return CategoryMismatch
	default:
		return CategoryInvalid
	}
}
