package model

import (
	"encoding/json"
	"time"
)

// Category partitions the audit trail into independent histories.
type Category string

const (
	CategoryIncoming     Category = "incoming"
	CategoryMatched      Category = "matched"
	CategoryMismatch     Category = "mismatch"
	CategoryInvalid      Category = "invalid"
	CategoryError        Category = "error"
	CategoryForwarded    Category = "forwarded"
	CategoryForwardError Category = "forward-error"
)

// Categories lists every known category in a stable order.
var Categories = []Category{
	CategoryIncoming,
	CategoryMatched,
	CategoryMismatch,
	CategoryInvalid,
	CategoryError,
	CategoryForwarded,
	CategoryForwardError,
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether the category is a known value.
func (c Category) IsValid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// AuditEntry is one append-only record in a category's history.
type AuditEntry struct {
	Seq       int64           `json:"seq"`
	Category  Category        `json:"category"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ErrorEntry is the payload recorded under CategoryError.
type ErrorEntry struct {
	Error   string            `json:"error"`
	Request *GateEntryRequest `json:"request,omitempty"`
}

// ForwardErrorEntry is the payload recorded under CategoryForwardError.
type ForwardErrorEntry struct {
	Error   string          `json:"error"`
	Payload json.RawMessage `json:"payload"`
}
