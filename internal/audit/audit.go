// Package audit is the append-only, category-partitioned audit trail.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// ErrUnknownCategory is returned for categories outside model.Categories.
var ErrUnknownCategory = errors.New("unknown audit category")

// Log defines the audit trail contract. Each category is an independent
// history; Query returns entries in append order.
//
// Seq is the entry's 1-based position within its category: the first
// append to a category gets 1 and every later one the next integer.
// Sequences of different categories are unrelated. The only gaps are
// records a backend dropped as corrupt while recovering a history.
type Log interface {
	Append(ctx context.Context, category model.Category, payload any) (model.AuditEntry, error)
	Query(ctx context.Context, category model.Category) ([]model.AuditEntry, error)
	Close() error
}

// CheckCategory validates c against the known set.
func CheckCategory(c model.Category) error {
	if !c.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return nil
}

// EncodePayload marshals payload unless it is already raw JSON.
func EncodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, fmt.Errorf("marshaling payload: invalid raw JSON")
		}
		return p, nil
	case nil:
		return json.RawMessage("null"), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	return data, nil
}
