package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/model"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Counts    map[model.Category]int `json:"counts"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string           `json:"type"`
	Data model.AuditEntry `json:"data"`
}

// ExportJSONL writes every category of log to w: a header line with
// per-category counts, then each entry grouped by category in append
// order. It returns the number of entries written.
func ExportJSONL(ctx context.Context, log audit.Log, w io.Writer) (int, error) {
	byCategory := make(map[model.Category][]model.AuditEntry, len(model.Categories))
	counts := make(map[model.Category]int, len(model.Categories))
	total := 0
	for _, c := range model.Categories {
		entries, err := log.Query(ctx, c)
		if err != nil {
			return 0, fmt.Errorf("query %s: %w", c, err)
		}
		byCategory[c] = entries
		counts[c] = len(entries)
		total += len(entries)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: time.Now().UTC(),
		Counts:    counts,
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, c := range model.Categories {
		for _, e := range byCategory[c] {
			if err := enc.Encode(record{Type: "entry", Data: e}); err != nil {
				return 0, fmt.Errorf("encode %s entry %d: %w", c, e.Seq, err)
			}
		}
	}
	return total, nil
}
