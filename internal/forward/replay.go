package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/gatepass/internal/audit"
	"github.com/alfredjeanlab/gatepass/internal/model"
)

// ReplayResult summarizes one manual replay of failed deliveries.
type ReplayResult struct {
	Pending   int `json:"pending"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Replay re-posts each distinct payload recorded under forward-error once.
// Payloads already present under forwarded are skipped, so running Replay
// twice does not deliver the same decision twice. Outcomes are appended to
// the audit trail exactly as Forward does. Concurrent replays through the
// same Client run one after another.
func Replay(ctx context.Context, log audit.Log, c *Client) (ReplayResult, error) {
	c.replayMu.Lock()
	defer c.replayMu.Unlock()

	var res ReplayResult

	failed, err := log.Query(ctx, model.CategoryForwardError)
	if err != nil {
		return res, fmt.Errorf("query forward errors: %w", err)
	}
	delivered, err := log.Query(ctx, model.CategoryForwarded)
	if err != nil {
		return res, fmt.Errorf("query forwarded: %w", err)
	}

	done := make(map[string]bool, len(delivered))
	for _, e := range delivered {
		done[payloadKey(e.Payload)] = true
	}

	for _, e := range failed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var fe model.ForwardErrorEntry
		if err := json.Unmarshal(e.Payload, &fe); err != nil || len(fe.Payload) == 0 {
			res.Skipped++
			continue
		}
		key := payloadKey(fe.Payload)
		if done[key] {
			res.Skipped++
			continue
		}
		done[key] = true
		res.Pending++

		if err := c.post(ctx, fe.Payload); err != nil {
			c.logger.Warn("forward: replay failed", "seq", e.Seq, "err", err)
			c.record(ctx, model.CategoryForwardError, model.ForwardErrorEntry{Error: err.Error(), Payload: fe.Payload})
			res.Failed++
			continue
		}
		c.record(ctx, model.CategoryForwarded, fe.Payload)
		res.Delivered++
	}
	return res, nil
}

// payloadKey identifies a payload by its decision ID, falling back to its
// compacted bytes.
func payloadKey(raw json.RawMessage) string {
	var d struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &d) == nil && d.ID != "" {
		return "id:" + d.ID
	}
	var buf bytes.Buffer
	if json.Compact(&buf, raw) == nil {
		return "raw:" + buf.String()
	}
	return "raw:" + string(raw)
}
