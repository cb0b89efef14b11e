package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/gatepass/internal/client"
	"github.com/alfredjeanlab/gatepass/internal/model"
	"github.com/alfredjeanlab/gatepass/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// resultLabel is the headline for a submission: MATCHED, MISMATCH or
// PERMIT_EXPIRED.
func resultLabel(res *client.GateEntryResult) string {
	if res.Status != "" {
		return res.Status
	}
	return res.Type
}

func printGateResult(w io.Writer, res *client.GateEntryResult) {
	d := res.Decision
	fmt.Fprintf(w, "Result:      %s\n", ui.RenderOutcome(resultLabel(res)))
	fmt.Fprintf(w, "Decision:    %s\n", d.ID)
	fmt.Fprintf(w, "Permit:      %s (%s)\n", d.Request.PermitNumber, d.Request.GateType)
	if res.Source != "" {
		fmt.Fprintf(w, "Source:      %s\n", res.Source)
	}
	fmt.Fprintf(w, "Policy:      %s %s\n", d.PolicyID, d.PolicyVersion)
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Decided At:  %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if rec := res.SOAPData; rec != nil && rec.ExpiresAt != nil {
		fmt.Fprintf(w, "Expires At:  %s\n", rec.ExpiresAt.Format("2006-01-02 15:04:05"))
	}

	if len(res.Mismatches) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tSUBMITTED\tAUTHORITY\tREASON")
	for _, m := range res.Mismatches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Field, dash(m.Submitted), dash(m.Authority), m.Reason)
	}
	tw.Flush()
}

// entrySummary pulls the columns shown in history tables out of any
// category's payload: decisions, raw requests, and error records.
type entrySummary struct {
	ID           string                  `json:"id"`
	Outcome      string                  `json:"outcome"`
	PermitNumber string                  `json:"permitNumber"`
	GateType     string                  `json:"gateType"`
	Error        string                  `json:"error"`
	Request      *model.GateEntryRequest `json:"request"`
	Payload      json.RawMessage         `json:"payload"`
}

func summarize(raw json.RawMessage) entrySummary {
	var s entrySummary
	_ = json.Unmarshal(raw, &s)
	if s.Request != nil {
		s.PermitNumber = s.Request.PermitNumber
		s.GateType = s.Request.GateType.String()
	}
	// forward-error wraps the decision it failed to deliver.
	if len(s.Payload) > 0 && s.ID == "" {
		inner := summarize(s.Payload)
		inner.Error = s.Error
		return inner
	}
	return s
}

func printHistoryTable(w io.Writer, category string, resp *client.HistoryResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tPERMIT\tGATE\tDECISION\tDETAIL")
	for _, e := range resp.Data {
		s := summarize(e.Payload)
		detail := s.Error
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		if detail == "" {
			detail = ui.RenderOutcome(s.Outcome)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq,
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			dash(s.PermitNumber),
			dash(s.GateType),
			dash(s.ID),
			dash(detail),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d %s entries\n", resp.Count, category)
}

// printEvent writes one live decision event on a single line.
func printEvent(w io.Writer, name string, data []byte) {
	var d model.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		fmt.Fprintf(w, "%s %s\n", ui.RenderOutcome(name), strings.TrimSpace(string(data)))
		return
	}
	line := fmt.Sprintf("%s %-8s %s %s %s",
		d.CreatedAt.Local().Format("15:04:05"),
		ui.RenderOutcome(name),
		d.ID,
		d.Request.PermitNumber,
		d.Request.GateType,
	)
	if len(d.Mismatches) > 0 {
		fields := make([]string, len(d.Mismatches))
		for i, m := range d.Mismatches {
			fields[i] = m.Field
		}
		line += " " + ui.RenderMuted("["+strings.Join(fields, ", ")+"]")
	}
	fmt.Fprintln(w, line)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
