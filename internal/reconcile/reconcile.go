// Package reconcile decides whether a gate entry matches the authority's
// permit record and drives the audit, notify and forward pipeline.
package reconcile

import (
	"time"

	"github.com/alfredjeanlab/gatepass/internal/model"
	"github.com/alfredjeanlab/gatepass/internal/policy"
)

// Reconcile classifies req against rec under p at decision time now.
// The result depends on nothing else. rec may be nil only on the manual
// override path; a nil record otherwise resolves to expired.
func Reconcile(req model.GateEntryRequest, rec *model.AuthorityRecord, p *policy.Policy, now time.Time) model.Decision {
	d := model.Decision{
		Request:       req,
		Record:        rec,
		PolicyID:      p.PolicyID,
		PolicyVersion: p.PolicyVersion,
		CreatedAt:     now.UTC(),
	}

	if ManualOverride(req, p) {
		d.Outcome = model.OutcomeMatched
		d.Source = model.SourceManual
		d.Record = nil
		return d
	}

	if p.Expired(rec, now) {
		d.Outcome = model.OutcomeExpired
		return d
	}

	d.Mismatches = compareFields(req, rec, p)
	if len(d.Mismatches) == 0 {
		d.Outcome = model.OutcomeMatched
		d.Source = model.SourceAuthority
	} else {
		d.Outcome = model.OutcomeMismatch
	}
	return d
}

// ManualOverride reports whether the request is matched on the operator's
// word alone, skipping the authority.
func ManualOverride(req model.GateEntryRequest, p *policy.Policy) bool {
	return p.ManualOverride && req.ConfirmedByUser
}

func compareFields(req model.GateEntryRequest, rec *model.AuthorityRecord, p *policy.Policy) []model.MismatchDetail {
	var out []model.MismatchDetail

	// Permit and vehicle are reported only when the authority has a value;
	// a vehicle missing from the submission is always a mismatch.
	if m, ok := differs("permitNumber", req.PermitNumber, rec.PermitNumber); ok {
		out = append(out, m)
	}
	if model.Normalize(req.VehicleNumber) == "" {
		out = append(out, model.MismatchDetail{
			Field:     "vehicleNumber",
			Submitted: req.VehicleNumber,
			Authority: rec.VehicleNumber,
			Reason:    model.ReasonAbsent,
		})
	} else if m, ok := differs("vehicleNumber", req.VehicleNumber, rec.VehicleNumber); ok {
		out = append(out, m)
	}

	if p.RequiresContainerCheck(req.GateType, req.PermitNumber) {
		if m, ok := bothDiffer("containerNumber", req.ContainerNumber, rec.ContainerNumber); ok {
			out = append(out, m)
		}
	}
	if p.Compares(policy.FieldContainerSize) {
		if m, ok := bothDiffer(policy.FieldContainerSize, req.ContainerSize, rec.ContainerSize); ok {
			out = append(out, m)
		}
	}
	if p.Compares(policy.FieldContainerType) {
		if m, ok := bothDiffer(policy.FieldContainerType, req.ContainerType, rec.ContainerType); ok {
			out = append(out, m)
		}
	}
	return out
}

// differs reports a mismatch when the authority value is present and the
// submitted value disagrees with it, including an empty submission.
func differs(field, submitted, authority string) (model.MismatchDetail, bool) {
	a := model.Normalize(authority)
	if a == "" || model.Normalize(submitted) == a {
		return model.MismatchDetail{}, false
	}
	return model.MismatchDetail{Field: field, Submitted: submitted, Authority: authority, Reason: model.ReasonDifferent}, true
}

// bothDiffer reports a mismatch only when both sides carry a value.
func bothDiffer(field, submitted, authority string) (model.MismatchDetail, bool) {
	s, a := model.Normalize(submitted), model.Normalize(authority)
	if s == "" || a == "" || s == a {
		return model.MismatchDetail{}, false
	}
	return model.MismatchDetail{Field: field, Submitted: submitted, Authority: authority, Reason: model.ReasonDifferent}, true
}
