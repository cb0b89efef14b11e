package reconcile

import (
	"testing"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/model"
	"github.com/alfredjeanlab/gatepass/internal/policy"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func mustPolicy(t *testing.T, name string) *policy.Policy {
	t.Helper()
	p, err := policy.Builtin(name)
	if err != nil {
		t.Fatalf("Builtin(%q): %v", name, err)
	}
	return &p
}

func TestScenarioA_Matched(t *testing.T) {
	var req model.GateEntryRequest
	req.PermitNumber = "PMA1001"
	req.GateType = model.ParseDirection("GATE_IN")
	req.VehicleNumber = "MH12AB1234"
	rec := &model.AuthorityRecord{PermitNumber: "PMA1001", VehicleNumber: "MH12AB1234", Valid: boolPtr(true)}

	// The record carries only the flag, so both variants must accept it.
	for _, name := range []string{"v1", "v2"} {
		t.Run(name, func(t *testing.T) {
			d := Reconcile(req, rec, mustPolicy(t, name), now)
			if d.Outcome != model.OutcomeMatched || d.Source != model.SourceAuthority {
				t.Fatalf("decision = %+v, want matched by authority", d)
			}
			if d.Record != rec {
				t.Error("authority record should be attached")
			}
		})
	}
}

func TestScenarioB_ContainerMismatch(t *testing.T) {
	req := model.GateEntryRequest{
		PermitNumber:    "PMD2002",
		GateType:        model.ParseDirection("GATE_OUT"),
		VehicleNumber:   "V1",
		ContainerNumber: "C1",
	}
	rec := &model.AuthorityRecord{ContainerNumber: "C2", Valid: boolPtr(true)}

	d := Reconcile(req, rec, mustPolicy(t, "v2"), now)
	if d.Outcome != model.OutcomeMismatch {
		t.Fatalf("outcome = %q, want mismatch", d.Outcome)
	}
	if len(d.Mismatches) != 1 {
		t.Fatalf("mismatches = %+v, want exactly one", d.Mismatches)
	}
	m := d.Mismatches[0]
	if m.Field != "containerNumber" || m.Submitted != "C1" || m.Authority != "C2" || m.Reason != model.ReasonDifferent {
		t.Errorf("detail = %+v", m)
	}
}

func TestScenarioC_ExpiredRegardlessOfFields(t *testing.T) {
	req := model.GateEntryRequest{PermitNumber: "PMA1001", GateType: model.DirectionIn, VehicleNumber: "MH12AB1234"}
	rec := &model.AuthorityRecord{
		PermitNumber:  "PMA1001",
		VehicleNumber: "MH12AB1234",
		ExpiresAt:     timePtr(now.Add(-time.Minute)),
		Valid:         boolPtr(true),
	}

	d := Reconcile(req, rec, mustPolicy(t, "v1"), now)
	if d.Outcome != model.OutcomeExpired {
		t.Fatalf("outcome = %q, want expired", d.Outcome)
	}
	if len(d.Mismatches) != 0 {
		t.Errorf("expired decisions carry no mismatches, got %+v", d.Mismatches)
	}
	if d.Record != rec {
		t.Error("expired decision should still carry the authority record")
	}
	if d.Category() != model.CategoryInvalid {
		t.Errorf("category = %q, want invalid", d.Category())
	}
}

func TestScenarioD_VehicleAbsent(t *testing.T) {
	req := model.GateEntryRequest{PermitNumber: "PMA1001", GateType: model.DirectionIn}
	rec := &model.AuthorityRecord{Valid: boolPtr(true)}

	d := Reconcile(req, rec, mustPolicy(t, "v2"), now)
	if d.Outcome != model.OutcomeMismatch {
		t.Fatalf("outcome = %q, want mismatch", d.Outcome)
	}
	if len(d.Mismatches) != 1 || d.Mismatches[0].Field != "vehicleNumber" || d.Mismatches[0].Reason != model.ReasonAbsent {
		t.Errorf("mismatches = %+v, want vehicleNumber absent", d.Mismatches)
	}
}

func TestExpired_AlwaysWins(t *testing.T) {
	// Every field disagrees; the validity indicator alone decides.
	req := model.GateEntryRequest{
		PermitNumber:    "PMD1",
		GateType:        model.DirectionOut,
		ContainerNumber: "A",
		ContainerSize:   "20",
	}
	base := model.AuthorityRecord{PermitNumber: "PMD9", VehicleNumber: "X", ContainerNumber: "B", ContainerSize: "40"}

	for _, tc := range []struct {
		name   string
		policy string
		mutate func(*model.AuthorityRecord)
	}{
		{"expiry absent", "v1", func(r *model.AuthorityRecord) {}},
		{"expiry past", "v1", func(r *model.AuthorityRecord) { r.ExpiresAt = timePtr(now.Add(-time.Hour)) }},
		{"expiry exactly now", "v1", func(r *model.AuthorityRecord) { r.ExpiresAt = timePtr(now) }},
		{"v1 date outranks flag", "v1", func(r *model.AuthorityRecord) {
			r.ExpiresAt = timePtr(now.Add(-time.Hour))
			r.Valid = boolPtr(true)
		}},
		{"v1 flag false", "v1", func(r *model.AuthorityRecord) { r.Valid = boolPtr(false) }},
		{"flag absent", "v2", func(r *model.AuthorityRecord) {}},
		{"flag false", "v2", func(r *model.AuthorityRecord) { r.Valid = boolPtr(false) }},
		{"flag policy ignores future expiry", "v2", func(r *model.AuthorityRecord) { r.ExpiresAt = timePtr(now.Add(time.Hour)) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := base
			tc.mutate(&rec)
			d := Reconcile(req, &rec, mustPolicy(t, tc.policy), now)
			if d.Outcome != model.OutcomeExpired {
				t.Errorf("outcome = %q, want expired", d.Outcome)
			}
		})
	}
}

func TestManualOverride(t *testing.T) {
	req := model.GateEntryRequest{PermitNumber: "PMA1", GateType: model.DirectionIn, ConfirmedByUser: true}

	d := Reconcile(req, nil, mustPolicy(t, "v1"), now)
	if d.Outcome != model.OutcomeMatched || d.Source != model.SourceManual {
		t.Fatalf("decision = %+v, want manual match", d)
	}
	if d.Record != nil {
		t.Error("manual decisions carry no authority record")
	}

	// v2 has no override: the flag is ignored and a missing record is expired.
	d = Reconcile(req, nil, mustPolicy(t, "v2"), now)
	if d.Outcome != model.OutcomeExpired {
		t.Errorf("v2 outcome = %q, want expired", d.Outcome)
	}
}

func TestContainerCheckSkippedWhenNotRequired(t *testing.T) {
	rec := &model.AuthorityRecord{ContainerNumber: "C2", VehicleNumber: "V1", Valid: boolPtr(true)}
	for _, tc := range []struct {
		name   string
		permit string
		dir    model.Direction
	}{
		{"PMD inbound", "PMD1", model.DirectionIn},
		{"unlisted prefix", "PMA1", model.DirectionOut},
		{"PME inbound", "PME7", model.DirectionIn},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := model.GateEntryRequest{PermitNumber: tc.permit, GateType: tc.dir, VehicleNumber: "V1", ContainerNumber: "C1"}
			d := Reconcile(req, rec, mustPolicy(t, "v2"), now)
			if !d.IsMatched() {
				t.Errorf("decision = %+v, want matched (container not checked)", d)
			}
		})
	}
}

func TestContainerAbsentOnEitherSide(t *testing.T) {
	p := mustPolicy(t, "v2")
	req := model.GateEntryRequest{PermitNumber: "PMD1", GateType: model.DirectionOut, VehicleNumber: "V1"}
	rec := &model.AuthorityRecord{ContainerNumber: "C2", Valid: boolPtr(true)}
	if d := Reconcile(req, rec, p, now); !d.IsMatched() {
		t.Errorf("submitted container absent: %+v", d.Mismatches)
	}

	req.ContainerNumber = "C1"
	rec.ContainerNumber = ""
	if d := Reconcile(req, rec, p, now); !d.IsMatched() {
		t.Errorf("authority container absent: %+v", d.Mismatches)
	}
}

func TestFieldRules(t *testing.T) {
	future := timePtr(now.Add(24 * time.Hour))
	for _, tc := range []struct {
		name   string
		req    model.GateEntryRequest
		rec    model.AuthorityRecord
		fields []string
	}{
		{
			name:   "permit differs",
			req:    model.GateEntryRequest{PermitNumber: "PMA1", GateType: model.DirectionIn, VehicleNumber: "V"},
			rec:    model.AuthorityRecord{PermitNumber: "PMA2", ExpiresAt: future},
			fields: []string{"permitNumber"},
		},
		{
			name:   "vehicle differs",
			req:    model.GateEntryRequest{PermitNumber: "PMA1", GateType: model.DirectionIn, VehicleNumber: "V1"},
			rec:    model.AuthorityRecord{VehicleNumber: "V2", ExpiresAt: future},
			fields: []string{"vehicleNumber"},
		},
		{
			name: "normalization hides formatting",
			req:  model.GateEntryRequest{PermitNumber: "pma-1", GateType: model.DirectionIn, VehicleNumber: "mh 12 ab 1234"},
			rec:  model.AuthorityRecord{PermitNumber: "PMA1", VehicleNumber: "MH12AB1234", ExpiresAt: future},
		},
		{
			name:   "size and type compared when both present",
			req:    model.GateEntryRequest{PermitNumber: "PMA1", GateType: model.DirectionIn, VehicleNumber: "V", ContainerSize: "20", ContainerType: "GP"},
			rec:    model.AuthorityRecord{VehicleNumber: "V", ContainerSize: "40", ContainerType: "RF", ExpiresAt: future},
			fields: []string{"containerSize", "containerType"},
		},
		{
			name: "size skipped when authority silent",
			req:  model.GateEntryRequest{PermitNumber: "PMA1", GateType: model.DirectionIn, VehicleNumber: "V", ContainerSize: "20"},
			rec:  model.AuthorityRecord{VehicleNumber: "V", ExpiresAt: future},
		},
		{
			name:   "PMI inbound container check under v1",
			req:    model.GateEntryRequest{PermitNumber: "PMI5", GateType: model.DirectionIn, VehicleNumber: "V", ContainerNumber: "AAA"},
			rec:    model.AuthorityRecord{ContainerNumber: "BBB", ExpiresAt: future},
			fields: []string{"containerNumber"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := tc.rec
			d := Reconcile(tc.req, &rec, mustPolicy(t, "v1"), now)
			var got []string
			for _, m := range d.Mismatches {
				got = append(got, m.Field)
			}
			if len(got) != len(tc.fields) {
				t.Fatalf("mismatched fields = %v, want %v", got, tc.fields)
			}
			for i := range got {
				if got[i] != tc.fields[i] {
					t.Errorf("field %d = %q, want %q", i, got[i], tc.fields[i])
				}
			}
		})
	}
}

func TestMatchedIffNoMismatches(t *testing.T) {
	vehicles := []string{"", "V1", "V2"}
	containers := []string{"", "C1", "C2"}
	validity := []*bool{nil, boolPtr(true), boolPtr(false)}
	for _, name := range []string{"v1", "v2"} {
		p := mustPolicy(t, name)
		for _, sv := range vehicles {
			for _, av := range vehicles {
				for _, sc := range containers {
					for _, ac := range containers {
						for _, valid := range validity {
							req := model.GateEntryRequest{PermitNumber: "PMD1", GateType: model.DirectionOut, VehicleNumber: sv, ContainerNumber: sc}
							rec := &model.AuthorityRecord{VehicleNumber: av, ContainerNumber: ac, Valid: valid, ExpiresAt: timePtr(now.Add(time.Hour))}
							d := Reconcile(req, rec, p, now)
							if d.IsMatched() != (len(d.Mismatches) == 0) && d.Outcome != model.OutcomeExpired {
								t.Fatalf("%s: matched=%v with mismatches %+v", name, d.IsMatched(), d.Mismatches)
							}
							if d.IsMatched() && len(d.Mismatches) != 0 {
								t.Fatalf("%s: matched decision with mismatches %+v", name, d.Mismatches)
							}
						}
					}
				}
			}
		}
	}
}

func TestDecisionCarriesPolicyAndTime(t *testing.T) {
	p := mustPolicy(t, "v1")
	d := Reconcile(model.GateEntryRequest{PermitNumber: "PMA1", GateType: model.DirectionIn, ConfirmedByUser: true}, nil, p, now)
	if d.PolicyID != "gatepass-v1" || d.PolicyVersion != "1" {
		t.Errorf("policy = %s/%s", d.PolicyID, d.PolicyVersion)
	}
	if !d.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", d.CreatedAt, now)
	}
}
