// Package policy holds the per-deployment reconciliation policy. A policy is
// selected at start-up and injected into the engine; it never changes at runtime.
package policy

import (
	"strings"
	"time"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// Validity modes control which authority validity indicator is trusted.
const (
	ValidityExpiry = "expiry" // ExpiresAt must be present and in the future
	ValidityFlag   = "flag"   // Valid must be present and true
	ValidityAuto   = "auto"   // ExpiresAt when present, otherwise Valid
)

// Optional fields that may be listed in CompareFields.
const (
	FieldContainerSize = "containerSize"
	FieldContainerType = "containerType"
)

// Policy is a versioned reconciliation policy.
type Policy struct {
	PolicyID       string          `toml:"policy_id" yaml:"policy_id"`
	PolicyVersion  string          `toml:"policy_version" yaml:"policy_version"`
	ManualOverride bool            `toml:"manual_override" yaml:"manual_override"`
	Validity       string          `toml:"validity" yaml:"validity"`
	ContainerRules []ContainerRule `toml:"container_rules" yaml:"container_rules"`
	CompareFields  []string        `toml:"compare_fields" yaml:"compare_fields"`
}

// ContainerRule requires container-number verification for permits starting
// with Prefix on the listed directions. An empty Directions list means both.
type ContainerRule struct {
	Prefix     string            `toml:"prefix" yaml:"prefix"`
	Directions []model.Direction `toml:"directions" yaml:"directions"`
}

// RequiresContainerCheck reports whether the container number must be
// cross-checked for a permit passing through the given gate.
func (p *Policy) RequiresContainerCheck(dir model.Direction, permitNumber string) bool {
	permit := model.Normalize(permitNumber)
	for _, rule := range p.ContainerRules {
		prefix := model.Normalize(rule.Prefix)
		if prefix == "" || !strings.HasPrefix(permit, prefix) {
			continue
		}
		if len(rule.Directions) == 0 {
			return true
		}
		for _, d := range rule.Directions {
			if d == dir {
				return true
			}
		}
	}
	return false
}

// Compares reports whether the optional field is cross-checked.
func (p *Policy) Compares(field string) bool {
	for _, f := range p.CompareFields {
		if f == field {
			return true
		}
	}
	return false
}

// Expired reports whether the record's validity indicator is absent or
// resolves to invalid at now.
func (p *Policy) Expired(rec *model.AuthorityRecord, now time.Time) bool {
	if rec == nil {
		return true
	}
	switch p.Validity {
	case ValidityFlag:
		return flagExpired(rec)
	case ValidityAuto:
		if rec.ExpiresAt != nil {
			return expiryExpired(rec, now)
		}
		return flagExpired(rec)
	default:
		return expiryExpired(rec, now)
	}
}

func expiryExpired(rec *model.AuthorityRecord, now time.Time) bool {
	return rec.ExpiresAt == nil || !rec.ExpiresAt.After(now)
}

func flagExpired(rec *model.AuthorityRecord) bool {
	return rec.Valid == nil || !*rec.Valid
}
