package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a policy from a TOML (.toml) or YAML (.yaml, .yml) file
// and validates it.
func LoadFile(path string) (Policy, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}

	var p Policy
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &p); err != nil {
			return Policy{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Policy{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return Policy{}, fmt.Errorf("unsupported policy file extension %q", ext)
	}

	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Validate checks the policy for missing identity and unknown settings.
func (p *Policy) Validate() error {
	if p.PolicyID == "" {
		return fmt.Errorf("policy_id is required")
	}
	if p.PolicyVersion == "" {
		return fmt.Errorf("policy_version is required")
	}
	switch p.Validity {
	case "":
		p.Validity = ValidityExpiry
	case ValidityExpiry, ValidityFlag, ValidityAuto:
	default:
		return fmt.Errorf("validity %q is not one of expiry, flag, auto", p.Validity)
	}
	for i, rule := range p.ContainerRules {
		if strings.TrimSpace(rule.Prefix) == "" {
			return fmt.Errorf("container_rules[%d]: prefix is required", i)
		}
		for _, d := range rule.Directions {
			if !d.IsValid() {
				return fmt.Errorf("container_rules[%d]: invalid direction %q", i, d)
			}
		}
	}
	for _, f := range p.CompareFields {
		if f != FieldContainerSize && f != FieldContainerType {
			return fmt.Errorf("compare_fields: unknown field %q", f)
		}
	}
	return nil
}

// Resolve returns the file policy when path is set, otherwise the named builtin.
func Resolve(name, path string) (Policy, error) {
	if path != "" {
		return LoadFile(path)
	}
	return Builtin(name)
}
