package policy

import (
	"fmt"
	"sort"

	"github.com/alfredjeanlab/gatepass/internal/model"
)

// The two policies observed in deployed terminals. They differ in manual
// override, validity semantics and the fields they require to be checked.
// v1 authorities answer with either an expiry date or a bare flag, so v1
// trusts the date when one is sent and the flag otherwise.
var builtins = map[string]Policy{
	"v1": {
		PolicyID:       "gatepass-v1",
		PolicyVersion:  "1",
		ManualOverride: true,
		Validity:       ValidityAuto,
		ContainerRules: []ContainerRule{
			{Prefix: "PMD", Directions: []model.Direction{model.DirectionOut}},
			{Prefix: "PMI", Directions: []model.Direction{model.DirectionIn}},
		},
		CompareFields: []string{FieldContainerSize, FieldContainerType},
	},
	"v2": {
		PolicyID:       "gatepass-v2",
		PolicyVersion:  "2",
		ManualOverride: false,
		Validity:       ValidityFlag,
		ContainerRules: []ContainerRule{
			{Prefix: "PMD", Directions: []model.Direction{model.DirectionOut}},
			{Prefix: "PME", Directions: []model.Direction{model.DirectionOut}},
		},
	},
}

// Builtin returns a copy of the named built-in policy.
func Builtin(name string) (Policy, error) {
	p, ok := builtins[name]
	if !ok {
		return Policy{}, fmt.Errorf("unknown policy %q (known: %v)", name, BuiltinNames())
	}
	p.ContainerRules = append([]ContainerRule(nil), p.ContainerRules...)
	p.CompareFields = append([]string(nil), p.CompareFields...)
	return p, nil
}

// BuiltinNames returns the built-in policy names in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
