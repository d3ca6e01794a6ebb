// Package custom registers the minimal quality rules applied to
// user-defined data sources. Custom sources have no known schema, so
// the rules here only assume a primary key column named "id".
package custom

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(PrimaryKeyPresent)
}

// PrimaryKeyPresent requires an "id" value of any type on every row.
var PrimaryKeyPresent = core.QualityRule{
	Key:         "SC03",
	Domain:      core.DomainCustom,
	CheckType:   core.CheckSchema,
	Name:        "Primary Key Present",
	Description: "Every row has a non-null id.",
	Severity:    core.SeverityBlocking,
	Predicate: core.Predicate{
		Kind: core.PredicateSchema,
		Fields: []core.FieldSpec{
			{Name: "id", Type: core.FieldAny, Required: true},
		},
	},
}
