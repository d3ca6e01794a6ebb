package custom

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(NonEmptyRequiredFields)
}

// NonEmptyRequiredFields rejects rows with null or empty values in
// any column of the uploaded dataset.
var NonEmptyRequiredFields = core.QualityRule{
	Key:         "NN03",
	Domain:      core.DomainCustom,
	CheckType:   core.CheckConstraint,
	Name:        "Non-Empty Required Fields",
	Description: "No column value is null or empty.",
	Severity:    core.SeverityBlocking,
	Predicate: core.Predicate{
		Kind:  core.PredicateNotNull,
		Field: rules.FieldNotNullAll,
	},
}
