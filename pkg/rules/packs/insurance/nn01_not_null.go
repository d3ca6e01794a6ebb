package insurance

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(NonNullCriticalFields)
}

// NonNullCriticalFields flags claims with empty fields that schema
// validation does not require, most commonly a missing agent
// assignment. Warning severity: the rows still reach Gold.
var NonNullCriticalFields = core.QualityRule{
	Key:         "NN01",
	Domain:      core.DomainInsurance,
	CheckType:   core.CheckConstraint,
	Name:        "Non-Null Critical Fields",
	Description: "No claim field is null or empty.",
	Severity:    core.SeverityWarning,
	Predicate: core.Predicate{
		Kind:  core.PredicateNotNull,
		Field: rules.FieldNotNullAll,
	},
}
