package banking

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(NonNullCriticalFields)
}

// NonNullCriticalFields flags transactions with empty fields that
// schema validation does not require. Warning severity: the rows
// still reach Gold.
var NonNullCriticalFields = core.QualityRule{
	Key:         "NN02",
	Domain:      core.DomainBanking,
	CheckType:   core.CheckConstraint,
	Name:        "Non-Null Critical Fields",
	Description: "No transaction field is null or empty.",
	Severity:    core.SeverityWarning,
	Predicate: core.Predicate{
		Kind:  core.PredicateNotNull,
		Field: rules.FieldNotNullAll,
	},
}
