package banking

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(PositiveTransactionAmount)
}

// PositiveTransactionAmount rejects negative transaction amounts.
// Direction is carried by transaction_type, not by sign.
var PositiveTransactionAmount = core.QualityRule{
	Key:         "PT01",
	Domain:      core.DomainBanking,
	CheckType:   core.CheckConstraint,
	Name:        "Positive Transaction Amount",
	Description: "amount is zero or greater.",
	Severity:    core.SeverityBlocking,
	Predicate: core.Predicate{
		Kind:  core.PredicateRange,
		Field: "amount",
		Min:   floatPtr(0),
	},
}

func floatPtr(v float64) *float64 { return &v }
