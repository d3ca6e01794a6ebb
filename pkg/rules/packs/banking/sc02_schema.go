// Package banking registers the built-in quality rules for the
// banking transactions domain.
package banking

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(SchemaCompleteness)
}

// SchemaCompleteness validates that every transaction record carries
// the expected fields with valid types.
var SchemaCompleteness = core.QualityRule{
	Key:         "SC02",
	Domain:      core.DomainBanking,
	CheckType:   core.CheckSchema,
	Name:        "Schema Completeness",
	Description: "All required transaction fields are present with valid types.",
	Severity:    core.SeverityBlocking,
	Predicate: core.Predicate{
		Kind: core.PredicateSchema,
		Fields: []core.FieldSpec{
			{Name: "transaction_id", Type: core.FieldString, Required: true},
			{Name: "account_id", Type: core.FieldString, Required: true},
			{Name: "customer_id", Type: core.FieldString, Required: true},
			{Name: "transaction_type", Type: core.FieldString, Required: true},
			{Name: "amount", Type: core.FieldNumber, Required: true},
			{Name: "currency", Type: core.FieldString, Required: true},
			{Name: "balance_before", Type: core.FieldNumber, Required: true},
			{Name: "balance_after", Type: core.FieldNumber, Required: true},
			{Name: "transaction_date", Type: core.FieldString, Required: true},
			{Name: "channel", Type: core.FieldString, Required: true},
			{Name: "merchant_category", Type: core.FieldString, Required: true},
			{Name: "is_flagged", Type: core.FieldBoolean, Required: true},
			{Name: "risk_level", Type: core.FieldString, Required: true},
		},
	},
}
