// Package insurance registers the built-in quality rules for the
// insurance claims domain.
package insurance

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(SchemaCompleteness)
}

// SchemaCompleteness validates that every claim record carries the
// core claim fields with the expected types. Rows that fail here are
// excluded from all downstream rules.
var SchemaCompleteness = core.QualityRule{
	Key:         "SC01",
	Domain:      core.DomainInsurance,
	CheckType:   core.CheckSchema,
	Name:        "Schema Completeness",
	Description: "All required claim fields are present with valid types.",
	Severity:    core.SeverityBlocking,
	Predicate: core.Predicate{
		Kind: core.PredicateSchema,
		Fields: []core.FieldSpec{
			{Name: "claim_id", Type: core.FieldString, Required: true},
			{Name: "policy_id", Type: core.FieldString, Required: true},
			{Name: "policy_holder", Type: core.FieldString, Required: true},
			{Name: "claim_type", Type: core.FieldString, Required: true},
			{Name: "claim_amount", Type: core.FieldNumber, Required: true},
			{Name: "policy_limit", Type: core.FieldNumber, Required: true},
			{Name: "claim_date", Type: core.FieldString, Required: true},
			{Name: "status", Type: core.FieldString, Required: true},
			{Name: "deductible", Type: core.FieldNumber, Required: true},
			{Name: "agent_id", Type: core.FieldString, Required: false},
			{Name: "region", Type: core.FieldString, Required: true},
			{Name: "risk_score", Type: core.FieldNumber, Required: true},
		},
	},
}
