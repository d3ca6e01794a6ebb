package insurance

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(UniqueClaimIDs)
}

// UniqueClaimIDs rejects duplicate claim identifiers. Every row that
// shares a claim_id with another row is a violation, including the
// first occurrence.
var UniqueClaimIDs = core.QualityRule{
	Key:         "UQ01",
	Domain:      core.DomainInsurance,
	CheckType:   core.CheckConstraint,
	Name:        "Unique Claim IDs",
	Description: "claim_id values are unique across the dataset.",
	Severity:    core.SeverityBlocking,
	Predicate: core.Predicate{
		Kind:  core.PredicateUnique,
		Field: "claim_id",
	},
}
