package insurance

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(ClaimWithinPolicyLimit)
}

// ClaimWithinPolicyLimit enforces that a claim never exceeds the
// policy's coverage limit.
var ClaimWithinPolicyLimit = core.QualityRule{
	Key:         "BR01",
	Domain:      core.DomainInsurance,
	CheckType:   core.CheckBusinessRule,
	Name:        "Claim Within Policy Limit",
	Description: "claim_amount does not exceed policy_limit.",
	Severity:    core.SeverityBlocking,
	Predicate: core.Predicate{
		Kind:  core.PredicateCompare,
		Left:  "claim_amount",
		Op:    core.CompareLE,
		Right: "policy_limit",
	},
}
