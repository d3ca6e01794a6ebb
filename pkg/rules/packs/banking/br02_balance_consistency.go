package banking

import (
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

func init() {
	rules.Register(BalanceConsistency)
}

// balanceExpr reconstructs the expected closing balance from the
// transaction type and compares it to balance_after with a one-cent
// tolerance. Withdrawals, payments and transfers debit the account;
// everything else credits it.
const balanceExpr = `abs(row["balance_after"] - (row["balance_before"] - abs(row["amount"]) ` +
	`if row["transaction_type"] in ("withdrawal", "payment", "transfer") ` +
	`else row["balance_before"] + abs(row["amount"]))) <= 0.01`

// BalanceConsistency cross-checks balance_before, amount and
// balance_after. Warning severity: inconsistent rows are reported but
// still reach Gold.
var BalanceConsistency = core.QualityRule{
	Key:         "BR02",
	Domain:      core.DomainBanking,
	CheckType:   core.CheckBusinessRule,
	Name:        "Balance Consistency",
	Description: "balance_after matches balance_before adjusted by amount.",
	Severity:    core.SeverityWarning,
	Predicate: core.Predicate{
		Kind: core.PredicateExpr,
		Expr: balanceExpr,
	},
}
