package ingest

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// MaxGenerateRecords caps a single synthetic generation request.
const MaxGenerateRecords = 10000

// DefaultGenerateRecords is used when a source does not specify a
// record count.
const DefaultGenerateRecords = 100

var insuranceColumns = []string{
	"claim_id", "policy_id", "policy_holder", "claim_type", "claim_amount",
	"policy_limit", "claim_date", "status", "deductible", "agent_id",
	"region", "risk_score",
}

var bankingColumns = []string{
	"transaction_id", "account_id", "customer_id", "transaction_type",
	"amount", "currency", "balance_before", "balance_after",
	"transaction_date", "channel", "merchant_category", "is_flagged",
	"risk_level",
}

var (
	claimTypes         = []string{"auto", "home", "health", "life", "liability"}
	claimStatuses      = []string{"pending", "approved", "rejected", "under_review"}
	regions            = []string{"North", "South", "East", "West", "Central"}
	transactionTypes   = []string{"deposit", "withdrawal", "transfer", "payment", "refund"}
	currencies         = []string{"USD", "EUR", "GBP"}
	channels           = []string{"online", "mobile", "branch", "atm"}
	merchantCategories = []string{"retail", "food", "utilities", "entertainment", "healthcare"}
	riskLevels         = []string{"low", "medium", "high"}
)

// debitTypes reduce the account balance; every other transaction type
// credits it.
var debitTypes = map[string]bool{"withdrawal": true, "payment": true, "transfer": true}

// Generate produces a synthetic dataset for a built-in domain. The
// same seed always yields the same dataset, so reruns of a generated
// source validate identical data. Custom sources have no generator
// and must upload data instead.
func Generate(domain core.Domain, seed int64, count int) (*core.Dataset, error) {
	if count <= 0 {
		count = DefaultGenerateRecords
	}
	if count > MaxGenerateRecords {
		return nil, fmt.Errorf("%w: record count %d exceeds maximum %d", core.ErrInvalid, count, MaxGenerateRecords)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	now := time.Now().UTC()

	switch domain {
	case core.DomainInsurance:
		return generateClaims(rng, now, count), nil
	case core.DomainBanking:
		return generateTransactions(rng, now, count), nil
	case core.DomainCustom:
		return nil, fmt.Errorf("%w: custom sources require uploaded data", core.ErrIngestion)
	default:
		return nil, fmt.Errorf("%w: unknown domain %q", core.ErrInvalid, domain)
	}
}

// generateClaims emits insurance claims with deliberate quality
// defects: a slice of claims exceed their policy limit and a few have
// no assigned agent.
func generateClaims(rng *rand.Rand, now time.Time, count int) *core.Dataset {
	ds := &core.Dataset{Columns: insuranceColumns}
	for i := 0; i < count; i++ {
		policyLimit := intBetween(rng, 10000, 500000)
		// The upper bound drifts past the policy limit on purpose, so
		// some claims violate the limit rule.
		upper := policyLimit + intBetween(rng, -5000, 20000)
		claimAmount := intBetween(rng, 500, max(upper, 500))

		var agentID any
		if rng.Float64() >= 0.05 {
			agentID = fmt.Sprintf("AGT-%d", intBetween(rng, 100, 999))
		}

		values := map[string]any{
			"claim_id":      "CLM-" + hexString(rng, 8, true),
			"policy_id":     fmt.Sprintf("POL-%d", intBetween(rng, 100000, 999999)),
			"policy_holder": fmt.Sprintf("Customer_%d", intBetween(rng, 1000, 9999)),
			"claim_type":    pick(rng, claimTypes),
			"claim_amount":  float64(claimAmount),
			"policy_limit":  float64(policyLimit),
			"claim_date":    pastDate(rng, now, 365),
			"status":        pick(rng, claimStatuses),
			"deductible":    float64(intBetween(rng, 500, 5000)),
			"agent_id":      agentID,
			"region":        pick(rng, regions),
			"risk_score":    round2(0.1 + rng.Float64()*0.9),
		}
		ds.Rows = append(ds.Rows, core.Row{ID: core.RowID(i), Values: values})
	}
	return ds
}

// generateTransactions emits banking transactions. Balances are
// computed before the occasional sign flip, so flipped rows fail the
// positive-amount rule while their balances stay consistent.
func generateTransactions(rng *rand.Rand, now time.Time, count int) *core.Dataset {
	ds := &core.Dataset{Columns: bankingColumns}
	for i := 0; i < count; i++ {
		txType := pick(rng, transactionTypes)
		amount := float64(intBetween(rng, 10, 50000))
		balanceBefore := float64(intBetween(rng, 1000, 100000))
		balanceAfter := balanceBefore + amount
		if debitTypes[txType] {
			balanceAfter = balanceBefore - amount
		}
		if rng.Float64() < 0.02 {
			amount = -amount
		}

		values := map[string]any{
			"transaction_id":    "TXN-" + hexString(rng, 8, false),
			"account_id":        fmt.Sprintf("ACC-%d", intBetween(rng, 100000, 999999)),
			"customer_id":       fmt.Sprintf("CUST-%d", intBetween(rng, 10000, 99999)),
			"transaction_type":  txType,
			"amount":            amount,
			"currency":          pick(rng, currencies),
			"balance_before":    balanceBefore,
			"balance_after":     balanceAfter,
			"transaction_date":  pastDate(rng, now, 90),
			"channel":           pick(rng, channels),
			"merchant_category": pick(rng, merchantCategories),
			"is_flagged":        rng.Float64() < 0.03,
			"risk_level":        pick(rng, riskLevels),
		}
		ds.Rows = append(ds.Rows, core.Row{ID: core.RowID(i), Values: values})
	}
	return ds
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

// intBetween returns a random integer in [lo, hi].
func intBetween(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}

const hexDigits = "0123456789abcdef"

func hexString(rng *rand.Rand, n int, upper bool) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = hexDigits[rng.IntN(16)]
		if upper && b[i] >= 'a' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

func pastDate(rng *rand.Rand, now time.Time, maxDaysAgo int) string {
	return now.AddDate(0, 0, -rng.IntN(maxDaysAgo+1)).Format(time.RFC3339)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
