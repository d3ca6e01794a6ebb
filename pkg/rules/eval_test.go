package rules

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

func testDataset(columns []string, values ...map[string]any) *core.Dataset {
	ds := &core.Dataset{Columns: columns}
	for i, v := range values {
		ds.Rows = append(ds.Rows, core.Row{ID: core.RowID(i), Values: v})
	}
	return ds
}

func ruleWithPredicate(p core.Predicate) core.QualityRule {
	checkType := core.CheckConstraint
	if p.Kind == core.PredicateSchema {
		checkType = core.CheckSchema
	}
	return core.QualityRule{
		Key:       "EV01",
		Domain:    core.DomainCustom,
		CheckType: checkType,
		Name:      "eval test rule",
		Severity:  core.SeverityBlocking,
		Predicate: p,
	}
}

func evaluate(t *testing.T, p core.Predicate, ds *core.Dataset) *Outcome {
	t.Helper()
	out, err := Evaluate(context.Background(), ruleWithPredicate(p), ds, nil, EvalOptions{})
	require.NoError(t, err)
	return out
}

func TestEvaluate_Schema(t *testing.T) {
	p := core.Predicate{
		Kind: core.PredicateSchema,
		Fields: []core.FieldSpec{
			{Name: "id", Type: core.FieldString, Required: true},
			{Name: "amount", Type: core.FieldNumber, Required: true},
			{Name: "count", Type: core.FieldInteger, Required: false},
			{Name: "active", Type: core.FieldBoolean, Required: false},
			{Name: "extra", Type: core.FieldAny, Required: false},
		},
	}

	ds := testDataset([]string{"id", "amount", "count", "active", "extra"},
		map[string]any{"id": "a", "amount": float64(10.5), "count": int64(3), "active": true, "extra": "x"},
		map[string]any{"amount": float64(1)},                      // id missing
		map[string]any{"id": "c", "amount": "not-a-number"},       // type mismatch
		map[string]any{"id": "d", "amount": int64(7)},             // int64 is a valid number
		map[string]any{"id": "e", "amount": float64(2), "count": float64(4)}, // integral float is a valid integer
		map[string]any{"id": "f", "amount": float64(2), "count": float64(4.5)},
		map[string]any{"id": "g", "amount": float64(2), "active": "yes"},
		map[string]any{"id": nil, "amount": float64(2)}, // null counts as missing
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, 8, out.Evaluated)

	violating := out.ViolatingRows()
	assert.Equal(t, []int{1, 2, 5, 6, 7}, violating)

	// First violation carries the offending field.
	require.NotEmpty(t, out.Violations)
	assert.Equal(t, "id", out.Violations[0].Field)
	assert.Equal(t, core.RowID(1), out.Violations[0].RowID)
}

func TestEvaluate_NotNullSingleField(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateNotNull, Field: "agent_id"}

	ds := testDataset([]string{"agent_id"},
		map[string]any{"agent_id": "AGT-1"},
		map[string]any{"agent_id": nil},
		map[string]any{},
		map[string]any{"agent_id": ""}, // empty string is a value for single-field checks
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1, 2}, out.ViolatingRows())
}

func TestEvaluate_NotNullAllColumns(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateNotNull, Field: FieldNotNullAll}

	ds := testDataset([]string{"a", "b"},
		map[string]any{"a": "x", "b": int64(1)},
		map[string]any{"a": "", "b": int64(2)},  // empty string counts
		map[string]any{"a": "y", "b": nil},      // null counts
		map[string]any{"a": "z"},                // missing column counts
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1, 2, 3}, out.ViolatingRows())
	assert.Equal(t, "a", out.Violations[0].Field)
	assert.Equal(t, "b", out.Violations[1].Field)
}

func TestEvaluate_Unique(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateUnique, Field: "claim_id"}

	ds := testDataset([]string{"claim_id"},
		map[string]any{"claim_id": "CLM-1"},
		map[string]any{"claim_id": "CLM-2"},
		map[string]any{"claim_id": "CLM-1"},
		map[string]any{"claim_id": nil}, // nulls are not compared
		map[string]any{"claim_id": nil},
	)

	out := evaluate(t, p, ds)
	// Both occurrences of the duplicate are violations.
	assert.Equal(t, []int{0, 2}, out.ViolatingRows())
}

func TestEvaluate_UniqueKeysAreTypeTagged(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateUnique, Field: "v"}

	ds := testDataset([]string{"v"},
		map[string]any{"v": "1"},
		map[string]any{"v": int64(1)},
	)

	// The string "1" and the number 1 are different values.
	out := evaluate(t, p, ds)
	assert.Empty(t, out.Violations)
}

func TestEvaluate_Range(t *testing.T) {
	minV, maxV := float64(0), float64(100)
	p := core.Predicate{Kind: core.PredicateRange, Field: "amount", Min: &minV, Max: &maxV}

	ds := testDataset([]string{"amount"},
		map[string]any{"amount": float64(50)},
		map[string]any{"amount": float64(-1)},
		map[string]any{"amount": float64(101)},
		map[string]any{"amount": int64(0)},   // boundary is allowed
		map[string]any{"amount": int64(100)}, // boundary is allowed
		map[string]any{"amount": nil},        // nulls are skipped
		map[string]any{"amount": "abc"},      // non-numeric is a violation
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1, 2, 6}, out.ViolatingRows())
	assert.Contains(t, out.Violations[0].Message, "below minimum")
	assert.Contains(t, out.Violations[1].Message, "above maximum")
	assert.Contains(t, out.Violations[2].Message, "not numeric")
}

func TestEvaluate_RangeMinOnly(t *testing.T) {
	minV := float64(0)
	p := core.Predicate{Kind: core.PredicateRange, Field: "amount", Min: &minV}

	ds := testDataset([]string{"amount"},
		map[string]any{"amount": float64(1e12)},
		map[string]any{"amount": float64(-0.01)},
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1}, out.ViolatingRows())
}

func TestEvaluate_InSet(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateInSet, Field: "status", Values: []string{"pending", "approved", "42"}}

	ds := testDataset([]string{"status"},
		map[string]any{"status": "pending"},
		map[string]any{"status": "rejected"},
		map[string]any{"status": int64(42)}, // matched by string form
		map[string]any{"status": nil},
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1}, out.ViolatingRows())
}

func TestEvaluate_Format(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateFormat, Field: "claim_id", Pattern: `^CLM-[0-9A-F]{8}$`}

	ds := testDataset([]string{"claim_id"},
		map[string]any{"claim_id": "CLM-1A2B3C4D"},
		map[string]any{"claim_id": "bogus"},
		map[string]any{"claim_id": nil},
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1}, out.ViolatingRows())
}

func TestEvaluate_FormatBadPattern(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateFormat, Field: "x", Pattern: `([`}
	rule := ruleWithPredicate(p)
	// Bypass rule validation to exercise the evaluator's own guard.
	ds := testDataset([]string{"x"}, map[string]any{"x": "y"})

	_, err := Evaluate(context.Background(), rule, ds, nil, EvalOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRuleEvaluation)
}

func TestEvaluate_Compare(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateCompare, Left: "claim_amount", Op: core.CompareLE, Right: "policy_limit"}

	ds := testDataset([]string{"claim_amount", "policy_limit"},
		map[string]any{"claim_amount": float64(500), "policy_limit": float64(1000)},
		map[string]any{"claim_amount": float64(1500), "policy_limit": float64(1000)},
		map[string]any{"claim_amount": int64(1000), "policy_limit": float64(1000)}, // boundary, mixed types
		map[string]any{"claim_amount": nil, "policy_limit": float64(1000)},         // nulls are skipped
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1}, out.ViolatingRows())
	assert.Contains(t, out.Violations[0].Message, "claim_amount le policy_limit")
}

func TestEvaluate_CompareEqualityOnStrings(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateCompare, Left: "a", Op: core.CompareEQ, Right: "b"}

	ds := testDataset([]string{"a", "b"},
		map[string]any{"a": "x", "b": "x"},
		map[string]any{"a": "x", "b": "y"},
	)

	out := evaluate(t, p, ds)
	assert.Equal(t, []int{1}, out.ViolatingRows())
}

func TestEvaluate_CompareOrderingNeedsNumbers(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateCompare, Left: "a", Op: core.CompareGT, Right: "b"}

	ds := testDataset([]string{"a", "b"},
		map[string]any{"a": "x", "b": "y"},
	)

	out := evaluate(t, p, ds)
	require.Len(t, out.Violations, 1)
	assert.Contains(t, out.Violations[0].Message, "requires numeric fields")
}

type stubExpr struct {
	fn func(map[string]any) (bool, error)
}

func (s stubExpr) Eval(row map[string]any) (bool, error) { return s.fn(row) }

type stubCompiler struct {
	compileErr error
	fn         func(map[string]any) (bool, error)
}

func (s stubCompiler) Compile(string) (CompiledExpr, error) {
	if s.compileErr != nil {
		return nil, s.compileErr
	}
	return stubExpr{fn: s.fn}, nil
}

func TestEvaluate_Expr(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateExpr, Expr: `row["ok"]`}

	ds := testDataset([]string{"ok"},
		map[string]any{"ok": true},
		map[string]any{"ok": false},
	)

	compiler := stubCompiler{fn: func(row map[string]any) (bool, error) {
		v, _ := row["ok"].(bool)
		return v, nil
	}}

	out, err := Evaluate(context.Background(), ruleWithPredicate(p), ds, nil, EvalOptions{Compiler: compiler})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out.ViolatingRows())
	assert.Equal(t, "expression returned false", out.Violations[0].Message)
}

func TestEvaluate_ExprWithoutCompiler(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateExpr, Expr: `True`}
	ds := testDataset([]string{"x"}, map[string]any{"x": 1})

	_, err := Evaluate(context.Background(), ruleWithPredicate(p), ds, nil, EvalOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRuleEvaluation)
}

func TestEvaluate_ExprCompileError(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateExpr, Expr: `(`}
	ds := testDataset([]string{"x"}, map[string]any{"x": 1})

	compiler := stubCompiler{compileErr: errors.New("syntax error")}
	_, err := Evaluate(context.Background(), ruleWithPredicate(p), ds, nil, EvalOptions{Compiler: compiler})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRuleEvaluation)
}

func TestEvaluate_ExprRowError(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateExpr, Expr: `row["missing"]`}
	ds := testDataset([]string{"x"},
		map[string]any{"x": 1},
	)

	compiler := stubCompiler{fn: func(map[string]any) (bool, error) {
		return false, fmt.Errorf("key %q not found", "missing")
	}}
	_, err := Evaluate(context.Background(), ruleWithPredicate(p), ds, nil, EvalOptions{Compiler: compiler})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRuleEvaluation)
	assert.Contains(t, err.Error(), core.RowID(0))
}

func TestEvaluate_EligibleSubset(t *testing.T) {
	p := core.Predicate{Kind: core.PredicateUnique, Field: "id"}

	ds := testDataset([]string{"id"},
		map[string]any{"id": "dup"},
		map[string]any{"id": "dup"},
		map[string]any{"id": "other"},
	)

	// Row 1 is excluded, so the duplicate disappears.
	out, err := Evaluate(context.Background(), ruleWithPredicate(p), ds, []int{0, 2}, EvalOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Evaluated)
	assert.Empty(t, out.Violations)
}

func TestEvaluate_UnknownKind(t *testing.T) {
	p := core.Predicate{Kind: "nope"}
	ds := testDataset([]string{"x"}, map[string]any{"x": 1})

	_, err := Evaluate(context.Background(), ruleWithPredicate(p), ds, nil, EvalOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRuleEvaluation)
}

func TestEvaluate_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := core.Predicate{Kind: core.PredicateNotNull, Field: "x"}
	ds := testDataset([]string{"x"}, map[string]any{"x": 1})

	_, err := Evaluate(ctx, ruleWithPredicate(p), ds, nil, EvalOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutcome_ViolatingRowsDeduplicates(t *testing.T) {
	out := &Outcome{Violations: []Violation{
		{RowIndex: 3, Field: "a"},
		{RowIndex: 3, Field: "b"},
		{RowIndex: 7, Field: "a"},
	}}
	assert.Equal(t, []int{3, 7}, out.ViolatingRows())
}
