package starlark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_SimpleComparison(t *testing.T) {
	c := NewCompiler()

	expr, err := c.Compile(`row["amount"] > 0`)
	require.NoError(t, err)

	ok, err := expr.Eval(map[string]any{"amount": float64(10)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Eval(map[string]any{"amount": float64(-5)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompiler_BalanceConsistency(t *testing.T) {
	c := NewCompiler()

	src := `abs(row["balance_after"] - (row["balance_before"] - abs(row["amount"]) ` +
		`if row["transaction_type"] in ("withdrawal", "payment", "transfer") ` +
		`else row["balance_before"] + abs(row["amount"]))) <= 0.01`

	expr, err := c.Compile(src)
	require.NoError(t, err)

	tests := []struct {
		name string
		row  map[string]any
		want bool
	}{
		{
			name: "consistent deposit",
			row: map[string]any{
				"transaction_type": "deposit",
				"amount":           float64(100),
				"balance_before":   float64(1000),
				"balance_after":    float64(1100),
			},
			want: true,
		},
		{
			name: "consistent withdrawal",
			row: map[string]any{
				"transaction_type": "withdrawal",
				"amount":           float64(100),
				"balance_before":   float64(1000),
				"balance_after":    float64(900),
			},
			want: true,
		},
		{
			name: "negated amount still consistent",
			row: map[string]any{
				"transaction_type": "payment",
				"amount":           float64(-100),
				"balance_before":   float64(1000),
				"balance_after":    float64(900),
			},
			want: true,
		},
		{
			name: "inconsistent balance",
			row: map[string]any{
				"transaction_type": "deposit",
				"amount":           float64(100),
				"balance_before":   float64(1000),
				"balance_after":    float64(1000),
			},
			want: false,
		},
		{
			name: "within tolerance",
			row: map[string]any{
				"transaction_type": "deposit",
				"amount":           float64(100),
				"balance_before":   float64(1000),
				"balance_after":    float64(1100.009),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expr.Eval(tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompiler_RowGetDefault(t *testing.T) {
	c := NewCompiler()

	expr, err := c.Compile(`row.get("agent_id", "") != ""`)
	require.NoError(t, err)

	ok, err := expr.Eval(map[string]any{"agent_id": "AGT-123"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Eval(map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompiler_MatchesBuiltin(t *testing.T) {
	c := NewCompiler()

	expr, err := c.Compile(`matches("^CLM-[0-9A-F]{8}$", row["claim_id"])`)
	require.NoError(t, err)

	ok, err := expr.Eval(map[string]any{"claim_id": "CLM-1A2B3C4D"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Eval(map[string]any{"claim_id": "nope"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompiler_Truthiness(t *testing.T) {
	c := NewCompiler()

	// Non-bool results are interpreted through Starlark truth.
	expr, err := c.Compile(`row["name"]`)
	require.NoError(t, err)

	ok, err := expr.Eval(map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Eval(map[string]any{"name": ""})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompiler_SyntaxError(t *testing.T) {
	c := NewCompiler()

	_, err := c.Compile(`row[`)
	require.Error(t, err)

	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, evalErr.Error(), "error evaluating")
}

func TestCompiler_EmptyExpression(t *testing.T) {
	c := NewCompiler()

	_, err := c.Compile("   ")
	require.Error(t, err)
}

func TestCompiler_MissingKeyErrors(t *testing.T) {
	c := NewCompiler()

	expr, err := c.Compile(`row["missing"] > 0`)
	require.NoError(t, err)

	_, err = expr.Eval(map[string]any{"present": 1})
	require.Error(t, err)
}

func TestCompiler_StepLimit(t *testing.T) {
	c := NewCompiler()

	expr, err := c.Compile(`len([x for x in range(10000000)]) > 0`)
	require.NoError(t, err)

	_, err = expr.Eval(map[string]any{})
	require.Error(t, err)
}

func TestCompiler_CachesCompiledExpressions(t *testing.T) {
	c := NewCompiler()

	first, err := c.Compile(`row["a"] == 1`)
	require.NoError(t, err)

	second, err := c.Compile(`row["a"] == 1`)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestCompiler_TrailingComment(t *testing.T) {
	c := NewCompiler()

	expr, err := c.Compile(`row["a"] == 1  # exact match`)
	require.NoError(t, err)

	ok, err := expr.Eval(map[string]any{"a": int64(1)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExpr_EvalValue(t *testing.T) {
	c := NewCompiler()

	expr, err := c.Compile(`row["amount"] * 2`)
	require.NoError(t, err)

	compiled, ok := expr.(*Expr)
	require.True(t, ok)

	v, err := compiled.EvalValue(map[string]any{"amount": float64(21)})
	require.NoError(t, err)
	assert.Equal(t, float64(42), v)
}
