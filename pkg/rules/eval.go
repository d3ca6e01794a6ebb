package rules

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// ctx cancellation is checked once per this many rows.
const cancelCheckStride = 256

// CompiledExpr is a reusable predicate compiled from an expression
// source. Eval is called once per row and must be safe for sequential
// reuse.
type CompiledExpr interface {
	Eval(row map[string]any) (bool, error)
}

// ExprCompiler turns expression source into a CompiledExpr. The
// concrete implementation lives outside this package so that rule
// evaluation stays independent of the scripting runtime.
type ExprCompiler interface {
	Compile(src string) (CompiledExpr, error)
}

// Violation describes a single row that failed a rule.
type Violation struct {
	RowIndex int
	RowID    string
	Field    string
	Value    any
	Message  string
}

// Outcome is the result of evaluating one rule against a dataset.
type Outcome struct {
	// Evaluated is the number of rows the rule actually saw.
	Evaluated int
	// Violations holds one entry per offending row and field, in row
	// order.
	Violations []Violation
}

// ViolatingRows returns the distinct row indexes that appear in the
// violations, preserving dataset order.
func (o *Outcome) ViolatingRows() []int {
	seen := make(map[int]struct{}, len(o.Violations))
	out := make([]int, 0, len(o.Violations))
	for _, v := range o.Violations {
		if _, ok := seen[v.RowIndex]; ok {
			continue
		}
		seen[v.RowIndex] = struct{}{}
		out = append(out, v.RowIndex)
	}
	return out
}

// EvalOptions carries evaluation dependencies.
type EvalOptions struct {
	// Compiler handles expr predicates. Evaluating an expr rule
	// without a compiler is an error.
	Compiler ExprCompiler
}

// Evaluate runs a rule's predicate over the eligible rows of a
// dataset. A nil eligible slice means every row. The returned error
// reports a broken rule (bad pattern, expression failure), not data
// violations; data violations land in the Outcome.
func Evaluate(ctx context.Context, rule core.QualityRule, ds *core.Dataset, eligible []int, opts EvalOptions) (*Outcome, error) {
	if eligible == nil {
		eligible = make([]int, len(ds.Rows))
		for i := range ds.Rows {
			eligible[i] = i
		}
	}

	p := rule.Predicate
	switch p.Kind {
	case core.PredicateSchema:
		return evalSchema(ctx, p.Fields, ds, eligible)
	case core.PredicateNotNull:
		return evalNotNull(ctx, p.Field, ds, eligible)
	case core.PredicateUnique:
		return evalUnique(ctx, p.Field, ds, eligible)
	case core.PredicateRange:
		return evalRange(ctx, p, ds, eligible)
	case core.PredicateInSet:
		return evalInSet(ctx, p, ds, eligible)
	case core.PredicateFormat:
		return evalFormat(ctx, p, ds, eligible)
	case core.PredicateCompare:
		return evalCompare(ctx, p, ds, eligible)
	case core.PredicateExpr:
		return evalExpr(ctx, p.Expr, ds, eligible, opts.Compiler)
	default:
		return nil, fmt.Errorf("%w: unsupported predicate kind %q", core.ErrRuleEvaluation, p.Kind)
	}
}

func checkCancel(ctx context.Context, i int) error {
	if i%cancelCheckStride == 0 {
		return ctx.Err()
	}
	return nil
}

func evalSchema(ctx context.Context, fields []core.FieldSpec, ds *core.Dataset, eligible []int) (*Outcome, error) {
	out := &Outcome{Evaluated: len(eligible)}
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		row := ds.Rows[i]
		for _, f := range fields {
			val, present := row.Values[f.Name]
			if !present || val == nil {
				if f.Required {
					out.Violations = append(out.Violations, Violation{
						RowIndex: i,
						RowID:    row.ID,
						Field:    f.Name,
						Value:    nil,
						Message:  fmt.Sprintf("required field %q is missing", f.Name),
					})
				}
				continue
			}
			if !coercible(val, f.Type) {
				out.Violations = append(out.Violations, Violation{
					RowIndex: i,
					RowID:    row.ID,
					Field:    f.Name,
					Value:    val,
					Message:  fmt.Sprintf("field %q is not a valid %s", f.Name, f.Type),
				})
			}
		}
	}
	return out, nil
}

// coercible reports whether a parsed value satisfies the declared
// field type. Ingestion already normalizes raw input, so only the
// parser's output types appear here.
func coercible(v any, t core.FieldType) bool {
	switch t {
	case core.FieldAny:
		return true
	case core.FieldString:
		_, ok := v.(string)
		return ok
	case core.FieldNumber:
		_, ok := asNumber(v)
		return ok
	case core.FieldInteger:
		switch n := v.(type) {
		case int64:
			return true
		case float64:
			return n == math.Trunc(n)
		default:
			return false
		}
	case core.FieldBoolean:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}

// FieldNotNullAll is the sentinel field name that makes a not_null
// predicate cover every column of the dataset.
const FieldNotNullAll = "*"

func evalNotNull(ctx context.Context, field string, ds *core.Dataset, eligible []int) (*Outcome, error) {
	out := &Outcome{Evaluated: len(eligible)}
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		row := ds.Rows[i]
		if field == FieldNotNullAll {
			for _, col := range ds.Columns {
				if isEmpty(row.Values[col]) {
					out.Violations = append(out.Violations, Violation{
						RowIndex: i,
						RowID:    row.ID,
						Field:    col,
						Value:    row.Values[col],
						Message:  fmt.Sprintf("field %q is empty", col),
					})
				}
			}
			continue
		}
		if val, present := row.Values[field]; !present || val == nil {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    field,
				Value:    nil,
				Message:  fmt.Sprintf("field %q is null", field),
			})
		}
	}
	return out, nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func evalUnique(ctx context.Context, field string, ds *core.Dataset, eligible []int) (*Outcome, error) {
	counts := make(map[string]int, len(eligible))
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		if v := ds.Rows[i].Values[field]; v != nil {
			counts[valueKey(v)]++
		}
	}

	out := &Outcome{Evaluated: len(eligible)}
	for _, i := range eligible {
		row := ds.Rows[i]
		v := row.Values[field]
		if v == nil {
			continue
		}
		if counts[valueKey(v)] > 1 {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    field,
				Value:    v,
				Message:  fmt.Sprintf("duplicate value in field %q", field),
			})
		}
	}
	return out, nil
}

// valueKey builds a type-tagged map key so that e.g. the string "1"
// and the number 1 never collide.
func valueKey(v any) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case int64:
		return "n:" + strconv.FormatFloat(float64(t), 'g', -1, 64)
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(t)
	default:
		return "o:" + fmt.Sprint(t)
	}
}

// Range, in_set, format and compare predicates skip null values: null
// handling is the business of not_null and schema rules, and double
// counting the same gap helps nobody.

func evalRange(ctx context.Context, p core.Predicate, ds *core.Dataset, eligible []int) (*Outcome, error) {
	out := &Outcome{Evaluated: len(eligible)}
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		row := ds.Rows[i]
		v := row.Values[p.Field]
		if v == nil {
			continue
		}
		num, ok := asNumber(v)
		if !ok {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    p.Field,
				Value:    v,
				Message:  fmt.Sprintf("field %q is not numeric", p.Field),
			})
			continue
		}
		if p.Min != nil && num < *p.Min {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    p.Field,
				Value:    v,
				Message:  fmt.Sprintf("value %s is below minimum %s", formatNumber(num), formatNumber(*p.Min)),
			})
			continue
		}
		if p.Max != nil && num > *p.Max {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    p.Field,
				Value:    v,
				Message:  fmt.Sprintf("value %s is above maximum %s", formatNumber(num), formatNumber(*p.Max)),
			})
		}
	}
	return out, nil
}

func evalInSet(ctx context.Context, p core.Predicate, ds *core.Dataset, eligible []int) (*Outcome, error) {
	allowed := make(map[string]struct{}, len(p.Values))
	for _, v := range p.Values {
		allowed[v] = struct{}{}
	}

	out := &Outcome{Evaluated: len(eligible)}
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		row := ds.Rows[i]
		v := row.Values[p.Field]
		if v == nil {
			continue
		}
		if _, ok := allowed[valueString(v)]; !ok {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    p.Field,
				Value:    v,
				Message:  fmt.Sprintf("value %q is not one of the allowed values", valueString(v)),
			})
		}
	}
	return out, nil
}

func evalFormat(ctx context.Context, p core.Predicate, ds *core.Dataset, eligible []int) (*Outcome, error) {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", core.ErrRuleEvaluation, p.Pattern, err)
	}

	out := &Outcome{Evaluated: len(eligible)}
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		row := ds.Rows[i]
		v := row.Values[p.Field]
		if v == nil {
			continue
		}
		if !re.MatchString(valueString(v)) {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    p.Field,
				Value:    v,
				Message:  fmt.Sprintf("value %q does not match pattern %s", valueString(v), p.Pattern),
			})
		}
	}
	return out, nil
}

func evalCompare(ctx context.Context, p core.Predicate, ds *core.Dataset, eligible []int) (*Outcome, error) {
	out := &Outcome{Evaluated: len(eligible)}
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		row := ds.Rows[i]
		lv, rv := row.Values[p.Left], row.Values[p.Right]
		if lv == nil || rv == nil {
			continue
		}
		ok, err := compareValues(lv, p.Op, rv)
		if err != nil {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    p.Left,
				Value:    lv,
				Message:  err.Error(),
			})
			continue
		}
		if !ok {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Field:    p.Left,
				Value:    lv,
				Message: fmt.Sprintf("expected %s %s %s but got %s vs %s",
					p.Left, p.Op, p.Right, valueString(lv), valueString(rv)),
			})
		}
	}
	return out, nil
}

// compareValues applies op to a pair of row values. Ordering operators
// need numbers on both sides; eq and ne also accept strings and bools.
func compareValues(left any, op core.CompareOp, right any) (bool, error) {
	ln, lok := asNumber(left)
	rn, rok := asNumber(right)
	if lok && rok {
		switch op {
		case core.CompareLE:
			return ln <= rn, nil
		case core.CompareLT:
			return ln < rn, nil
		case core.CompareGE:
			return ln >= rn, nil
		case core.CompareGT:
			return ln > rn, nil
		case core.CompareEQ:
			return ln == rn, nil
		case core.CompareNE:
			return ln != rn, nil
		}
	}
	if op == core.CompareEQ || op == core.CompareNE {
		eq := valueKey(left) == valueKey(right)
		if op == core.CompareNE {
			return !eq, nil
		}
		return eq, nil
	}
	return false, fmt.Errorf("operator %s requires numeric fields", op)
}

func evalExpr(ctx context.Context, src string, ds *core.Dataset, eligible []int, compiler ExprCompiler) (*Outcome, error) {
	if compiler == nil {
		return nil, fmt.Errorf("%w: no expression compiler configured", core.ErrRuleEvaluation)
	}
	compiled, err := compiler.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: compile expression: %v", core.ErrRuleEvaluation, err)
	}

	out := &Outcome{Evaluated: len(eligible)}
	for n, i := range eligible {
		if err := checkCancel(ctx, n); err != nil {
			return nil, err
		}
		row := ds.Rows[i]
		ok, err := compiled.Eval(row.Values)
		if err != nil {
			return nil, fmt.Errorf("%w: row %s: %v", core.ErrRuleEvaluation, row.ID, err)
		}
		if !ok {
			out.Violations = append(out.Violations, Violation{
				RowIndex: i,
				RowID:    row.ID,
				Value:    nil,
				Message:  "expression returned false",
			})
		}
	}
	return out, nil
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func valueString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
