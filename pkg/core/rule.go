package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// =============================================================================
// Check types
// =============================================================================

// CheckType classifies a quality rule. Execution order is schema first, then
// constraint, then business_rule, so schema failures can exclude rows before
// any other rule sees them.
type CheckType string

// Check type constants.
const (
	CheckSchema       CheckType = "schema"
	CheckConstraint   CheckType = "constraint"
	CheckBusinessRule CheckType = "business_rule"
)

// Valid reports whether c is a known check type.
func (c CheckType) Valid() bool {
	return c == CheckSchema || c == CheckConstraint || c == CheckBusinessRule
}

// Rank returns the execution order of the check type: schema rules run before
// constraint rules, which run before business rules.
func (c CheckType) Rank() int {
	switch c {
	case CheckSchema:
		return 0
	case CheckConstraint:
		return 1
	case CheckBusinessRule:
		return 2
	default:
		return 3
	}
}

// =============================================================================
// Predicates
// =============================================================================

// PredicateKind discriminates the Predicate tagged variant.
type PredicateKind string

// Predicate kinds.
const (
	// PredicateSchema checks field presence and type coercibility per Fields.
	PredicateSchema PredicateKind = "schema"
	// PredicateNotNull flags rows whose Field is nil or missing.
	PredicateNotNull PredicateKind = "not_null"
	// PredicateUnique flags rows whose Field value occurs more than once in
	// the dataset.
	PredicateUnique PredicateKind = "unique"
	// PredicateRange flags rows whose numeric Field is outside [Min, Max].
	PredicateRange PredicateKind = "range"
	// PredicateInSet flags rows whose Field is not one of Values.
	PredicateInSet PredicateKind = "in_set"
	// PredicateFormat flags rows whose Field does not match Pattern.
	PredicateFormat PredicateKind = "format"
	// PredicateCompare flags rows where "Left Op Right" is false for two
	// numeric fields of the same row.
	PredicateCompare PredicateKind = "compare"
	// PredicateExpr flags rows where the Starlark expression Expr evaluates
	// to false. The expression sees the row as a dict named "row".
	PredicateExpr PredicateKind = "expr"
)

// FieldType declares the expected type of a field in a schema predicate.
type FieldType string

// Field types accepted by schema predicates. Integer values coerce to
// number; "any" accepts every non-nil value.
const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldAny     FieldType = "any"
)

// FieldSpec is one expected field of a schema predicate.
type FieldSpec struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
}

// CompareOp is the operator of a compare predicate.
type CompareOp string

// Compare operators.
const (
	CompareLE CompareOp = "le"
	CompareLT CompareOp = "lt"
	CompareGE CompareOp = "ge"
	CompareGT CompareOp = "gt"
	CompareEQ CompareOp = "eq"
	CompareNE CompareOp = "ne"
)

// Valid reports whether op is a known compare operator.
func (op CompareOp) Valid() bool {
	switch op {
	case CompareLE, CompareLT, CompareGE, CompareGT, CompareEQ, CompareNE:
		return true
	}
	return false
}

// Predicate is the tagged definition of what a rule checks. Kind selects the
// variant; only the fields of that variant are set. Predicates are pure data
// so they serialize into the rule store and fingerprint deterministically.
type Predicate struct {
	Kind PredicateKind `json:"kind"`

	// schema
	Fields []FieldSpec `json:"fields,omitempty"`

	// not_null, unique, range, in_set, format
	Field string `json:"field,omitempty"`

	// range
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// in_set
	Values []string `json:"values,omitempty"`

	// format
	Pattern string `json:"pattern,omitempty"`

	// compare
	Left  string    `json:"left,omitempty"`
	Op    CompareOp `json:"op,omitempty"`
	Right string    `json:"right,omitempty"`

	// expr
	Expr string `json:"expr,omitempty"`
}

// Validate checks that the predicate's variant fields are complete.
func (p Predicate) Validate() error {
	switch p.Kind {
	case PredicateSchema:
		if len(p.Fields) == 0 {
			return fmt.Errorf("%w: schema predicate requires fields", ErrInvalid)
		}
		for _, f := range p.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: schema field with empty name", ErrInvalid)
			}
			switch f.Type {
			case FieldString, FieldNumber, FieldInteger, FieldBoolean, FieldAny, "":
			default:
				return fmt.Errorf("%w: unknown field type %q", ErrInvalid, f.Type)
			}
		}
	case PredicateNotNull, PredicateUnique:
		if p.Field == "" {
			return fmt.Errorf("%w: %s predicate requires a field", ErrInvalid, p.Kind)
		}
	case PredicateRange:
		if p.Field == "" {
			return fmt.Errorf("%w: range predicate requires a field", ErrInvalid)
		}
		if p.Min == nil && p.Max == nil {
			return fmt.Errorf("%w: range predicate requires min or max", ErrInvalid)
		}
	case PredicateInSet:
		if p.Field == "" || len(p.Values) == 0 {
			return fmt.Errorf("%w: in_set predicate requires a field and values", ErrInvalid)
		}
	case PredicateFormat:
		if p.Field == "" || p.Pattern == "" {
			return fmt.Errorf("%w: format predicate requires a field and pattern", ErrInvalid)
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("%w: bad format pattern: %v", ErrInvalid, err)
		}
	case PredicateCompare:
		if p.Left == "" || p.Right == "" {
			return fmt.Errorf("%w: compare predicate requires left and right fields", ErrInvalid)
		}
		if !p.Op.Valid() {
			return fmt.Errorf("%w: unknown compare operator %q", ErrInvalid, p.Op)
		}
	case PredicateExpr:
		if p.Expr == "" {
			return fmt.Errorf("%w: expr predicate requires an expression", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown predicate kind %q", ErrInvalid, p.Kind)
	}
	return nil
}

// =============================================================================
// Quality rules
// =============================================================================

// QualityRule is a versioned quality check definition. Key is the stable
// registry identifier (e.g. "BR01"); ID and Version identify the pinned,
// persisted revision a check result references. A persisted rule revision is
// immutable: editing a rule's definition pins a new version, it never mutates
// a revision that completed runs point at.
type QualityRule struct {
	ID          string    `json:"id,omitempty"`
	Key         string    `json:"key"`
	Domain      Domain    `json:"domain"`
	Version     int       `json:"version,omitempty"`
	CheckType   CheckType `json:"check_type"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Severity    Severity  `json:"severity"`
	Predicate   Predicate `json:"predicate"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Validate checks the rule definition for completeness.
func (r QualityRule) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("%w: rule key is required", ErrInvalid)
	}
	if !r.Domain.Valid() {
		return fmt.Errorf("%w: rule %s: unknown domain %q", ErrInvalid, r.Key, r.Domain)
	}
	if !r.CheckType.Valid() {
		return fmt.Errorf("%w: rule %s: unknown check type %q", ErrInvalid, r.Key, r.CheckType)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: rule %s: name is required", ErrInvalid, r.Key)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: rule %s: unknown severity %q", ErrInvalid, r.Key, r.Severity)
	}
	if err := r.Predicate.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.Key, err)
	}
	return nil
}

// fingerprintPayload is the canonical subset of a rule that determines its
// version. Field order is fixed by the struct, so the JSON encoding is stable.
type fingerprintPayload struct {
	Key       string    `json:"key"`
	Domain    Domain    `json:"domain"`
	CheckType CheckType `json:"check_type"`
	Name      string    `json:"name"`
	Severity  Severity  `json:"severity"`
	Predicate Predicate `json:"predicate"`
}

// Fingerprint returns a stable hash of the rule's definition. Two rules with
// the same fingerprint are the same revision; a changed definition yields a
// new fingerprint and therefore a new pinned version.
func (r QualityRule) Fingerprint() string {
	b, _ := json.Marshal(fingerprintPayload{
		Key:       r.Key,
		Domain:    r.Domain,
		CheckType: r.CheckType,
		Name:      r.Name,
		Severity:  r.Severity,
		Predicate: r.Predicate,
	})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
