// Package rules holds the quality-rule registry and the predicate evaluation
// engine used by the Silver layer.
//
// Rule definitions are pure data (core.QualityRule); this package knows how
// to store them per domain, order them deterministically (schema, then
// constraint, then business_rule) and evaluate their predicates against a
// Bronze dataset. Built-in rule packs live in pkg/rules/packs and register
// themselves via init(); additional packs can be loaded from YAML files with
// LoadDir.
package rules
