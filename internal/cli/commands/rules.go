package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdq/internal/cli/output"
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

// RulesOptions holds options for the rules command.
type RulesOptions struct {
	Domain  string // Filter by domain
	Verbose bool   // Show descriptions and predicates
}

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	opts := &RulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules [rule-key]",
		Short: "List quality rules",
		Long: `List the quality rules the Silver layer applies, grouped by domain and
check type. Built-in packs are always present; packs in the rules
directory overlay them.

Use --verbose to see descriptions and the predicate each rule evaluates.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # List all rules
  leapdq rules

  # Show details for a specific rule
  leapdq rules SC01

  # List banking rules only
  leapdq rules --domain banking

  # Show full documentation
  leapdq rules -V

  # Output as JSON
  leapdq rules --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showRule(cmd, args[0])
			}
			return listRules(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Domain, "domain", "d", "", "Filter by domain: insurance, banking, custom")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "V", false, "Show descriptions and predicates")

	return cmd
}

// commandRegistry builds the rule registry the same way the pipeline
// does: built-in packs plus the project's rules directory.
func commandRegistry(cmdCtx *CommandContext) (*rules.Registry, error) {
	if cmdCtx.Registry != nil {
		return cmdCtx.Registry, nil
	}
	return loadRegistry(cmdCtx.Cfg)
}

func listRules(cmd *cobra.Command, opts *RulesOptions) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	r := cmdCtx.Renderer

	registry, err := commandRegistry(cmdCtx)
	if err != nil {
		return err
	}

	all := registry.All()
	if opts.Domain != "" {
		domain, ok := core.ParseDomain(opts.Domain)
		if !ok {
			return fmt.Errorf("unknown domain %q (want insurance, banking or custom)", opts.Domain)
		}
		filtered := all[:0]
		for _, rule := range all {
			if rule.Domain == domain {
				filtered = append(filtered, rule)
			}
		}
		all = filtered
	}

	// Sort by domain, then check type, then key
	sort.Slice(all, func(i, j int) bool {
		if all[i].Domain != all[j].Domain {
			return all[i].Domain < all[j].Domain
		}
		if all[i].CheckType != all[j].CheckType {
			return all[i].CheckType < all[j].CheckType
		}
		return all[i].Key < all[j].Key
	})

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return listRulesJSON(r, all)
	case output.ModeMarkdown:
		return listRulesMarkdown(r, all, opts.Verbose)
	default:
		return listRulesText(r, all, opts.Verbose)
	}
}

func showRule(cmd *cobra.Command, key string) error {
	cmdCtx := NewCommandContextWithoutStore(cmd)
	r := cmdCtx.Renderer

	registry, err := commandRegistry(cmdCtx)
	if err != nil {
		return err
	}

	rule, ok := registry.Lookup(key)
	if !ok {
		rule, ok = registry.Lookup(strings.ToUpper(key))
	}
	if !ok {
		return fmt.Errorf("rule %q not found", key)
	}
	origin, _ := registry.Origin(rule.Key)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(struct {
			core.QualityRule
			Origin string `json:"origin"`
		}{rule, origin})
	case output.ModeMarkdown:
		return showRuleMarkdown(r, rule, origin)
	default:
		return showRuleText(r, rule, origin)
	}
}

// checkTypeLabel maps a check type to its section heading.
func checkTypeLabel(ct core.CheckType) string {
	switch ct {
	case core.CheckSchema:
		return "Schema Checks"
	case core.CheckConstraint:
		return "Constraint Checks"
	case core.CheckBusinessRule:
		return "Business Rules"
	default:
		return capitalizeFirst(string(ct))
	}
}

// listRulesText outputs rules in styled text format.
func listRulesText(r *output.Renderer, all []core.QualityRule, verbose bool) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("Quality Rules (%d total)", len(all))))
	r.Println("")

	currentDomain := core.Domain("")
	currentType := core.CheckType("")

	for _, rule := range all {
		if rule.Domain != currentDomain {
			currentDomain = rule.Domain
			currentType = ""
			r.Println(styles.Header2.Render(capitalizeFirst(string(currentDomain)) + " Rules"))
			r.Println("")
		}

		if rule.CheckType != currentType {
			currentType = rule.CheckType
			r.Println(styles.Bold.Render("  " + checkTypeLabel(currentType)))
		}

		severityStyle := styles.SeverityStyle(string(rule.Severity))
		r.Printf("    %s  %s - %s\n",
			styles.Muted.Render(rule.Key),
			rule.Name,
			severityStyle.Render(string(rule.Severity)),
		)

		if verbose {
			if rule.Description != "" {
				r.Println(styles.Muted.Render("        " + rule.Description))
			}
			r.Println(styles.Muted.Render("        Checks: " + describePredicate(rule.Predicate)))
			r.Println("")
		}
	}

	r.Println("")
	r.Println(styles.Muted.Render("Use 'leapdq rules <rule-key>' for detailed documentation"))
	r.Println("")

	return nil
}

// listRulesMarkdown outputs rules in markdown format.
func listRulesMarkdown(r *output.Renderer, all []core.QualityRule, verbose bool) error {
	r.Println("# Quality Rules")
	r.Println("")

	currentDomain := core.Domain("")
	currentType := core.CheckType("")

	for _, rule := range all {
		if rule.Domain != currentDomain {
			currentDomain = rule.Domain
			currentType = ""
			r.Println("## " + capitalizeFirst(string(currentDomain)) + " Rules")
			r.Println("")
		}

		if rule.CheckType != currentType {
			currentType = rule.CheckType
			r.Println("### " + checkTypeLabel(currentType))
			r.Println("")
		}

		r.Printf("- **%s** - %s (`%s`)\n", rule.Key, rule.Name, rule.Severity)
		if verbose {
			if rule.Description != "" {
				r.Println("  " + rule.Description)
			}
			r.Println("  > " + describePredicate(rule.Predicate))
		}
	}

	r.Println("")
	return nil
}

// RulesJSONOutput is the JSON output structure for the rules listing.
type RulesJSONOutput struct {
	Rules []core.QualityRule `json:"rules"`
	Count struct {
		ByDomain map[string]int `json:"by_domain"`
		Total    int            `json:"total"`
	} `json:"count"`
}

// listRulesJSON outputs rules in JSON format.
func listRulesJSON(r *output.Renderer, all []core.QualityRule) error {
	jsonOutput := RulesJSONOutput{Rules: all}
	jsonOutput.Count.ByDomain = make(map[string]int)

	for _, rule := range all {
		jsonOutput.Count.ByDomain[string(rule.Domain)]++
	}
	jsonOutput.Count.Total = len(all)

	return r.JSON(jsonOutput)
}

// showRuleText displays detailed rule info in text format.
func showRuleText(r *output.Renderer, rule core.QualityRule, origin string) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("%s - %s", rule.Key, rule.Name)))
	r.Println("")

	r.Printf("  %s: %s\n", styles.Bold.Render("Domain"), rule.Domain)
	r.Printf("  %s: %s\n", styles.Bold.Render("Check Type"), rule.CheckType)
	r.Printf("  %s: %s\n", styles.Bold.Render("Severity"), styles.SeverityStyle(string(rule.Severity)).Render(string(rule.Severity)))
	if origin != "" {
		r.Printf("  %s: %s\n", styles.Bold.Render("Origin"), origin)
	}
	r.Println("")

	if rule.Description != "" {
		r.Println(styles.Bold.Render("Description"))
		r.Println("  " + rule.Description)
		r.Println("")
	}

	r.Println(styles.Bold.Render("Predicate"))
	r.Printf("  %s: %s\n", rule.Predicate.Kind, describePredicate(rule.Predicate))

	if rule.Predicate.Kind == core.PredicateSchema {
		r.Println("")
		r.Println(styles.Bold.Render("Fields"))
		for _, f := range rule.Predicate.Fields {
			required := ""
			if f.Required {
				required = " (required)"
			}
			r.Printf("  %s: %s%s\n", f.Name, f.Type, required)
		}
	}
	if rule.Predicate.Kind == core.PredicateExpr {
		r.Println("")
		r.Println(styles.Bold.Render("Expression"))
		for _, line := range strings.Split(rule.Predicate.Expr, "\n") {
			r.Println(styles.Muted.Render("  " + line))
		}
	}
	r.Println("")

	return nil
}

// showRuleMarkdown displays detailed rule info in markdown format.
func showRuleMarkdown(r *output.Renderer, rule core.QualityRule, origin string) error {
	r.Printf("# %s - %s\n\n", rule.Key, rule.Name)
	r.Printf("**Domain:** %s | **Type:** %s | **Severity:** `%s`\n\n", rule.Domain, rule.CheckType, rule.Severity)
	if origin != "" {
		r.Println(output.FormatKeyValue("Origin", origin))
		r.Println("")
	}
	if rule.Description != "" {
		r.Println(rule.Description)
		r.Println("")
	}

	r.Println("## Predicate")
	r.Println("")
	r.Printf("Kind: `%s` - %s\n", rule.Predicate.Kind, describePredicate(rule.Predicate))
	r.Println("")

	if rule.Predicate.Kind == core.PredicateSchema {
		r.Println("| field | type | required |")
		r.Println("| --- | --- | --- |")
		for _, f := range rule.Predicate.Fields {
			r.Printf("| %s | %s | %t |\n", f.Name, f.Type, f.Required)
		}
		r.Println("")
	}
	if rule.Predicate.Kind == core.PredicateExpr {
		r.Println(output.FormatCodeBlock("python", rule.Predicate.Expr))
		r.Println("")
	}

	return nil
}

// describePredicate renders a one-line summary of what a predicate checks.
func describePredicate(p core.Predicate) string {
	switch p.Kind {
	case core.PredicateSchema:
		return fmt.Sprintf("%d declared fields present and coercible", len(p.Fields))
	case core.PredicateNotNull:
		return fmt.Sprintf("%s is not null", p.Field)
	case core.PredicateUnique:
		return fmt.Sprintf("%s is unique", p.Field)
	case core.PredicateRange:
		switch {
		case p.Min != nil && p.Max != nil:
			return fmt.Sprintf("%s in [%v, %v]", p.Field, *p.Min, *p.Max)
		case p.Min != nil:
			return fmt.Sprintf("%s >= %v", p.Field, *p.Min)
		case p.Max != nil:
			return fmt.Sprintf("%s <= %v", p.Field, *p.Max)
		default:
			return p.Field
		}
	case core.PredicateInSet:
		return fmt.Sprintf("%s in {%s}", p.Field, strings.Join(p.Values, ", "))
	case core.PredicateFormat:
		return fmt.Sprintf("%s matches %s", p.Field, p.Pattern)
	case core.PredicateCompare:
		return fmt.Sprintf("%s %s %s", p.Left, p.Op, p.Right)
	case core.PredicateExpr:
		return truncateOneLine(p.Expr, 80)
	default:
		return string(p.Kind)
	}
}

// Helper functions

func truncateOneLine(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
