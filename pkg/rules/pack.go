package rules

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// Pack is a named group of rules loaded from a YAML file. Origin is
// the file path and doubles as the registry origin so a reload can
// swap exactly the rules that file contributed.
type Pack struct {
	Origin string
	Domain core.Domain
	Rules  []core.QualityRule
}

// packDocument is an internal type for YAML unmarshaling.
type packDocument struct {
	Domain string         `yaml:"domain"`
	Rules  []packRuleYAML `yaml:"rules"`
}

type packRuleYAML struct {
	Key         string        `yaml:"key"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	CheckType   string        `yaml:"check_type"`
	Severity    string        `yaml:"severity"`
	Predicate   predicateYAML `yaml:"predicate"`
}

type predicateYAML struct {
	Kind    string          `yaml:"kind"`
	Fields  []fieldSpecYAML `yaml:"fields"`
	Field   string          `yaml:"field"`
	Min     *float64        `yaml:"min"`
	Max     *float64        `yaml:"max"`
	Values  []string        `yaml:"values"`
	Pattern string          `yaml:"pattern"`
	Left    string          `yaml:"left"`
	Op      string          `yaml:"op"`
	Right   string          `yaml:"right"`
	Expr    string          `yaml:"expr"`
}

type fieldSpecYAML struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// ParsePack parses a YAML rule pack. Unknown YAML fields are rejected
// so typos surface as errors instead of silently inert rules.
func ParsePack(origin string, data []byte) (*Pack, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc packDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse pack %s: %v", core.ErrInvalid, origin, err)
	}

	domain, ok := core.ParseDomain(doc.Domain)
	if !ok {
		return nil, fmt.Errorf("%w: pack %s: unknown domain %q", core.ErrInvalid, origin, doc.Domain)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("%w: pack %s: no rules defined", core.ErrInvalid, origin)
	}

	pack := &Pack{Origin: origin, Domain: domain}
	seen := make(map[string]struct{}, len(doc.Rules))
	for i := range doc.Rules {
		rule, err := doc.Rules[i].toRule(domain)
		if err != nil {
			return nil, fmt.Errorf("pack %s: rule %d (%s): %w", origin, i+1, doc.Rules[i].Key, err)
		}
		if _, dup := seen[rule.Key]; dup {
			return nil, fmt.Errorf("%w: pack %s: duplicate rule key %q", core.ErrInvalid, origin, rule.Key)
		}
		seen[rule.Key] = struct{}{}
		pack.Rules = append(pack.Rules, rule)
	}
	return pack, nil
}

func (y *packRuleYAML) toRule(domain core.Domain) (core.QualityRule, error) {
	severity, ok := core.ParseSeverity(y.Severity)
	if !ok && y.Severity != "" {
		return core.QualityRule{}, fmt.Errorf("%w: unknown severity %q", core.ErrInvalid, y.Severity)
	}

	rule := core.QualityRule{
		Key:         y.Key,
		Domain:      domain,
		CheckType:   core.CheckType(y.CheckType),
		Name:        y.Name,
		Description: y.Description,
		Severity:    severity,
		Predicate: core.Predicate{
			Kind:    core.PredicateKind(y.Predicate.Kind),
			Field:   y.Predicate.Field,
			Min:     y.Predicate.Min,
			Max:     y.Predicate.Max,
			Values:  y.Predicate.Values,
			Pattern: y.Predicate.Pattern,
			Left:    y.Predicate.Left,
			Op:      core.CompareOp(y.Predicate.Op),
			Right:   y.Predicate.Right,
			Expr:    y.Predicate.Expr,
		},
	}
	for _, f := range y.Predicate.Fields {
		rule.Predicate.Fields = append(rule.Predicate.Fields, core.FieldSpec{
			Name:     f.Name,
			Type:     core.FieldType(f.Type),
			Required: f.Required,
		})
	}
	if err := rule.Validate(); err != nil {
		return core.QualityRule{}, err
	}
	return rule, nil
}

// LoadPackFile reads and parses a single pack file.
func LoadPackFile(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pack %s: %w", path, err)
	}
	return ParsePack(path, data)
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by name.
// Subdirectories are not descended into.
func LoadDir(dir string) ([]*Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pack dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	packs := make([]*Pack, 0, len(names))
	for _, name := range names {
		pack, err := LoadPackFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, nil
}

// ApplyDir loads the packs in dir into the registry, replacing any
// rules previously loaded from the same files. Returns the number of
// rules applied. All files are parsed and validated before any rules
// are swapped in, so a malformed pack leaves the registry untouched.
func ApplyDir(reg *Registry, dir string) (int, error) {
	packs, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, pack := range packs {
		if err := reg.ReplaceOrigin(pack.Origin, pack.Rules); err != nil {
			return total, fmt.Errorf("apply pack %s: %w", pack.Origin, err)
		}
		total += len(pack.Rules)
	}
	return total, nil
}
