package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

// OriginBuiltin marks rules registered from compiled-in packs.
const OriginBuiltin = "builtin"

type entry struct {
	rule   core.QualityRule
	origin string
	seq    int
}

// Registry stores quality rules keyed by rule key. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	nextSeq int
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

var globalRegistry = NewRegistry()

// Default returns the process-wide registry that built-in packs
// register into.
func Default() *Registry {
	return globalRegistry
}

// Register adds a rule definition to the global registry. It is meant
// to be called from init() in rule pack packages and panics on invalid
// definitions or duplicate keys, both of which are programming errors.
func Register(rule core.QualityRule) {
	if err := globalRegistry.Add(OriginBuiltin, rule); err != nil {
		panic(fmt.Sprintf("rules: register %s: %v", rule.Key, err))
	}
}

// Add validates a rule and stores it under the given origin. Keys are
// unique across the registry regardless of origin.
func (r *Registry) Add(origin string, rule core.QualityRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.entries[rule.Key]; ok && prev.origin != origin {
		return fmt.Errorf("%w: rule key %q already registered by %s", core.ErrInvalid, rule.Key, prev.origin)
	}
	r.entries[rule.Key] = entry{rule: rule, origin: origin, seq: r.nextSeq}
	r.nextSeq++
	return nil
}

// ReplaceOrigin atomically swaps every rule registered under origin for
// the given set. All rules are validated before any change is applied,
// so a bad pack never leaves the registry half-updated.
func (r *Registry) ReplaceOrigin(origin string, rules []core.QualityRule) error {
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("rule %s: %w", rules[i].Key, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, e := range r.entries {
		if e.origin == origin {
			delete(r.entries, key)
		}
	}
	for i := range rules {
		if prev, ok := r.entries[rules[i].Key]; ok {
			return fmt.Errorf("%w: rule key %q already registered by %s", core.ErrInvalid, rules[i].Key, prev.origin)
		}
		r.entries[rules[i].Key] = entry{rule: rules[i], origin: origin, seq: r.nextSeq}
		r.nextSeq++
	}
	return nil
}

// RemoveOrigin drops every rule registered under origin.
func (r *Registry) RemoveOrigin(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, e := range r.entries {
		if e.origin == origin {
			delete(r.entries, key)
		}
	}
}

// RulesFor returns the rules that apply to a domain, ordered for
// execution: schema rules first, then constraints, then business
// rules, with registration order breaking ties. The Silver layer
// relies on this ordering to exclude schema-violating rows before any
// later rule runs.
func (r *Registry) RulesFor(domain core.Domain) []core.QualityRule {
	r.mu.RLock()
	matched := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.rule.Domain == domain {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		ri, rj := matched[i].rule.CheckType.Rank(), matched[j].rule.CheckType.Rank()
		if ri != rj {
			return ri < rj
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]core.QualityRule, len(matched))
	for i := range matched {
		out[i] = matched[i].rule
	}
	return out
}

// Lookup returns the rule registered under key.
func (r *Registry) Lookup(key string) (core.QualityRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	return e.rule, ok
}

// Origin reports which origin registered the rule with the given key.
func (r *Registry) Origin(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	return e.origin, ok
}

// All returns every registered rule sorted by domain, execution rank
// and registration order.
func (r *Registry) All() []core.QualityRule {
	r.mu.RLock()
	matched := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		matched = append(matched, e)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].rule.Domain != matched[j].rule.Domain {
			return matched[i].rule.Domain < matched[j].rule.Domain
		}
		ri, rj := matched[i].rule.CheckType.Rank(), matched[j].rule.CheckType.Rank()
		if ri != rj {
			return ri < rj
		}
		return matched[i].seq < matched[j].seq
	})

	out := make([]core.QualityRule, len(matched))
	for i := range matched {
		out[i] = matched[i].rule
	}
	return out
}

// Domains returns the sorted set of domains that have at least one
// registered rule.
func (r *Registry) Domains() []core.Domain {
	r.mu.RLock()
	seen := make(map[core.Domain]struct{})
	for _, e := range r.entries {
		seen[e.rule.Domain] = struct{}{}
	}
	r.mu.RUnlock()

	out := make([]core.Domain, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Count returns the number of registered rules.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Clear removes all rules from the registry. Used for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]entry)
	r.nextSeq = 0
}

// RulesFor returns the globally registered rules for a domain in
// execution order.
func RulesFor(domain core.Domain) []core.QualityRule {
	return globalRegistry.RulesFor(domain)
}

// Lookup returns the globally registered rule with the given key.
func Lookup(key string) (core.QualityRule, bool) {
	return globalRegistry.Lookup(key)
}

// All returns every rule in the global registry.
func All() []core.QualityRule {
	return globalRegistry.All()
}

// Count returns the number of rules in the global registry.
func Count() int {
	return globalRegistry.Count()
}
