// Package instinct implements Tier 0: an immutable, versioned rule set
// loaded once at startup, queried at runtime, never mutated in-process.
// Replacing the rule set requires a process restart after a deliberate
// version bump.
package instinct

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// source is the on-disk shape of the instinct rules file.
type source struct {
	Rules []sourceRule `yaml:"rules"`
}

type sourceRule struct {
	ID         string `yaml:"id"`
	Layer      string `yaml:"layer"`
	Severity   string `yaml:"severity"`
	CheckerRef string `yaml:"checker_ref"`
	Message    string `yaml:"message"`
	Version    int    `yaml:"version"`
}

// Tier0 is the read-only, in-memory rule set, indexed by id and by layer.
type Tier0 struct {
	rules    map[string]Rule
	byLayer  map[Layer][]Rule
	registry *CheckerRegistry
}

// Load reads rules from path, verifies (id, version) uniqueness, and builds
// the layer index. A nonexistent or malformed source is a ConfigurationError.
func Load(path string, registry *CheckerRegistry) (*Tier0, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load instinct rules from %s: %w", path, err)
	}
	return LoadBytes(data, registry)
}

// LoadBytes parses raw YAML rule data, for callers embedding defaults rather
// than reading from disk.
func LoadBytes(data []byte, registry *CheckerRegistry) (*Tier0, error) {
	var src source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("parse instinct rules: %w", err)
	}

	t := &Tier0{
		rules:    make(map[string]Rule, len(src.Rules)),
		byLayer:  make(map[Layer][]Rule),
		registry: registry,
	}

	seen := make(map[Key]bool)
	for _, sr := range src.Rules {
		key := Key{ID: sr.ID, Version: sr.Version}
		if seen[key] {
			return nil, fmt.Errorf("duplicate rule (id=%s, version=%d)", sr.ID, sr.Version)
		}
		seen[key] = true

		if _, ok := registry.Get(sr.CheckerRef); !ok {
			return nil, fmt.Errorf("rule %s references unknown checker %q", sr.ID, sr.CheckerRef)
		}

		rule := Rule{
			ID:         sr.ID,
			Layer:      Layer(sr.Layer),
			Severity:   Severity(sr.Severity),
			CheckerRef: sr.CheckerRef,
			Message:    sr.Message,
			Version:    sr.Version,
		}
		t.rules[rule.ID] = rule
		t.byLayer[rule.Layer] = append(t.byLayer[rule.Layer], rule)
	}

	return t, nil
}

// GetRule returns the rule registered under id, if any.
func (t *Tier0) GetRule(id string) (Rule, bool) {
	r, ok := t.rules[id]
	return r, ok
}

// RulesForLayer returns all rules belonging to layer.
func (t *Tier0) RulesForLayer(layer Layer) []Rule {
	return t.byLayer[layer]
}

// AllRules returns every loaded rule, for iteration by the protection kernel.
func (t *Tier0) AllRules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	return out
}

// Check resolves predicateName's rule and runs its checker against ctx. A
// predicate that is not registered is treated as blocking: rule-engine
// errors fail closed rather than silently allowing the action.
func (t *Tier0) Check(predicateName string, ctx Context) Verdict {
	rule, ok := t.rules[predicateName]
	if !ok {
		return Verdict{RuleID: predicateName, Severity: SeverityBlocking, Pass: false, Reason: "unknown predicate " + predicateName}
	}
	checker, ok := t.registry.Get(rule.CheckerRef)
	if !ok {
		return Verdict{RuleID: rule.ID, Severity: SeverityBlocking, Pass: false, Reason: "unresolved checker " + rule.CheckerRef}
	}
	return checker(rule, ctx)
}
