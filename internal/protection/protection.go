// Package protection implements the Protection Kernel (SKULL): pre-dispatch
// and pre-emit evaluation of a proposed action against the active Tier 0
// rule set, fail-closed on any rule-engine error.
package protection

import (
	"github.com/cortex-ai/cortex/internal/cortexerr"
	"github.com/cortex-ai/cortex/internal/instinct"
	"github.com/cortex-ai/cortex/internal/logging"
	"go.uber.org/zap"
)

// Kernel wraps a Tier0 rule set with the ordered predicate lists each
// juncture evaluates.
type Kernel struct {
	tier0 *instinct.Tier0
	// preDispatch is run against the parsed intent and selected operation,
	// before any agent executes.
	preDispatch []string
	// preEmit is run against the rendered response and its effect summary,
	// before the response reaches the caller.
	preEmit []string
	log     *zap.Logger
}

// Config names which predicates run at each juncture. Predicate names not
// present in tier0 are a configuration error surfaced at New, not at
// evaluation time.
type Config struct {
	PreDispatch []string
	PreEmit     []string
}

// DefaultConfig matches the minimum predicate set the core ships.
func DefaultConfig() Config {
	return Config{
		PreDispatch: []string{"no_root_docs", "no_core_amnesia", "challenge_low_dor", "confidence_spike_guard"},
		PreEmit:     []string{"requires_mandatory_format", "no_root_docs"},
	}
}

// New builds a Kernel against tier0, validating that every configured
// predicate name resolves to a loaded rule.
func New(tier0 *instinct.Tier0, cfg Config) (*Kernel, error) {
	for _, name := range append(append([]string{}, cfg.PreDispatch...), cfg.PreEmit...) {
		if _, ok := tier0.GetRule(name); !ok {
			return nil, cortexerr.Wrap(cortexerr.ConfigurationErr, "protection kernel: unknown predicate "+name, nil)
		}
	}
	return &Kernel{
		tier0:       tier0,
		preDispatch: cfg.PreDispatch,
		preEmit:     cfg.PreEmit,
		log:         logging.For(logging.CategoryProtection),
	}, nil
}

// Result is the combined outcome of evaluating one ordered predicate list
// against one Context.
type Result struct {
	Blocked      bool
	RuleID       string
	Reason       string
	Alternatives []string
	Warnings     []instinct.Verdict
}

// evaluate runs predicates in order against ctx. The first blocking failure
// short-circuits and is returned; warnings accumulate across the whole list
// so the caller sees every one, not just the first.
func evaluate(tier0 *instinct.Tier0, predicates []string, ctx instinct.Context) Result {
	var warnings []instinct.Verdict
	for _, name := range predicates {
		v := tier0.Check(name, ctx)
		if v.Pass {
			continue
		}
		if v.Severity == instinct.SeverityWarning {
			warnings = append(warnings, v)
			continue
		}
		return Result{Blocked: true, RuleID: v.RuleID, Reason: v.Reason, Alternatives: v.Alternatives, Warnings: warnings}
	}
	return Result{Warnings: warnings}
}

// PreDispatch evaluates the parsed intent and selected operation before any
// agent executes. A blocking verdict must prevent dispatch entirely.
func (k *Kernel) PreDispatch(ctx instinct.Context) Result {
	result := evaluate(k.tier0, k.preDispatch, ctx)
	if result.Blocked {
		k.log.Warn("pre-dispatch blocked", zap.String("rule", result.RuleID), zap.String("reason", result.Reason))
	}
	return result
}

// PreEmit evaluates the proposed response payload and its effect summary
// before the response reaches the caller.
func (k *Kernel) PreEmit(ctx instinct.Context) Result {
	result := evaluate(k.tier0, k.preEmit, ctx)
	if result.Blocked {
		k.log.Warn("pre-emit blocked", zap.String("rule", result.RuleID), zap.String("reason", result.Reason))
	}
	return result
}

// AsError converts a blocked Result into a cortexerr BlockedByRule error
// naming the rule, the reason, and any suggested safer alternatives.
func (r Result) AsError() error {
	if !r.Blocked {
		return nil
	}
	return cortexerr.Blocked(r.RuleID, r.Reason, r.Alternatives...)
}
