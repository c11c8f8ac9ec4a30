// Package router implements the Intent Router: exact trigger match, keyword
// scan, pattern lookup, and fallback, followed by context-bundle assembly
// bounded by a token budget.
package router

import (
	"sort"
	"strings"

	"github.com/cortex-ai/cortex/internal/config"
	"github.com/cortex-ai/cortex/internal/devcontext"
	"github.com/cortex-ai/cortex/internal/knowledge"
	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/registry"
	"go.uber.org/zap"
)

// defaultAgent is routed to when nothing more specific matches.
const defaultAgent = "general"

// Router ties the Operation Registry, Tier 1, Tier 2, and Tier 3 together to
// produce a RoutingDecision for one incoming request.
type Router struct {
	ops       *registry.Registry
	memory    *memory.Store
	knowledge *knowledge.Store
	devctx    *devcontext.Store
	cfg       config.RouterConfig
	log       *zap.Logger
}

// New builds a Router over the given tier façades and operation table.
func New(ops *registry.Registry, mem *memory.Store, kn *knowledge.Store, dev *devcontext.Store, cfg config.RouterConfig) *Router {
	return &Router{ops: ops, memory: mem, knowledge: kn, devctx: dev, cfg: cfg, log: logging.For(logging.CategoryRouter)}
}

// Route resolves text to a RoutingDecision: exact trigger match against the
// Operation Registry, then a keyword scan, then a Tier 2 pattern lookup,
// then fallback to the general intent.
func (r *Router) Route(text, namespace string) (RoutingDecision, error) {
	if op, phrase, ok := r.ops.MatchTriggerPhrase(text); ok {
		decision := RoutingDecision{Intent: IntentExecute, Agent: op.ID, Confidence: 1.0, Confirmation: ConfirmationAuto, MatchedVia: "exact_trigger", MatchedTrigger: phrase}
		return r.withContextBundle(decision, text, namespace)
	}

	intent := KeywordScan(text)
	if intent != IntentGeneral {
		decision := RoutingDecision{Intent: intent, Agent: defaultAgent, Confidence: 0.6, Confirmation: ConfirmationAuto, MatchedVia: "keyword_scan"}
		return r.withContextBundle(decision, text, namespace)
	}

	if r.knowledge != nil {
		scored, err := r.knowledge.FindPatternByTriggers([]string{text})
		if err != nil {
			return RoutingDecision{}, err
		}
		if len(scored) > 0 {
			top := scored[0]
			switch {
			case top.Pattern.Confidence >= r.cfg.AutoRouteConfidence:
				decision := RoutingDecision{Intent: IntentKind(top.Pattern.PatternType), Agent: top.Pattern.RoutesTo, Confidence: top.Pattern.Confidence, Confirmation: ConfirmationAuto, MatchedVia: "pattern_lookup", PatternID: top.Pattern.PatternID}
				return r.withContextBundle(decision, text, namespace)
			case top.Pattern.Confidence >= r.cfg.SuggestConfirmConfidence:
				decision := RoutingDecision{Intent: IntentKind(top.Pattern.PatternType), Agent: top.Pattern.RoutesTo, Confidence: top.Pattern.Confidence, Confirmation: ConfirmationSuggest, MatchedVia: "pattern_lookup", PatternID: top.Pattern.PatternID}
				return r.withContextBundle(decision, text, namespace)
			}
		}
	}

	decision := RoutingDecision{Intent: IntentGeneral, Agent: defaultAgent, Confidence: 0, Confirmation: ConfirmationAuto, MatchedVia: "fallback"}
	return r.withContextBundle(decision, text, namespace)
}

// withContextBundle assembles the bounded context bundle and attaches it to
// decision before returning. The router never fails the request by itself:
// a tier read error is logged and that source is simply omitted.
func (r *Router) withContextBundle(decision RoutingDecision, text, namespace string) (RoutingDecision, error) {
	var items []ContextItem

	if r.memory != nil {
		turns, err := r.memory.GetRecentTurns(r.cfg.RecentTurnWindow)
		if err != nil {
			r.log.Warn("context bundle: recent turns unavailable", zap.Error(err))
		}
		for i, t := range turns {
			score := 1.0 - float64(i)*0.1
			items = append(items, ContextItem{Kind: "turn", Text: t.Content, Score: score, Tokens: estimateTokens(t.Content)})
		}
	}

	if r.knowledge != nil {
		scored, err := r.knowledge.FindPatternByTriggers([]string{text})
		if err != nil {
			r.log.Warn("context bundle: pattern lookup unavailable", zap.Error(err))
		}
		sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
		for i, sp := range scored {
			if i >= r.cfg.TopPatterns {
				break
			}
			items = append(items, ContextItem{Kind: "pattern", Text: sp.Pattern.Title, Score: sp.Score, Tokens: estimateTokens(sp.Pattern.Title)})
		}
	}

	if r.devctx != nil {
		metrics, err := r.devctx.GetMetrics(namespace, []string{"lines_changed", "build_duration_seconds", "test_pass_rate"})
		if err != nil {
			r.log.Warn("context bundle: metrics unavailable", zap.Error(err))
		}
		for _, m := range metrics {
			text := m.Name
			items = append(items, ContextItem{Kind: "metric", Text: text, Score: 0.5, Tokens: estimateTokens(text)})
		}
	}

	if r.knowledge != nil {
		insights, err := r.knowledge.InsightsAtOrAbove(knowledge.ImpactMedium)
		if err != nil {
			r.log.Warn("context bundle: insights unavailable", zap.Error(err))
		}
		queryTokens := strings.Fields(strings.ToLower(text))
		for _, ins := range insights {
			if !mentionsAny(ins.Issue, queryTokens) {
				continue
			}
			items = append(items, ContextItem{Kind: "insight", Text: ins.Issue, Score: ins.Confidence, Tokens: estimateTokens(ins.Issue)})
		}
	}

	decision.ContextBundle = truncateToBudget(items, r.cfg.TokenBudget)
	return decision, nil
}

func mentionsAny(text string, tokens []string) bool {
	lower := strings.ToLower(text)
	for _, t := range tokens {
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// truncateToBudget drops the lowest-scored items first until the remaining
// total token count fits within budget.
func truncateToBudget(items []ContextItem, budget int) []ContextItem {
	total := 0
	for _, it := range items {
		total += it.Tokens
	}
	if total <= budget {
		return items
	}
	sorted := append([]ContextItem{}, items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var kept []ContextItem
	running := 0
	for _, it := range sorted {
		if running+it.Tokens > budget {
			continue
		}
		kept = append(kept, it)
		running += it.Tokens
	}
	return kept
}

func estimateTokens(s string) int {
	return len(strings.Fields(s))
}
