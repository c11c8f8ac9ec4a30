// Package formatter implements the Response Formatter (C11): it chooses a
// template for a dispatched request's result and assembles the final
// user-visible text, falling back to a safe template whenever the chosen
// one is missing, fails to render, or would omit the mandatory structure.
package formatter

import (
	"fmt"
	"strings"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/protection"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/cortex-ai/cortex/internal/templates"
	"go.uber.org/zap"
)

// Formatter satisfies dispatcher.Renderer.
type Formatter struct {
	loader *templates.Loader
	log    *zap.Logger
}

// New builds a Formatter over loader, which must already have FallbackID
// registered to a real template.
func New(loader *templates.Loader) *Formatter {
	return &Formatter{loader: loader, log: logging.For(logging.CategoryFormatter)}
}

// Render chooses a template by (a) intent mapping, (b) trigger mapping,
// (c) an explicit hint on the AgentResult, (d) the fallback template, then
// substitutes placeholders and assembles the final text. If the chosen
// template is unknown, fails to render, or its rendered output omits the
// mandatory structure, Render re-wraps using the fallback template instead
// of emitting malformed output.
func (f *Formatter) Render(result dispatcher.AgentResult, decision router.RoutingDecision) (dispatcher.RenderedResponse, error) {
	id := f.chooseTemplate(result, decision)
	subs := f.buildSubstitutions(result, decision)

	text, sections, err := f.loader.Render(id, subs)
	if err == nil && hasMandatorySections(sections) {
		return dispatcher.RenderedResponse{Text: text, Sections: sections, TemplateID: id}, nil
	}

	if err != nil {
		f.log.Warn("template render failed, falling back", zap.String("template", id), zap.Error(err))
	} else {
		f.log.Warn("rendered response missing mandatory sections, re-wrapping with fallback", zap.String("template", id))
	}

	fallbackID := f.loader.FallbackID()
	if id == fallbackID {
		// Already tried the fallback and it's still broken: nothing safer to
		// fall back to, so surface the render error.
		if err != nil {
			return dispatcher.RenderedResponse{}, err
		}
		return dispatcher.RenderedResponse{Text: text, Sections: sections, TemplateID: id}, nil
	}

	text, sections, err = f.loader.Render(fallbackID, subs)
	if err != nil {
		return dispatcher.RenderedResponse{}, err
	}
	return dispatcher.RenderedResponse{Text: text, Sections: sections, TemplateID: fallbackID}, nil
}

// blockedTemplateID is looked up first when rendering a refusal; a template
// file that doesn't define it still renders refusals through the fallback.
const blockedTemplateID = "blocked"

// RenderBlocked wraps a protection refusal in the mandatory structure, so a
// blocked request reaches the caller through the same template path as any
// other response: the rule and reason land in the challenge and response
// sections, and the rule's suggested safer alternatives become the next
// steps.
func (f *Formatter) RenderBlocked(result protection.Result, decision router.RoutingDecision) (dispatcher.RenderedResponse, error) {
	subs := map[string]string{
		"understanding": fmt.Sprintf("intent=%s agent=%s via=%s", decision.Intent, decision.Agent, decision.MatchedVia),
		"challenge":     fmt.Sprintf("rule %s refused this request: %s", result.RuleID, result.Reason),
		"response":      fmt.Sprintf("blocked by %s: %s", result.RuleID, result.Reason),
		"request":       "no changes were made",
		"next_steps":    alternativesSummary(result.Alternatives),
	}

	id := f.loader.FallbackID()
	if _, ok := f.loader.Get(blockedTemplateID); ok {
		id = blockedTemplateID
	}
	text, sections, err := f.loader.Render(id, subs)
	if err != nil && id != f.loader.FallbackID() {
		f.log.Warn("blocked template render failed, falling back", zap.String("template", id), zap.Error(err))
		id = f.loader.FallbackID()
		text, sections, err = f.loader.Render(id, subs)
	}
	if err != nil {
		return dispatcher.RenderedResponse{}, err
	}
	return dispatcher.RenderedResponse{Text: text, Sections: sections, TemplateID: id}, nil
}

func alternativesSummary(alternatives []string) string {
	if len(alternatives) == 0 {
		return "re-state the request within the rule's bounds"
	}
	return "consider instead: " + strings.Join(alternatives, "; ")
}

// chooseTemplate resolves a template ID in the priority order C11 specifies.
func (f *Formatter) chooseTemplate(result dispatcher.AgentResult, decision router.RoutingDecision) string {
	if id, ok := f.loader.ByIntent(string(decision.Intent)); ok {
		return id
	}
	if decision.MatchedTrigger != "" {
		if id, ok := f.loader.ByTrigger(decision.MatchedTrigger); ok {
			return id
		}
	}
	if result.TemplateHint != "" {
		if _, ok := f.loader.Get(result.TemplateHint); ok {
			return result.TemplateHint
		}
	}
	return f.loader.FallbackID()
}

// buildSubstitutions derives the placeholder map from the agent's result and
// the router's diagnostics. Missing values are simply absent keys; Render's
// underlying substitute() treats an unknown key as empty string.
func (f *Formatter) buildSubstitutions(result dispatcher.AgentResult, decision router.RoutingDecision) map[string]string {
	subs := map[string]string{
		"response":      result.Text,
		"understanding": fmt.Sprintf("intent=%s agent=%s confidence=%.2f via=%s", decision.Intent, decision.Agent, decision.Confidence, decision.MatchedVia),
		"request":       fmt.Sprintf("%d context item(s) considered", len(decision.ContextBundle)),
		"next_steps":    effectsSummary(result.Effects),
	}
	if decision.Confirmation == router.ConfirmationSuggest {
		subs["challenge"] = fmt.Sprintf("this route was chosen at confidence %.2f; confirm before proceeding if that's wrong", decision.Confidence)
	} else {
		subs["challenge"] = ""
	}
	return subs
}

func effectsSummary(effects []dispatcher.Effect) string {
	if len(effects) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(effects))
	for _, e := range effects {
		if e.Path != "" {
			parts = append(parts, fmt.Sprintf("%s(%s)", e.Class, e.Path))
		} else {
			parts = append(parts, string(e.Class))
		}
	}
	return strings.Join(parts, ", ")
}
