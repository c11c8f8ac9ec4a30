// Package dispatcher implements the Agent Dispatcher: invokes exactly one
// agent per request, walking it through the Parsed → Routed → Executing →
// Rendering → Emitted → Committed state machine (or into the terminal
// Blocked/Failed states).
package dispatcher

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/cortex-ai/cortex/internal/eventlog"
	"github.com/cortex-ai/cortex/internal/instinct"
	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/protection"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// clarityMarkers are phrases whose presence in a request counts as a signal
// the caller has already scoped what they want, for challenge_low_dor.
var clarityMarkers = []string{"because", "so that", "specifically", "file:", "path:", "only", "scope:"}

// irrecoverableDeleteMarkers are phrases that, if present in a request,
// describe a write that would irrecoverably delete Tier 1/Tier 2 data with
// no remediation path — the no_core_amnesia juncture.
var irrecoverableDeleteMarkers = []string{
	"delete all conversation history", "delete all conversations", "wipe the knowledge graph",
	"delete all patterns", "delete everything", "clear all memory", "delete all turns",
	"purge the knowledge graph", "erase all history",
}

// Dispatcher wires the router, protection kernel, renderer, and commit
// targets (Tier 1, Event Log) together to process one request end to end.
type Dispatcher struct {
	router   *router.Router
	kernel   *protection.Kernel
	renderer Renderer
	memory   *memory.Store
	events   *eventlog.Log
	agents   map[string]Agent
	fallback Agent
	log      *zap.Logger
}

// New builds a Dispatcher. fallback is invoked when no registered agent
// claims the routed intent; it must always return a result, even a generic
// "I don't know how to do that" one, since the router guarantees a decision.
func New(r *router.Router, kernel *protection.Kernel, renderer Renderer, mem *memory.Store, events *eventlog.Log, fallback Agent) *Dispatcher {
	return &Dispatcher{
		router:   r,
		kernel:   kernel,
		renderer: renderer,
		memory:   mem,
		events:   events,
		agents:   make(map[string]Agent),
		fallback: fallback,
		log:      logging.For(logging.CategoryDispatcher),
	}
}

// RegisterAgent binds operationID (as routed to by RoutingDecision.Agent) to
// agent. Registering the same operationID twice overwrites the prior entry.
func (d *Dispatcher) RegisterAgent(operationID string, agent Agent) {
	d.agents[operationID] = agent
}

// Dispatch runs req through the full state machine and returns its terminal
// Outcome. A cancelled ctx at any suspension point abandons in-flight work
// rather than committing partial state.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	traceID := newTraceID()

	if strings.TrimSpace(req.Text) == "" {
		return Outcome{State: StateFailed, TraceID: traceID, Err: errEmptyRequest}
	}

	decision, err := d.router.Route(req.Text, req.Namespace)
	if err != nil {
		return Outcome{State: StateFailed, TraceID: traceID, Err: err}
	}

	if ctx.Err() != nil {
		return Outcome{State: StateFailed, TraceID: traceID, Err: ctx.Err()}
	}

	var warnings []string

	preDispatchCtx := d.preDispatchContext(req, decision)
	preDispatchResult := d.kernel.PreDispatch(preDispatchCtx)
	if preDispatchResult.Blocked {
		return d.blockedOutcome(preDispatchResult, decision, traceID, nil)
	}
	warnings = append(warnings, verdictReasons(preDispatchResult.Warnings)...)

	agent := d.agents[decision.Agent]
	if agent == nil || !agent.CanHandle(decision.Intent) {
		agent = d.fallback
	}

	agentResult, err := agent.Execute(ctx, req, decision.ContextBundle)
	if err != nil {
		d.emitRouteOutcome(eventlog.KindRouteFailure, req, decision, traceID)
		return Outcome{State: StateFailed, Decision: decision, TraceID: traceID, Err: err}
	}

	if ctx.Err() != nil {
		return Outcome{State: StateFailed, Decision: decision, TraceID: traceID, Err: ctx.Err()}
	}

	rendered, err := d.renderer.Render(agentResult, decision)
	if err != nil {
		return Outcome{State: StateFailed, Decision: decision, TraceID: traceID, Err: err}
	}

	for _, effect := range agentResult.Effects {
		if effect.Path == "" {
			continue
		}
		emitCtx := instinct.Context{Kind: "document_write", Path: effect.Path}
		result := d.kernel.PreEmit(emitCtx)
		if result.Blocked {
			return d.blockedOutcome(result, decision, traceID, warnings)
		}
		warnings = append(warnings, verdictReasons(result.Warnings)...)
	}
	renderResult := d.kernel.PreEmit(instinct.Context{Kind: "response_render", Sections: rendered.Sections})
	if renderResult.Blocked {
		return d.blockedOutcome(renderResult, decision, traceID, warnings)
	}
	warnings = append(warnings, verdictReasons(renderResult.Warnings)...)

	if ctx.Err() != nil {
		return Outcome{State: StateFailed, Decision: decision, TraceID: traceID, Err: ctx.Err()}
	}

	d.commit(req, decision, rendered, traceID, len(warnings))
	d.emitRouteOutcome(eventlog.KindRouteSuccess, req, decision, traceID)

	return Outcome{State: StateCommitted, Decision: decision, TraceID: traceID, Response: rendered.Text, TemplateID: rendered.TemplateID, Warnings: warnings}
}

// blockedOutcome renders a protection refusal through the formatter so the
// mandatory structure is preserved even for refusals, then returns the
// terminal Blocked outcome. A refusal that itself fails to render degrades
// to a minimal one-line response rather than failing the request a second
// time.
func (d *Dispatcher) blockedOutcome(result protection.Result, decision router.RoutingDecision, traceID string, priorWarnings []string) Outcome {
	out := Outcome{
		State:        StateBlocked,
		Decision:     decision,
		TraceID:      traceID,
		BlockedRule:  result.RuleID,
		BlockedWhy:   result.Reason,
		Alternatives: result.Alternatives,
		Warnings:     append(priorWarnings, verdictReasons(result.Warnings)...),
	}
	rendered, err := d.renderer.RenderBlocked(result, decision)
	if err != nil {
		d.log.Warn("failed to render blocked response, degrading to minimal text",
			zap.String("rule", result.RuleID), zap.Error(err))
		out.Response = fmt.Sprintf("blocked by %s: %s", result.RuleID, result.Reason)
		return out
	}
	out.Response = rendered.Text
	out.TemplateID = rendered.TemplateID
	return out
}

// newTraceID mints a monotonic-sortable identifier for one Dispatch call,
// using ulid instead of a plain uuid so trace ids sort chronologically —
// useful for correlating an Event Log slice back to the request that
// produced it without a separate timestamp column join.
func newTraceID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// emitRouteOutcome records a learning-pipeline candidate event carrying
// enough of the routing decision to either reinforce the exact Tier 2
// pattern that produced it (when PatternID is set) or accumulate it toward
// a brand new pattern candidate (when the request was routed by trigger or
// keyword scan instead).
func (d *Dispatcher) emitRouteOutcome(kind string, req Request, decision router.RoutingDecision, traceID string) {
	if d.events == nil {
		return
	}
	payload := map[string]any{
		"pattern_id": decision.PatternID,
		"intent":     string(decision.Intent),
		"agent":      decision.Agent,
		"text":       req.Text,
		"via":        decision.MatchedVia,
	}
	if _, err := d.events.Emit(kind, payload, traceID); err != nil {
		d.log.Warn("failed to emit route outcome event", zap.String("kind", kind), zap.Error(err))
	}
}

// commit persists the turn to Tier 1 and emits the completion event. Commit
// failures are logged rather than surfaced: the response has already been
// computed and handed to the caller (Emitted), so a storage hiccup here must
// not turn a successful interaction into an error return.
func (d *Dispatcher) commit(req Request, decision router.RoutingDecision, rendered RenderedResponse, traceID string, warningCount int) {
	convID := req.ConversationID
	if convID == "" {
		convID = "default"
	}
	if d.memory != nil {
		if _, err := d.memory.AppendTurn(convID, memory.RoleUser, req.Text); err != nil {
			d.log.Warn("commit: failed to append user turn", zap.Error(err))
		}
		if _, err := d.memory.AppendTurn(convID, memory.RoleAssistant, rendered.Text); err != nil {
			d.log.Warn("commit: failed to append assistant turn", zap.Error(err))
		}
	}
	if d.events != nil {
		payload := map[string]any{
			"intent":          string(decision.Intent),
			"agent":           decision.Agent,
			"confidence":      decision.Confidence,
			"conversation_id": convID,
			"warnings":        warningCount,
		}
		if _, err := d.events.Emit(eventlog.KindRequestHandled, payload, traceID); err != nil {
			d.log.Warn("commit: failed to emit request_handled", zap.Error(err))
		}
	}
}

// preDispatchContext maps a RoutingDecision onto the instinct.Context shape
// the pre-dispatch predicates expect, based on the routed intent. A request
// describing an irrecoverable Tier 1/Tier 2 deletion is flagged regardless
// of routed intent, since no_core_amnesia must fire before any agent runs.
func (d *Dispatcher) preDispatchContext(req Request, decision router.RoutingDecision) instinct.Context {
	if isIrrecoverableDelete(req.Text) {
		return instinct.Context{Kind: "tier_delete", Text: req.Text, Irrecoverable: true}
	}
	switch decision.Intent {
	case router.IntentPlan:
		return instinct.Context{Kind: "plan_request", Text: req.Text, ClarityMarkers: countClarityMarkers(req.Text)}
	default:
		return instinct.Context{Kind: "dispatch", Text: req.Text}
	}
}

// verdictReasons flattens a protection-kernel warning list down to the
// reason strings the caller-facing Outcome surfaces.
func verdictReasons(verdicts []instinct.Verdict) []string {
	if len(verdicts) == 0 {
		return nil
	}
	out := make([]string, 0, len(verdicts))
	for _, v := range verdicts {
		out = append(out, v.Reason)
	}
	return out
}

func isIrrecoverableDelete(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range irrecoverableDeleteMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func countClarityMarkers(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, marker := range clarityMarkers {
		if strings.Contains(lower, marker) {
			count++
		}
	}
	return count
}

var errEmptyRequest = dispatcherError("request text must not be empty")

type dispatcherError string

func (e dispatcherError) Error() string { return string(e) }
