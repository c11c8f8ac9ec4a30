package dispatcher

import (
	"context"

	"github.com/cortex-ai/cortex/internal/protection"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
)

// State is one node of the dispatched-request state machine.
type State string

const (
	StateParsed    State = "parsed"
	StateRouted    State = "routed"
	StateExecuting State = "executing"
	StateRendering State = "rendering"
	StateEmitted   State = "emitted"
	StateCommitted State = "committed"
	StateBlocked   State = "blocked"
	StateFailed    State = "failed"
)

// Effect is one write an agent intends to make, reported back so pre-emit
// protection can evaluate it before the response is emitted.
type Effect struct {
	Class       registry.SideEffectClass
	Path        string
	Description string
}

// AgentResult is what an Agent returns from Execute.
type AgentResult struct {
	Text         string
	TemplateHint string
	Effects      []Effect
}

// Agent is the uniform capability every registered operation implements.
// Execute may itself fan out to sub-tasks but must join before returning;
// a context cancellation must abandon any in-flight writes the agent owns.
type Agent interface {
	CanHandle(intent router.IntentKind) bool
	Execute(ctx context.Context, req Request, bundle []router.ContextItem) (AgentResult, error)
}

// Request is the parsed, routable unit of work.
type Request struct {
	Text           string
	Namespace      string
	ConversationID string
}

// RenderedResponse is what a Renderer produces from an AgentResult.
type RenderedResponse struct {
	Text       string
	Sections   []string
	TemplateID string
}

// Renderer is the narrow rendering interface dispatcher needs; the
// formatter package satisfies it structurally, avoiding an import cycle
// (formatter depends on dispatcher's types, not the reverse). RenderBlocked
// wraps a protection refusal in the same mandatory structure as a normal
// response, so user-visible failures never bypass the template path.
type Renderer interface {
	Render(result AgentResult, decision router.RoutingDecision) (RenderedResponse, error)
	RenderBlocked(result protection.Result, decision router.RoutingDecision) (RenderedResponse, error)
}

// Outcome is the terminal result of one Dispatch call.
type Outcome struct {
	State        State
	Response     string
	TemplateID   string
	Decision     router.RoutingDecision
	BlockedRule  string
	BlockedWhy   string
	Alternatives []string
	// Warnings collects non-blocking protection-kernel verdicts (severity
	// "warning") raised across pre-dispatch and pre-emit evaluation, so the
	// caller sees them even though they didn't stop the request.
	Warnings []string
	// TraceID is a monotonic-sortable identifier minted once per Dispatch
	// call, correlating the resulting ResponseEnvelope with the route-outcome
	// and request_handled events the dispatcher emits for it (Event.TraceID).
	// Events emitted by agents or tier stores during the request carry no
	// trace id.
	TraceID string
	Err     error
}
