package agents

import (
	"context"
	"fmt"

	"github.com/cortex-ai/cortex/internal/devcontext"
	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/eventlog"
	"github.com/cortex-ai/cortex/internal/gitops"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/cortex-ai/cortex/internal/workspace"
)

// GeneralAgent is the dispatcher's fallback: every keyword-scanned request
// routes to the single "general" operation id (router.Route never assigns a
// more specific Agent for that path), so this type re-derives the coarse
// intent and delegates to the matching specialized agent. It is also what
// runs when nothing else claims the routed intent at all (IntentGeneral).
type GeneralAgent struct {
	Registry   *registry.Registry
	Memory     *memory.Store
	DevContext *devcontext.Store
	Events     *eventlog.Log
	Workspace  *workspace.Writer
	Git        gitops.Git
}

func (GeneralAgent) CanHandle(intent router.IntentKind) bool { return true }

func (a GeneralAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	switch intentOf(req) {
	case router.IntentPlan:
		return PlanAgent{}.Execute(ctx, req, bundle)
	case router.IntentExecute:
		return ExecuteAgent{}.Execute(ctx, req, bundle)
	case router.IntentTest:
		return TestAgent{}.Execute(ctx, req, bundle)
	case router.IntentReview:
		return ReviewAgent{}.Execute(ctx, req, bundle)
	case router.IntentFeedback:
		return FeedbackAgent{Events: a.Events, Workspace: a.Workspace}.Execute(ctx, req, bundle)
	case router.IntentHelp:
		return HelpAgent{Registry: a.Registry}.Execute(ctx, req, bundle)
	case router.IntentStatus:
		return StatusAgent{Memory: a.Memory, DevContext: a.DevContext, Registry: a.Registry, Git: a.Git}.Execute(ctx, req, bundle)
	case router.IntentAdmin:
		return AdminAgent{}.Execute(ctx, req, bundle)
	case router.IntentTDD:
		return TDDAgent{}.Execute(ctx, req, bundle)
	default:
		text := fmt.Sprintf("Acknowledged: %s\nContext: %s", req.Text, summarizeBundle(bundle))
		return dispatcher.AgentResult{Text: text}, nil
	}
}
