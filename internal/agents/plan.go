package agents

import (
	"context"
	"fmt"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/router"
)

// PlanAgent drafts a scoped plan from the request text and context bundle.
// It never writes files itself; challenge_low_dor (pre-dispatch) is what
// pushes back on an under-specified planning request before this runs.
type PlanAgent struct{}

func (PlanAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentPlan }

func (PlanAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	text := fmt.Sprintf(
		"Plan for: %s\nRelevant context: %s\nProposed steps: 1) confirm scope 2) identify affected files 3) sequence changes 4) identify test coverage needed",
		req.Text, summarizeBundle(bundle),
	)
	return dispatcher.AgentResult{Text: text}, nil
}
