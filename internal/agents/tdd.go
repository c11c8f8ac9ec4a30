package agents

import (
	"context"
	"fmt"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/router"
)

// TDDAgent walks the red-green-refactor loop description for a request.
type TDDAgent struct{}

func (TDDAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentTDD }

func (TDDAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	text := fmt.Sprintf(
		"TDD cycle for: %s\n1) write a failing test 2) implement the minimal change to pass it 3) refactor\nContext: %s",
		req.Text, summarizeBundle(bundle),
	)
	return dispatcher.AgentResult{Text: text}, nil
}
