package agents

import (
	"context"
	"fmt"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/router"
)

// ReviewAgent inspects the named subject against the context bundle's
// insights and corrections, surfacing anything that matches.
type ReviewAgent struct{}

func (ReviewAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentReview }

func (ReviewAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	text := fmt.Sprintf("Review of: %s\nMatching prior insights/patterns: %s", req.Text, summarizeBundle(bundle))
	return dispatcher.AgentResult{Text: text}, nil
}
