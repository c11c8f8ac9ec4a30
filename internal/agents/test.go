package agents

import (
	"context"
	"fmt"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/router"
)

// TestAgent drafts test coverage for the request's subject.
type TestAgent struct{}

func (TestAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentTest }

func (TestAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	files := extractFilePaths(req.Text)
	effects := make([]dispatcher.Effect, 0, len(files))
	for _, f := range files {
		effects = append(effects, dispatcher.Effect{Class: "document_write", Path: f, Description: "test coverage described for " + f})
	}
	text := fmt.Sprintf("Test plan for: %s\nContext: %s", req.Text, summarizeBundle(bundle))
	return dispatcher.AgentResult{Text: text, Effects: effects}, nil
}
