package agents

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/eventlog"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/cortex-ai/cortex/internal/workspace"
	"github.com/google/uuid"
)

// FeedbackAgent records a correction or complaint to a durable report file
// through the workspace writer (under "reports/", the categorised subpath
// for this kind of write) and emits feedback_recorded so the learning
// pipeline can fold it into Tier 2 corrections. The reported effect carries
// the workspace-relative path, which is what the pre-emit no_root_docs
// predicate evaluates.
type FeedbackAgent struct {
	Events    *eventlog.Log
	Workspace *workspace.Writer
}

func (a FeedbackAgent) CanHandle(intent router.IntentKind) bool {
	return intent == router.IntentFeedback
}

func (a FeedbackAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	w := a.Workspace
	if w == nil {
		w = workspace.NewWriter(".")
	}
	relPath := path.Join("reports", fmt.Sprintf("feedback-%s.md", uuid.NewString()))

	body := fmt.Sprintf("# Feedback\n\nReceived at: %s\nNamespace: %s\n\n%s\n",
		time.Now().UTC().Format(time.RFC3339), req.Namespace, req.Text)

	absPath, err := w.Write(relPath, []byte(body))
	if err != nil {
		return dispatcher.AgentResult{}, fmt.Errorf("feedback agent: write report: %w", err)
	}

	effects := []dispatcher.Effect{{Class: "document_write", Path: relPath, Description: "feedback report"}}

	if a.Events != nil {
		payload := map[string]any{"namespace": req.Namespace, "text": req.Text, "report_path": absPath}
		if _, err := a.Events.Emit(eventlog.KindFeedbackRecorded, payload, ""); err != nil {
			return dispatcher.AgentResult{}, fmt.Errorf("feedback agent: emit feedback_recorded: %w", err)
		}
	}

	return dispatcher.AgentResult{
		TemplateHint: "feedback",
		Text:         fmt.Sprintf("Feedback recorded at %s. Thank you, this will be reviewed by the learning pipeline.", absPath),
		Effects:      effects,
	}, nil
}
