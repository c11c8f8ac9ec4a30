package agents

import (
	"context"
	"fmt"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/router"
)

// AdminAgent acknowledges a configuration/admin request. Actual
// configuration mutation happens at the composition root (internal/cortex),
// not inside a dispatched agent, since config changes affect every
// in-flight request and must not race a single Dispatch call.
type AdminAgent struct{}

func (AdminAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentAdmin }

func (AdminAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	text := fmt.Sprintf("Admin request noted: %s\nThis substrate does not apply configuration changes mid-dispatch; restart with the updated config file to take effect.", req.Text)
	return dispatcher.AgentResult{TemplateHint: "admin", Text: text}, nil
}
