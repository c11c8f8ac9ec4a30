package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
)

// HelpAgent lists every registered operation and its trigger phrases.
// Rendered with the "help_table" template, which the formatter resolves
// via the intent->template mapping (see templates.yaml).
type HelpAgent struct {
	Registry *registry.Registry
}

func (a HelpAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentHelp }

func (a HelpAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	var b strings.Builder
	if a.Registry == nil {
		b.WriteString("no operations registered")
	} else {
		ops := a.Registry.All()
		if len(ops) == 0 {
			b.WriteString("no operations registered")
		}
		for _, op := range ops {
			fmt.Fprintf(&b, "%s: %s (triggers: %s)\n", op.ID, op.DisplayName, strings.Join(op.Triggers, ", "))
		}
	}
	return dispatcher.AgentResult{TemplateHint: "help_table", Text: b.String()}, nil
}
