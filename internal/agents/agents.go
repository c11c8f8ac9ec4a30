// Package agents implements the concrete Agent ABI for each routed intent:
// Plan, Execute, Test, Review, Feedback, Help, Status, Admin, TDD, and the
// General catch-all the dispatcher falls back to. One small struct per
// capability, constructed fresh per dispatch, reporting its effects back
// rather than applying them directly to protected resources.
package agents

import (
	"fmt"
	"strings"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/router"
)

// summarizeBundle renders the context bundle into a short, human-readable
// digest for inclusion in an agent's response text.
func summarizeBundle(bundle []router.ContextItem) string {
	if len(bundle) == 0 {
		return "no prior context was available"
	}
	parts := make([]string, 0, len(bundle))
	for _, item := range bundle {
		parts = append(parts, fmt.Sprintf("%s: %s", item.Kind, item.Text))
	}
	return strings.Join(parts, "; ")
}

// intentOf re-derives the coarse keyword-scan intent for a request whose
// RoutingDecision already collapsed to the shared "general" agent id (every
// keyword-scanned request routes through this single registered id; see
// router.Route). Re-running the same pure keyword scan the router already
// performed is cheaper than widening the Agent ABI with an intent
// parameter every specialized agent would otherwise ignore.
func intentOf(req dispatcher.Request) router.IntentKind {
	return router.KeywordScan(req.Text)
}
