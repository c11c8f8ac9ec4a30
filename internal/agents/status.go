package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortex-ai/cortex/internal/devcontext"
	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/gitops"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
)

// StatusAgent reports Tier 1 conversation volume plus Tier 3 hotspots and
// metrics for the requesting namespace. When the optional git collaborator
// or the operation registry are wired in, the report also covers workspace
// cleanliness and the most-exercised operations.
type StatusAgent struct {
	Memory     *memory.Store
	DevContext *devcontext.Store
	Registry   *registry.Registry
	Git        gitops.Git
}

func (a StatusAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentStatus }

func (a StatusAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Status for namespace %q:\n", req.Namespace)

	if a.Memory != nil {
		if count, err := a.Memory.Count(); err == nil {
			fmt.Fprintf(&b, "- %d tracked conversations\n", count)
		}
	}

	if a.DevContext != nil {
		if hotspots, err := a.DevContext.Hotspots(req.Namespace); err == nil && len(hotspots) > 0 {
			names := make([]string, 0, len(hotspots))
			for _, h := range hotspots {
				names = append(names, h.FilePath)
			}
			fmt.Fprintf(&b, "- hotspots: %s\n", strings.Join(names, ", "))
		} else {
			b.WriteString("- no hotspots recorded\n")
		}

		metrics, err := a.DevContext.GetMetrics(req.Namespace, []string{"lines_changed", "build_duration_seconds", "test_pass_rate"})
		if err == nil && len(metrics) > 0 {
			for _, m := range metrics {
				fmt.Fprintf(&b, "- %s: %.2f\n", m.Name, m.Value)
			}
		}
	}

	if a.Registry != nil {
		for _, stat := range a.Registry.ListByUsage() {
			if stat.Count == 0 {
				break
			}
			fmt.Fprintf(&b, "- most used operation: %s (%d requests)\n", stat.ID, stat.Count)
			break
		}
	}

	// A status request must not fail because the collaborator is absent or
	// the directory is not a repository; the line is simply omitted.
	if a.Git != nil {
		if st, err := a.Git.Status(ctx); err == nil {
			if strings.TrimSpace(st) == "" {
				b.WriteString("- workspace clean (git)\n")
			} else {
				fmt.Fprintf(&b, "- %d uncommitted changes (git)\n", len(strings.Split(strings.TrimSpace(st), "\n")))
			}
		}
	}

	return dispatcher.AgentResult{TemplateHint: "status", Text: b.String()}, nil
}
