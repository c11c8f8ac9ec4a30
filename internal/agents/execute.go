package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
)

// ExecuteAgent carries out (or, in this substrate, describes) a concrete
// change and reports the files it touched as Effects so the protection
// kernel's pre-emit document-write check runs before the response is
// emitted. Real file mutation is the editor collaborator's job; this agent
// only produces the change description and declares what it would touch.
type ExecuteAgent struct{}

func (ExecuteAgent) CanHandle(intent router.IntentKind) bool { return intent == router.IntentExecute }

func (ExecuteAgent) Execute(ctx context.Context, req dispatcher.Request, bundle []router.ContextItem) (dispatcher.AgentResult, error) {
	files := extractFilePaths(req.Text)
	effects := make([]dispatcher.Effect, 0, len(files))
	for _, f := range files {
		effects = append(effects, dispatcher.Effect{Class: registry.EffectDocumentWrite, Path: f, Description: "change described for " + f})
	}
	text := fmt.Sprintf("Executing: %s\nContext consulted: %s", req.Text, summarizeBundle(bundle))
	return dispatcher.AgentResult{Text: text, Effects: effects}, nil
}

// extractFilePaths pulls out anything in req.Text that looks like a file
// path token, so downstream file-relationship learning has something to
// record co-modification against. A conservative heuristic: any whitespace-
// delimited token containing a dot and a slash-free extension-like suffix.
func extractFilePaths(text string) []string {
	var out []string
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, ",.;:()\"'")
		if looksLikeFilePath(tok) {
			out = append(out, tok)
		}
	}
	return out
}

func looksLikeFilePath(tok string) bool {
	if !strings.Contains(tok, ".") {
		return false
	}
	ext := tok[strings.LastIndex(tok, ".")+1:]
	return len(ext) >= 1 && len(ext) <= 4 && !strings.ContainsAny(ext, " /\\")
}
