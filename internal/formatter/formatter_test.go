package formatter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/protection"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/cortex-ai/cortex/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplatesYAML = `
templates:
  - id: base
    sections:
      understanding: "{understanding}"
      challenge: "{challenge}"
      response: "{response}"
      request: "{request}"
      next_steps: "{next_steps}"
  - id: help_table
    base: base
    intent: help
    sections:
      response: "HELP TABLE: {response}"
  - id: broken
    sections:
      response: "{response}"
  - id: status
    base: base
    intent: status
    triggers:
      - "show status"
  - id: fallback
    base: base
  - id: blocked
    base: base
    sections:
      response: "REFUSED: {response}"
`

func newTestFormatter(t *testing.T) *Formatter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testTemplatesYAML), 0o644))
	loader, err := templates.Load(path, "fallback", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loader.Close() })
	return New(loader)
}

func TestRenderChoosesByIntent(t *testing.T) {
	f := newTestFormatter(t)
	result := dispatcher.AgentResult{Text: "operations list"}
	decision := router.RoutingDecision{Intent: router.IntentHelp, MatchedVia: "keyword_scan"}

	rendered, err := f.Render(result, decision)
	require.NoError(t, err)
	assert.Contains(t, rendered.Text, "HELP TABLE: operations list")
	assert.ElementsMatch(t, mandatorySections, rendered.Sections)
}

func TestRenderFallsBackWhenMandatorySectionsMissing(t *testing.T) {
	f := newTestFormatter(t)
	result := dispatcher.AgentResult{Text: "partial", TemplateHint: "broken"}
	decision := router.RoutingDecision{Intent: router.IntentGeneral, MatchedVia: "fallback"}

	rendered, err := f.Render(result, decision)
	require.NoError(t, err)
	assert.True(t, hasMandatorySections(rendered.Sections))
}

func TestRenderUsesTemplateHintWhenNoIntentMapping(t *testing.T) {
	f := newTestFormatter(t)
	result := dispatcher.AgentResult{Text: "hinted", TemplateHint: "status"}
	decision := router.RoutingDecision{Intent: router.IntentExecute, MatchedVia: "pattern_lookup"}

	rendered, err := f.Render(result, decision)
	require.NoError(t, err)
	assert.True(t, hasMandatorySections(rendered.Sections))
}

func TestRenderBlockedUsesMandatoryStructure(t *testing.T) {
	f := newTestFormatter(t)
	result := protection.Result{
		Blocked: true,
		RuleID:  "no_core_amnesia",
		Reason:  "operation would irrecoverably delete working memory",
		Alternatives: []string{
			"archive the data instead of deleting it",
			"export a backup before deleting",
			"set a retention policy instead of deleting immediately",
		},
	}
	decision := router.RoutingDecision{Intent: router.IntentGeneral, Agent: "general", MatchedVia: "fallback"}

	rendered, err := f.RenderBlocked(result, decision)
	require.NoError(t, err)
	assert.Equal(t, "blocked", rendered.TemplateID)
	assert.True(t, hasMandatorySections(rendered.Sections))
	assert.Contains(t, rendered.Text, "REFUSED: blocked by no_core_amnesia")
	for _, alt := range result.Alternatives {
		assert.Contains(t, rendered.Text, alt)
	}
}

func TestRenderBlockedFallsBackWithoutDedicatedTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	yaml := `
templates:
  - id: fallback
    sections:
      understanding: "{understanding}"
      challenge: "{challenge}"
      response: "{response}"
      request: "{request}"
      next_steps: "{next_steps}"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	loader, err := templates.Load(path, "fallback", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loader.Close() })
	f := New(loader)

	rendered, err := f.RenderBlocked(protection.Result{Blocked: true, RuleID: "no_root_docs", Reason: "root write refused"}, router.RoutingDecision{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", rendered.TemplateID)
	assert.True(t, hasMandatorySections(rendered.Sections))
	assert.Contains(t, rendered.Text, "blocked by no_root_docs")
}

func TestRenderUnknownHintFallsBack(t *testing.T) {
	f := newTestFormatter(t)
	result := dispatcher.AgentResult{Text: "x", TemplateHint: "does-not-exist"}
	decision := router.RoutingDecision{Intent: router.IntentExecute, MatchedVia: "pattern_lookup"}

	rendered, err := f.Render(result, decision)
	require.NoError(t, err)
	assert.True(t, hasMandatorySections(rendered.Sections))
}
