package cortex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cortex-ai/cortex/internal/config"
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
  - id: fallback
    base: base
  - id: help_table
    base: base
    intent: help
  - id: status
    base: base
    intent: status
  - id: admin
    base: base
    intent: admin
  - id: feedback
    base: base
    intent: feedback
  - id: blocked
    base: base
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(tmplPath, []byte(testTemplatesYAML), 0o644))

	cfg := config.Default()
	cfg.BrainDir = filepath.Join(dir, "brain")
	cfg.Templates.Path = tmplPath
	cfg.Logging.JSON = false
	cfg.Logging.Debug = false

	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestProcessRequestHappyPath(t *testing.T) {
	e := newTestEngine(t)
	env, err := e.ProcessRequest(context.Background(), "help me understand the commands", "ns-a", "conv-1")
	require.NoError(t, err)
	assert.False(t, env.Blocked)
	assert.Equal(t, "help", env.Intent)
	assert.NotEmpty(t, env.TraceID)
	assert.Equal(t, "help_table", env.TemplateID)
}

func TestProcessRequestBlocksIrrecoverableDeletion(t *testing.T) {
	e := newTestEngine(t)
	env, err := e.ProcessRequest(context.Background(), "delete all conversation history please", "ns-a", "conv-1")
	require.NoError(t, err)
	assert.True(t, env.Blocked)
	assert.Equal(t, "no_core_amnesia", env.BlockedRule)
	assert.NotEmpty(t, env.Alternatives)

	// The refusal is wrapped in the mandatory structure and lists the three
	// standard alternatives, not a bare one-line error.
	assert.Equal(t, "blocked", env.TemplateID)
	assert.Contains(t, env.Text, "blocked by no_core_amnesia")
	assert.Contains(t, env.Text, "archive the data instead of deleting it")
	assert.Contains(t, env.Text, "export a backup before deleting")
	assert.Contains(t, env.Text, "set a retention policy instead of deleting immediately")
}

func TestProcessRequestFeedbackWritesCategorisedReport(t *testing.T) {
	e := newTestEngine(t)
	env, err := e.ProcessRequest(context.Background(), "feedback: test feedback integration", "ns-a", "conv-1")
	require.NoError(t, err)
	assert.False(t, env.Blocked)
	assert.Equal(t, "feedback", env.Intent)

	// The report lands under the workspace's reports/ subpath (defaulting to
	// the brain directory), never the root.
	entries, err := os.ReadDir(filepath.Join(e.cfg.BrainDir, "reports"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestProcessRequestEmptyTextFails(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ProcessRequest(context.Background(), "   ", "ns-a", "conv-1")
	assert.Error(t, err)
}

func TestProcessRequestGeneralFallback(t *testing.T) {
	e := newTestEngine(t)
	env, err := e.ProcessRequest(context.Background(), "good morning", "ns-a", "conv-1")
	require.NoError(t, err)
	assert.False(t, env.Blocked)
	assert.Equal(t, "general", env.Agent)
}
