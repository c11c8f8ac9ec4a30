package dispatcher

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cortex-ai/cortex/internal/config"
	"github.com/cortex-ai/cortex/internal/devcontext"
	"github.com/cortex-ai/cortex/internal/eventlog"
	"github.com/cortex-ai/cortex/internal/instinct"
	"github.com/cortex-ai/cortex/internal/knowledge"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/protection"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAgent struct{}

func (echoAgent) CanHandle(intent router.IntentKind) bool { return true }
func (echoAgent) Execute(ctx context.Context, req Request, bundle []router.ContextItem) (AgentResult, error) {
	return AgentResult{Text: "echo: " + req.Text}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(result AgentResult, decision router.RoutingDecision) (RenderedResponse, error) {
	return RenderedResponse{
		Text:     result.Text,
		Sections: []string{"understanding", "challenge", "response", "request", "next_steps"},
	}, nil
}

func (stubRenderer) RenderBlocked(result protection.Result, decision router.RoutingDecision) (RenderedResponse, error) {
	text := strings.Join([]string{
		"understanding: request refused",
		"challenge: " + result.Reason,
		"response: blocked by " + result.RuleID,
		"request: no changes were made",
		"next_steps: " + strings.Join(result.Alternatives, "; "),
	}, "\n")
	return RenderedResponse{
		Text:       text,
		Sections:   []string{"understanding", "challenge", "response", "request", "next_steps"},
		TemplateID: "blocked",
	}, nil
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dir := t.TempDir()

	memStore, err := memory.Open(filepath.Join(dir, "tier1.db"), 3, memory.Config{Capacity: 70}, noopEmitter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = memStore.Close() })

	knowledgeStore, err := knowledge.Open(filepath.Join(dir, "tier2.db"), 3, knowledge.Config{}, noopEmitter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = knowledgeStore.Close() })

	devStore, err := devcontext.Open(filepath.Join(dir, "tier3.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = devStore.Close() })

	events, err := eventlog.Open(filepath.Join(dir, "events.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	ops := registry.New()
	r := router.New(ops, memStore, knowledgeStore, devStore, config.DefaultRouterConfig())

	tier0, err := instinct.LoadDefaults(instinct.DefaultCheckerRegistry())
	require.NoError(t, err)
	kernel, err := protection.New(tier0, protection.DefaultConfig())
	require.NoError(t, err)

	d := New(r, kernel, stubRenderer{}, memStore, events, echoAgent{})
	return d
}

type noopEmitter struct{}

func (noopEmitter) Emit(kind string, payload any, traceID string) (int64, error) { return 1, nil }

func TestDispatchHappyPathCommits(t *testing.T) {
	d := newTestDispatcher(t)
	outcome := d.Dispatch(context.Background(), Request{Text: "say hello", Namespace: "ns-a", ConversationID: "conv-1"})
	require.NoError(t, outcome.Err)
	assert.Equal(t, StateCommitted, outcome.State)
	assert.Equal(t, "echo: say hello", outcome.Response)
}

func TestDispatchEmptyRequestFails(t *testing.T) {
	d := newTestDispatcher(t)
	outcome := d.Dispatch(context.Background(), Request{Text: "  "})
	assert.Equal(t, StateFailed, outcome.State)
	assert.Error(t, outcome.Err)
}

func TestDispatchBlocksIrrecoverableDeletion(t *testing.T) {
	d := newTestDispatcher(t)
	outcome := d.Dispatch(context.Background(), Request{Text: "delete all conversation history to free space", Namespace: "ns-a"})
	require.NoError(t, outcome.Err)
	assert.Equal(t, StateBlocked, outcome.State)
	assert.Equal(t, "no_core_amnesia", outcome.BlockedRule)
	assert.NotEmpty(t, outcome.Alternatives)

	// The refusal itself went through the renderer: the response text is the
	// full mandatory structure, alternatives included, not a bare one-liner.
	assert.Equal(t, "blocked", outcome.TemplateID)
	assert.Contains(t, outcome.Response, "next_steps:")
	for _, alt := range outcome.Alternatives {
		assert.Contains(t, outcome.Response, alt)
	}
}

func TestDispatchCancelledContextFails(t *testing.T) {
	d := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := d.Dispatch(ctx, Request{Text: "say hello"})
	assert.Equal(t, StateFailed, outcome.State)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
}
