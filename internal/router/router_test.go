package router

import (
	"path/filepath"
	"testing"

	"github.com/cortex-ai/cortex/internal/config"
	"github.com/cortex-ai/cortex/internal/devcontext"
	"github.com/cortex-ai/cortex/internal/knowledge"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct{}

func (fakeEmitter) Emit(kind string, payload any, traceID string) (int64, error) { return 1, nil }

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	dir := t.TempDir()

	memStore, err := memory.Open(filepath.Join(dir, "tier1.db"), 3, memory.Config{Capacity: 70}, fakeEmitter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = memStore.Close() })

	knowledgeStore, err := knowledge.Open(filepath.Join(dir, "tier2.db"), 3, knowledge.Config{}, fakeEmitter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = knowledgeStore.Close() })

	devStore, err := devcontext.Open(filepath.Join(dir, "tier3.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = devStore.Close() })

	ops := registry.New()
	require.NoError(t, ops.Register(registry.Operation{ID: "op-deploy", Triggers: []string{"deploy to production"}}))

	return New(ops, memStore, knowledgeStore, devStore, config.DefaultRouterConfig())
}

func TestRouteExactTriggerWins(t *testing.T) {
	r := newTestRouter(t)
	decision, err := r.Route("please deploy to production now", "ns-a")
	require.NoError(t, err)
	assert.Equal(t, "op-deploy", decision.Agent)
	assert.Equal(t, "exact_trigger", decision.MatchedVia)
	assert.Equal(t, "deploy to production", decision.MatchedTrigger)
}

func TestRouteExactTriggerIsCaseInsensitive(t *testing.T) {
	r := newTestRouter(t)
	decision, err := r.Route("Deploy To Production immediately", "ns-a")
	require.NoError(t, err)
	assert.Equal(t, "op-deploy", decision.Agent)
	assert.Equal(t, "exact_trigger", decision.MatchedVia)
}

func TestRouteKeywordScanFallsThroughFromTrigger(t *testing.T) {
	r := newTestRouter(t)
	decision, err := r.Route("please write a test for this", "ns-a")
	require.NoError(t, err)
	assert.Equal(t, IntentTest, decision.Intent)
	assert.Equal(t, "keyword_scan", decision.MatchedVia)
}

func TestKeywordScanPrefersFeedbackPrefixOverGenericTest(t *testing.T) {
	// "feedback: test feedback integration" mentions "test", but the
	// feedback prefix is the more specific signal and must win.
	assert.Equal(t, IntentFeedback, KeywordScan("feedback: test feedback integration"))
}

func TestRouteFallsBackToGeneral(t *testing.T) {
	r := newTestRouter(t)
	decision, err := r.Route("xyzzy unrelated gibberish", "ns-a")
	require.NoError(t, err)
	assert.Equal(t, IntentGeneral, decision.Intent)
	assert.Equal(t, "fallback", decision.MatchedVia)
}

func TestContextBundleIncludesMediumImpactInsights(t *testing.T) {
	r := newTestRouter(t)
	_, err := r.knowledge.RecordValidationInsight(
		"flaky integration tests", "intermittent failures", "shared state",
		"rerun twice", "isolate fixtures", knowledge.ImpactMedium, 20)
	require.NoError(t, err)

	decision, err := r.Route("the tests are flaky again", "ns-a")
	require.NoError(t, err)
	found := false
	for _, item := range decision.ContextBundle {
		if item.Kind == "insight" {
			found = true
		}
	}
	assert.True(t, found, "medium-impact insights must surface in the context bundle")
}

func TestRouteIncludesContextBundle(t *testing.T) {
	r := newTestRouter(t)
	_, err := r.memory.AppendTurn("conv-1", memory.RoleUser, "earlier turn content")
	require.NoError(t, err)

	decision, err := r.Route("run the tests", "ns-a")
	require.NoError(t, err)
	found := false
	for _, item := range decision.ContextBundle {
		if item.Kind == "turn" {
			found = true
		}
	}
	assert.True(t, found)
}
