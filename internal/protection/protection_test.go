package protection

import (
	"testing"

	"github.com/cortex-ai/cortex/internal/cortexerr"
	"github.com/cortex-ai/cortex/internal/instinct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	tier0, err := instinct.LoadDefaults(instinct.DefaultCheckerRegistry())
	require.NoError(t, err)
	k, err := New(tier0, DefaultConfig())
	require.NoError(t, err)
	return k
}

func TestPreDispatchBlocksRootDocWrite(t *testing.T) {
	k := newTestKernel(t)
	result := k.PreDispatch(instinct.Context{Kind: "document_write", Path: "REPORT.md"})
	require.True(t, result.Blocked)
	assert.Equal(t, "no_root_docs", result.RuleID)
	assert.NotEmpty(t, result.Alternatives)
}

func TestPreDispatchPassesCategorisedDocWrite(t *testing.T) {
	k := newTestKernel(t)
	result := k.PreDispatch(instinct.Context{Kind: "document_write", Path: "reports/out.md"})
	assert.False(t, result.Blocked)
}

func TestPreDispatchWarnsOnLowClarityWithoutBlocking(t *testing.T) {
	k := newTestKernel(t)
	result := k.PreDispatch(instinct.Context{Kind: "plan_request", ClarityMarkers: 0})
	assert.False(t, result.Blocked)
	assert.NotEmpty(t, result.Warnings)
}

func TestPreEmitBlocksMissingMandatorySections(t *testing.T) {
	k := newTestKernel(t)
	result := k.PreEmit(instinct.Context{Kind: "response_render", Sections: []string{"understanding"}})
	require.True(t, result.Blocked)
	assert.Equal(t, "requires_mandatory_format", result.RuleID)
}

func TestResultAsErrorMatchesBlockedByRule(t *testing.T) {
	k := newTestKernel(t)
	result := k.PreDispatch(instinct.Context{Kind: "document_write", Path: "REPORT.md"})
	err := result.AsError()
	require.Error(t, err)
	ruleID, alts, ok := cortexerr.AsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, "no_root_docs", ruleID)
	assert.NotEmpty(t, alts)
}
