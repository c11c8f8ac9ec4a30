package instinct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	reg := DefaultCheckerRegistry()
	tier0, err := LoadDefaults(reg)
	require.NoError(t, err)

	rule, ok := tier0.GetRule("no_root_docs")
	require.True(t, ok)
	assert.Equal(t, SeverityBlocking, rule.Severity)
	assert.Equal(t, LayerGovernance, rule.Layer)

	governance := tier0.RulesForLayer(LayerGovernance)
	assert.Len(t, governance, 2)
}

func TestLoadBytesRejectsDuplicateKey(t *testing.T) {
	reg := DefaultCheckerRegistry()
	data := []byte(`
rules:
  - id: no_root_docs
    layer: governance
    severity: blocking
    checker_ref: no_root_docs
    message: "dup"
    version: 1
  - id: no_root_docs
    layer: governance
    severity: blocking
    checker_ref: no_root_docs
    message: "dup again"
    version: 1
`)
	_, err := LoadBytes(data, reg)
	assert.Error(t, err)
}

func TestLoadBytesRejectsUnknownChecker(t *testing.T) {
	reg := NewCheckerRegistry()
	data := []byte(`
rules:
  - id: ghost
    layer: governance
    severity: blocking
    checker_ref: nonexistent
    message: "ghost rule"
    version: 1
`)
	_, err := LoadBytes(data, reg)
	assert.Error(t, err)
}

func TestCheckNoRootDocs(t *testing.T) {
	reg := DefaultCheckerRegistry()
	tier0, err := LoadDefaults(reg)
	require.NoError(t, err)

	blocked := tier0.Check("no_root_docs", Context{Kind: "document_write", Path: "SUMMARY.md"})
	assert.False(t, blocked.Pass)
	assert.NotEmpty(t, blocked.Alternatives)

	allowed := tier0.Check("no_root_docs", Context{Kind: "document_write", Path: "reports/summary.md"})
	assert.True(t, allowed.Pass)
}

func TestCheckRequiresMandatoryFormat(t *testing.T) {
	reg := DefaultCheckerRegistry()
	tier0, err := LoadDefaults(reg)
	require.NoError(t, err)

	v := tier0.Check("requires_mandatory_format", Context{
		Kind:     "response_render",
		Sections: []string{"understanding", "response"},
	})
	assert.False(t, v.Pass)

	v2 := tier0.Check("requires_mandatory_format", Context{
		Kind:     "response_render",
		Sections: []string{"understanding", "challenge", "response", "request", "next_steps"},
	})
	assert.True(t, v2.Pass)
}

func TestCheckConfidenceSpikeGuard(t *testing.T) {
	reg := DefaultCheckerRegistry()
	tier0, err := LoadDefaults(reg)
	require.NoError(t, err)

	blocked := tier0.Check("confidence_spike_guard", Context{
		Kind:             "knowledge_update",
		ConfidenceDelta:  0.30,
		SupportingEvents: 1,
		Fields:           map[string]any{"limit": 0.20, "min_events": 5},
	})
	assert.False(t, blocked.Pass)

	allowed := tier0.Check("confidence_spike_guard", Context{
		Kind:             "knowledge_update",
		ConfidenceDelta:  0.30,
		SupportingEvents: 5,
		Fields:           map[string]any{"limit": 0.20, "min_events": 5},
	})
	assert.True(t, allowed.Pass)
}

func TestCheckUnknownPredicateFailsClosed(t *testing.T) {
	reg := DefaultCheckerRegistry()
	tier0, err := LoadDefaults(reg)
	require.NoError(t, err)

	v := tier0.Check("does_not_exist", Context{})
	assert.False(t, v.Pass)
	assert.Equal(t, SeverityBlocking, v.Severity)
}
