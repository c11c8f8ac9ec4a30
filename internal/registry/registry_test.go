package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAgent struct{}

func (stubAgent) CanHandle(intent string) bool { return true }

func TestRegisterAndGet(t *testing.T) {
	r := New()
	err := r.Register(Operation{ID: "op-plan", Triggers: []string{"make a plan"}, Construct: func() Agent { return stubAgent{} }})
	require.NoError(t, err)

	op, ok := r.Get("op-plan")
	require.True(t, ok)
	assert.Equal(t, "op-plan", op.ID)
}

func TestRegisterDuplicateIDFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-plan", Triggers: []string{"plan"}}))
	err := r.Register(Operation{ID: "op-plan", Triggers: []string{"plan again"}})
	assert.Error(t, err)
}

func TestRegisterConflictingTriggerFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-a", Triggers: []string{"run tests"}}))
	err := r.Register(Operation{ID: "op-b", Triggers: []string{"run tests"}})
	assert.Error(t, err)
}

func TestMatchTriggerLongestWins(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-test", Triggers: []string{"test"}}))
	require.NoError(t, r.Register(Operation{ID: "op-run-tests", Triggers: []string{"run the tests"}}))

	op, ok := r.MatchTrigger("please run the tests now")
	require.True(t, ok)
	assert.Equal(t, "op-run-tests", op.ID)
}

func TestMatchTriggerIsCaseInsensitive(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-run-tests", Triggers: []string{"run the tests"}}))

	op, ok := r.MatchTrigger("Please Run The Tests now")
	require.True(t, ok)
	assert.Equal(t, "op-run-tests", op.ID)
}

func TestRegisterRejectsCaseVariantDuplicateTrigger(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-a", Triggers: []string{"run tests"}}))
	err := r.Register(Operation{ID: "op-b", Triggers: []string{"Run Tests"}})
	assert.Error(t, err)
}

func TestMatchTriggerNoMatch(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-a", Triggers: []string{"deploy"}}))
	_, ok := r.MatchTrigger("say hello")
	assert.False(t, ok)
}

func TestListByUsageOrdersByResolvedCount(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-deploy", DisplayName: "Deploy", Triggers: []string{"deploy"}}))
	require.NoError(t, r.Register(Operation{ID: "op-test", DisplayName: "Test", Triggers: []string{"run the tests"}}))

	for i := 0; i < 2; i++ {
		_, ok := r.MatchTrigger("run the tests")
		require.True(t, ok)
	}
	_, ok := r.MatchTrigger("deploy it")
	require.True(t, ok)

	stats := r.ListByUsage()
	require.Len(t, stats, 2)
	assert.Equal(t, "op-test", stats[0].ID)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, "op-deploy", stats[1].ID)
	assert.Equal(t, 1, stats[1].Count)
}

func TestListByUsageIncludesNeverMatchedOperations(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-idle", Triggers: []string{"never said"}}))
	stats := r.ListByUsage()
	require.Len(t, stats, 1)
	assert.Equal(t, 0, stats[0].Count)
}

func TestMatchTriggerPhraseReturnsWinningPhrase(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(Operation{ID: "op-test", Triggers: []string{"test"}}))
	require.NoError(t, r.Register(Operation{ID: "op-run-tests", Triggers: []string{"run the tests"}}))

	op, phrase, ok := r.MatchTriggerPhrase("please run the tests now")
	require.True(t, ok)
	assert.Equal(t, "op-run-tests", op.ID)
	assert.Equal(t, "run the tests", phrase)

	// Mixed-case input still resolves, and the phrase comes back as
	// registered, not as typed.
	op, phrase, ok = r.MatchTriggerPhrase("RUN THE TESTS")
	require.True(t, ok)
	assert.Equal(t, "op-run-tests", op.ID)
	assert.Equal(t, "run the tests", phrase)
}
