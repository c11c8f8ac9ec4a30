package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	emitted []string
}

func (f *fakeEmitter) Emit(kind string, payload any, traceID string) (int64, error) {
	f.emitted = append(f.emitted, kind)
	return int64(len(f.emitted)), nil
}

func newTestStore(t *testing.T, capacity int) (*Store, *fakeEmitter) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tier1.db")
	emitter := &fakeEmitter{}
	store, err := Open(path, 3, Config{Capacity: capacity, ActiveWindowMinutes: 30}, emitter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, emitter
}

func TestAppendTurnCreatesConversation(t *testing.T) {
	store, _ := newTestStore(t, 70)

	turn, err := store.AppendTurn("conv-1", RoleUser, "hello there")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", turn.ConversationID)
	assert.Equal(t, 2, turn.TokenEstimate)

	detail, found, err := store.GetConversation("conv-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, detail.Conversation.MessageCount)
	require.Len(t, detail.Turns, 1)
	assert.Equal(t, "hello there", detail.Turns[0].Content)
	assert.Equal(t, RoleUser, detail.Turns[0].Role)
}

func TestAppendTurnRoundTripVerbatim(t *testing.T) {
	store, _ := newTestStore(t, 70)

	_, err := store.AppendTurn("conv-1", RoleUser, "first")
	require.NoError(t, err)
	_, err = store.AppendTurn("conv-1", RoleAssistant, "second")
	require.NoError(t, err)

	detail, _, err := store.GetConversation("conv-1")
	require.NoError(t, err)
	require.Len(t, detail.Turns, 2)
	assert.Equal(t, "first", detail.Turns[0].Content)
	assert.Equal(t, "second", detail.Turns[1].Content)
	assert.True(t, detail.Turns[0].Timestamp.Before(detail.Turns[1].Timestamp) || detail.Turns[0].Timestamp.Equal(detail.Turns[1].Timestamp))
}

func TestFIFOEvictionPreservesActive(t *testing.T) {
	store, emitter := newTestStore(t, 3)

	_, err := store.AppendTurn("A", RoleUser, "old")
	require.NoError(t, err)
	_, err = store.AppendTurn("B", RoleUser, "mid")
	require.NoError(t, err)
	_, err = store.AppendTurn("C", RoleUser, "active")
	require.NoError(t, err)

	// D triggers eviction; C is the most recently touched (active).
	_, err = store.AppendTurn("D", RoleUser, "newest")
	require.NoError(t, err)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, foundA, err := store.GetConversation("A")
	require.NoError(t, err)
	assert.False(t, foundA, "oldest conversation should have been evicted")

	_, foundC, err := store.GetConversation("C")
	require.NoError(t, err)
	assert.True(t, foundC, "active conversation must never be evicted")

	assert.Contains(t, emitter.emitted, eventKindEvicted)
}

func TestAdjustQualityScoreSmoothsTowardObservation(t *testing.T) {
	store, _ := newTestStore(t, 70)
	_, err := store.AppendTurn("conv-1", RoleUser, "hello")
	require.NoError(t, err)

	// Starting from the schema default of 0, each clean observation of 10
	// moves the score by alpha = 0.2 of the remaining distance.
	score, err := store.AdjustQualityScore("conv-1", 10)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score, 1e-9)

	score, err = store.AdjustQualityScore("conv-1", 10)
	require.NoError(t, err)
	assert.InDelta(t, 3.6, score, 1e-9)

	detail, _, err := store.GetConversation("conv-1")
	require.NoError(t, err)
	assert.InDelta(t, 3.6, detail.Conversation.QualityScore, 1e-9)
}

func TestAdjustQualityScoreClampsObservation(t *testing.T) {
	store, _ := newTestStore(t, 70)
	_, err := store.AppendTurn("conv-1", RoleUser, "hello")
	require.NoError(t, err)

	score, err := store.AdjustQualityScore("conv-1", 99)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, score, 1e-9)
}

func TestAdjustQualityScoreUnknownConversationErrors(t *testing.T) {
	store, _ := newTestStore(t, 70)
	_, err := store.AdjustQualityScore("missing", 10)
	assert.Error(t, err)
}

func TestGetRecentTurnsReverseChronological(t *testing.T) {
	store, _ := newTestStore(t, 70)
	_, err := store.AppendTurn("conv-1", RoleUser, "one")
	require.NoError(t, err)
	_, err = store.AppendTurn("conv-1", RoleUser, "two")
	require.NoError(t, err)
	_, err = store.AppendTurn("conv-1", RoleUser, "three")
	require.NoError(t, err)

	recent, err := store.GetRecentTurns(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Content)
	assert.Equal(t, "two", recent[1].Content)
}
