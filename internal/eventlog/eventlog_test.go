package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	log, err := Open(path, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestEmitThenReadAfterRoundTrip(t *testing.T) {
	log := newTestLog(t)

	type payload struct {
		Foo string `json:"foo"`
	}
	id, err := log.Emit(KindRequestHandled, payload{Foo: "bar"}, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	events, err := log.ReadAfter(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, KindRequestHandled, events[0].Kind)
	assert.Equal(t, "trace-1", events[0].TraceID)
	assert.JSONEq(t, `{"foo":"bar"}`, string(events[0].Payload))
}

func TestCursorAdvanceIsDurable(t *testing.T) {
	log := newTestLog(t)

	for i := 0; i < 3; i++ {
		_, err := log.Emit(KindFileEdited, map[string]int{"n": i}, "")
		require.NoError(t, err)
	}

	cursor, err := log.Cursor("learning")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cursor)

	pending, err := log.PendingCount("learning")
	require.NoError(t, err)
	assert.Equal(t, 3, pending)

	require.NoError(t, log.Advance("learning", 2))

	cursor, err = log.Cursor("learning")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor)

	pending, err = log.PendingCount("learning")
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestReadAfterOrderingIsDeterministic(t *testing.T) {
	log := newTestLog(t)
	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := log.Emit(KindRouteSuccess, i, "")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	events, err := log.ReadAfter(ids[1], 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, ids[2+i], e.ID)
	}
}

func TestOldestPendingAgeNoEvents(t *testing.T) {
	log := newTestLog(t)
	_, found, err := log.OldestPendingAge("learning")
	require.NoError(t, err)
	assert.False(t, found)
}
