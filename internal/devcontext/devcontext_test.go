package devcontext

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tier3.db")
	store, err := Open(path, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGetMetrics(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RecordMetric("ns-a", "lines_changed", 42)
	require.NoError(t, err)
	_, err = store.RecordMetric("ns-a", "lines_changed", 10)
	require.NoError(t, err)

	metrics, err := store.GetMetrics("ns-a", []string{"lines_changed", "missing"})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 10.0, metrics[0].Value)
}

func TestMetricsAreNamespaceIsolated(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RecordMetric("ns-a", "builds", 1)
	require.NoError(t, err)

	metrics, err := store.GetMetrics("ns-b", []string{"builds"})
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestUpsertHotspotFlagsAboveThreshold(t *testing.T) {
	store := newTestStore(t)
	h, err := store.UpsertHotspot("ns-a", "internal/foo.go", 0.9)
	require.NoError(t, err)
	assert.True(t, h.IsHotspot)

	hotspots, err := store.Hotspots("ns-a")
	require.NoError(t, err)
	require.Len(t, hotspots, 1)
	assert.Equal(t, "internal/foo.go", hotspots[0].FilePath)
}

func TestUpsertHotspotBelowThresholdNotFlagged(t *testing.T) {
	store := newTestStore(t)
	_, err := store.UpsertHotspot("ns-a", "internal/foo.go", 0.1)
	require.NoError(t, err)

	hotspots, err := store.Hotspots("ns-a")
	require.NoError(t, err)
	assert.Empty(t, hotspots)
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	store := newTestStore(t)
	_, err := store.PutCache("ns-a", "k1", []byte("v1"), time.Hour)
	require.NoError(t, err)

	entry, found, err := store.GetCache("ns-a", "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), entry.Value)

	_, err = store.PutCache("ns-a", "k2", []byte("v2"), -time.Hour)
	require.NoError(t, err)
	_, found, err = store.GetCache("ns-a", "k2")
	require.NoError(t, err)
	assert.False(t, found, "already-expired entry must read as a miss")
}

func TestPurgeExpiredRemovesOnlyExpired(t *testing.T) {
	store := newTestStore(t)
	_, err := store.PutCache("ns-a", "fresh", []byte("v"), time.Hour)
	require.NoError(t, err)
	_, err = store.PutCache("ns-a", "stale", []byte("v"), time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	removed, err := store.PurgeExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, found, err := store.GetCache("ns-a", "fresh")
	require.NoError(t, err)
	assert.True(t, found)
}
