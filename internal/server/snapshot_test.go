package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotExporter_Export(t *testing.T) {
	store := NewStore()
	store.Append("a")
	store.Append("b")
	store.Increment("a")

	storage := newFakeObjectStorage()
	exp := NewSnapshotExporter(storage, "bucket", store, SnapshotConfig{Prefix: "snaps"})

	info, err := exp.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "bucket", info.Bucket)
	assert.True(t, strings.HasPrefix(info.Key, "snaps/snapshot-"), info.Key)
	assert.True(t, strings.HasSuffix(info.Key, ".json"), info.Key)
	assert.Equal(t, 2, info.LogSize)
	assert.Equal(t, 1, info.FrequencySize)

	data, ok := storage.object("bucket", info.Key)
	require.True(t, ok)
	assert.EqualValues(t, len(data), info.SizeBytes)
	assert.Equal(t, "application/json", storage.types["bucket/"+info.Key])

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, []string{"a", "b"}, snap.Log)
	assert.Equal(t, map[string]int{"a": 1}, snap.Frequencies)
}

func TestSnapshotExporter_KeysAreUnique(t *testing.T) {
	storage := newFakeObjectStorage()
	exp := NewSnapshotExporter(storage, "bucket", NewStore(), SnapshotConfig{})

	first, err := exp.Export(context.Background())
	require.NoError(t, err)
	second, err := exp.Export(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.False(t, strings.Contains(first.Key, "/"), "no prefix configured")
	assert.Equal(t, 2, storage.count())
}

func TestSnapshotExporter_UploadErrorOpensBreaker(t *testing.T) {
	storage := newFakeObjectStorage()
	storage.putErr = errors.New("unreachable")
	exp := NewSnapshotExporter(storage, "bucket", NewStore(), SnapshotConfig{})

	for i := 0; i < 3; i++ {
		_, err := exp.Export(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, exp.Breaker().State())

	_, err := exp.Export(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestSnapshotExporter_Ping(t *testing.T) {
	storage := newFakeObjectStorage()
	exp := NewSnapshotExporter(storage, "bucket", NewStore(), SnapshotConfig{})
	assert.NoError(t, exp.Ping(context.Background()))

	storage.exists = false
	assert.Error(t, exp.Ping(context.Background()))
}

func TestSnapshotExporter_Schedule(t *testing.T) {
	storage := newFakeObjectStorage()
	exp := NewSnapshotExporter(storage, "bucket", NewStore(), SnapshotConfig{Interval: 20 * time.Millisecond})

	var mu sync.Mutex
	exports := 0
	exp.Start(func(_ SnapshotInfo, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			exports++
		}
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return exports >= 2
	}, 2*time.Second, 10*time.Millisecond)

	exp.Stop()
	after := storage.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, storage.count(), "no exports after Stop")
}

func TestSnapshotExporter_ZeroIntervalStopIsSafe(t *testing.T) {
	exp := NewSnapshotExporter(newFakeObjectStorage(), "bucket", NewStore(), SnapshotConfig{})
	exp.Start(nil)
	exp.Stop()
	exp.Stop()
}
