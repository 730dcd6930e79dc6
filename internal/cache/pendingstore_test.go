package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/cache"
	"github.com/barad1tos/reconciler/internal/model"
)

func TestJSONPendingStoreSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	store, err := cache.NewJSONPendingStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Set(model.PendingVerificationEntry{
		Artist: "Boards of Canada", Album: "Geogaddi",
		Reason: model.ReasonSuspiciousYearChange, Timestamp: time.Now(),
	}))

	entry, ok := store.Get("Boards of Canada", "Geogaddi")
	require.True(t, ok)
	assert.Equal(t, model.ReasonSuspiciousYearChange, entry.Reason)
}

func TestJSONPendingStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	store, err := cache.NewJSONPendingStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(model.PendingVerificationEntry{
		Artist: "Autechre", Album: "Confield", Reason: model.ReasonNoYearFound, Timestamp: time.Now(),
	}))

	reloaded, err := cache.NewJSONPendingStore(path)
	require.NoError(t, err)
	_, ok := reloaded.Get("Autechre", "Confield")
	assert.True(t, ok)
}

func TestJSONPendingStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	store, err := cache.NewJSONPendingStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(model.PendingVerificationEntry{Artist: "A", Album: "B", Timestamp: time.Now()}))

	require.NoError(t, store.Delete("A", "B"))
	_, ok := store.Get("A", "B")
	assert.False(t, ok)
}

func TestJSONPendingStoreReapExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	store, err := cache.NewJSONPendingStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Set(model.PendingVerificationEntry{
		Artist: "Old", Album: "Entry", Timestamp: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, store.Set(model.PendingVerificationEntry{
		Artist: "New", Album: "Entry", Timestamp: time.Now(),
	}))

	removed, err := store.ReapExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, oldStillThere := store.Get("Old", "Entry")
	assert.False(t, oldStillThere)
	_, newStillThere := store.Get("New", "Entry")
	assert.True(t, newStillThere)
}

func TestNewJSONPendingStoreMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store, err := cache.NewJSONPendingStore(path)
	require.NoError(t, err)
	_, ok := store.Get("Anyone", "Anything")
	assert.False(t, ok)
}
