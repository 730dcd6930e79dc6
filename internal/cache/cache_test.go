package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/cache"
	"github.com/barad1tos/reconciler/internal/model"
)

func TestTTLCacheSetGetDelete(t *testing.T) {
	c := cache.NewTTLCache(50 * time.Millisecond)
	defer c.Stop()

	c.Set("k", []byte("v"), -1)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheExpires(t *testing.T) {
	c := cache.NewTTLCache(20 * time.Millisecond)
	defer c.Stop()
	c.Set("k", []byte("v"), -1)
	time.Sleep(60 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheGetAsync(t *testing.T) {
	c := cache.NewTTLCache(time.Minute)
	defer c.Stop()
	calls := 0
	compute := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}
	v1, err := c.GetAsync("k", compute)
	require.NoError(t, err)
	v2, err := c.GetAsync("k", compute)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
}

func TestTTLCacheSaveLoadDropsExpired(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ttl.json")

	c := cache.NewTTLCache(time.Minute)
	c.Set("fresh", []byte("v1"), time.Hour)
	c.Set("stale", []byte("v2"), 1*time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Save(path))
	c.Stop()

	loaded, err := cache.LoadTTLCache(path, time.Minute)
	require.NoError(t, err)
	defer loaded.Stop()

	_, ok := loaded.Get("fresh")
	assert.True(t, ok)
	_, ok = loaded.Get("stale")
	assert.False(t, ok)
}

func TestAlbumYearCacheStoreGetInvalidate(t *testing.T) {
	bus := cache.NewBus(10, nil)
	c := cache.NewAlbumYearCache(bus)

	require.NoError(t, c.Store("Artist", "Album", "1999", 90))
	year, ok := c.Get("Artist", "Album")
	require.True(t, ok)
	assert.Equal(t, "1999", year)

	c.Invalidate("Artist", "Album")
	_, ok = c.Get("Artist", "Album")
	assert.False(t, ok)
}

func TestAlbumYearCacheRejectsOutOfRangeYear(t *testing.T) {
	c := cache.NewAlbumYearCache(nil)
	err := c.Store("Artist", "Album", "1899", 90)
	require.Error(t, err)
}

func TestAlbumYearCacheFlushLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albumyear.json")

	c := cache.NewAlbumYearCache(nil)
	require.NoError(t, c.Store("Artist", "Album", "2001", 80))
	require.NoError(t, c.Flush(path))

	loaded, err := cache.LoadAlbumYearCache(path, nil)
	require.NoError(t, err)
	year, ok := loaded.Get("Artist", "Album")
	require.True(t, ok)
	assert.Equal(t, "2001", year)
}

func TestAlbumYearNormalizeKeyStable(t *testing.T) {
	k1 := cache.AlbumYearKey("The Beatles!", "Abbey Road")
	k2 := cache.AlbumYearKey("the beatles", "abbey road")
	assert.Equal(t, k1, k2)
}

func TestAPIResponseCacheJSONFileEternalOnSuccess(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewJSONFileAPIResponseStore(filepath.Join(dir, "api.json"))
	require.NoError(t, err)
	c := cache.NewAPIResponseCache(store, 10*time.Millisecond)

	key := cache.APIResponseKey("musicbrainz", "https://example", nil)
	require.NoError(t, c.Set(key, model.CachedAPIResult{Artist: "A", Album: "B", Success: true, Year: "1999"}))

	time.Sleep(30 * time.Millisecond)
	result, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "1999", result.Year)
}

func TestAPIResponseCacheJSONFileFailedExpires(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewJSONFileAPIResponseStore(filepath.Join(dir, "api.json"))
	require.NoError(t, err)
	c := cache.NewAPIResponseCache(store, 10*time.Millisecond)

	key := cache.APIResponseKey("musicbrainz", "https://example", nil)
	require.NoError(t, c.Set(key, model.CachedAPIResult{Artist: "A", Album: "B", Success: false}))

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestAPIResponseCacheInvalidateForAlbum(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewJSONFileAPIResponseStore(filepath.Join(dir, "api.json"))
	require.NoError(t, err)
	c := cache.NewAPIResponseCache(store, time.Hour)

	key := cache.APIResponseKey("musicbrainz", "https://example", nil)
	require.NoError(t, c.Set(key, model.CachedAPIResult{Artist: "A", Album: "B", Success: true, Year: "2000"}))
	require.NoError(t, c.InvalidateForAlbum("A", "B"))

	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestAPIResponseCacheRedisBacked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := cache.NewRedisAPIResponseStore(client)
	c := cache.NewAPIResponseCache(store, time.Hour)

	key := cache.APIResponseKey("discogs", "https://example", map[string]string{"q": "x"})
	require.NoError(t, c.Set(key, model.CachedAPIResult{Artist: "A", Album: "B", Success: true, Year: "2010"}))

	result, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "2010", result.Year)

	require.NoError(t, c.InvalidateForAlbum("A", "B"))
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestBusDispatchesToSubscriber(t *testing.T) {
	bus := cache.NewBus(4, nil)
	received := make(chan cache.Event, 10)
	bus.Subscribe(func(_ context.Context, e cache.Event) {
		received <- e
	})

	bus.Publish(cache.Event{Type: cache.TrackModified, TrackID: "t1"})

	select {
	case e := <-received:
		assert.Equal(t, "t1", e.TrackID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event dispatch")
	}
}
