package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/hashutil"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGetDeleteKeys(t *testing.T) {
	store, err := cache.NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	returnKey := "LTN-2025-03-01-return-LTN (London Luton) to BUD (Budapest) - W6 2202"
	require.NoError(t, store.Put("LTN-2025-03-01", `{"a":1}`))
	require.NoError(t, store.Put(returnKey, `{"b":2}`))

	value, found, err := store.Get(returnKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"b":2}`, value)

	keys, err := store.Keys()
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"LTN-2025-03-01", returnKey}, keys)

	require.NoError(t, store.Delete("LTN-2025-03-01"))
	require.NoError(t, store.Delete("LTN-2025-03-01"))
	_, found, err = store.Get("LTN-2025-03-01")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_FileNameIsKeyDigest(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put("LTN-2025-03-01", "v"))

	_, statErr := os.Stat(filepath.Join(dir, hashutil.KeyDigest("LTN-2025-03-01")+".json"))
	assert.NoError(t, statErr)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	path := filepath.Join(dir, hashutil.KeyDigest("LTN-2025-03-01")+".json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	_, found, getErr := store.Get("LTN-2025-03-01")

	assert.False(t, found)
	var cacheErr *cache.CacheError
	require.True(t, errors.As(getErr, &cacheErr))
	assert.Equal(t, cache.ErrCauseCorruptEntry, cacheErr.Cause)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileStore_PurgeCorruptRemovesUndecodableFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put("LTN-2025-03-01", "v"))
	corrupt := filepath.Join(dir, hashutil.KeyDigest("BUD-2025-03-01")+".json")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0644))

	removed, err := store.PurgeCorrupt()

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, statErr := os.Stat(corrupt)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	keys, _ := store.Keys()
	assert.Equal(t, []string{"LTN-2025-03-01"}, keys)
}

func TestTTLCache_PurgeExpiredRemovesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	c := cache.NewTTLCache(store, timeutil.NewManualClock(time.Now()), cache.DefaultTTLs(), &metadata.NoopSink{})
	require.Nil(t, c.Put("LTN-2025-03-01", 1, cache.Results))
	corrupt := filepath.Join(dir, hashutil.KeyDigest("BUD-2025-03-01")+".json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0644))

	purged, purgeErr := c.PurgeExpired()

	require.Nil(t, purgeErr)
	assert.Equal(t, 1, purged)
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	clock := timeutil.NewManualClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))

	first, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	c1 := cache.NewTTLCache(first, clock, cache.DefaultTTLs(), &metadata.NoopSink{})
	require.Nil(t, c1.Put(cache.LastAirportKey, "LTN", cache.Results))

	second, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	c2 := cache.NewTTLCache(second, clock, cache.DefaultTTLs(), &metadata.NoopSink{})

	got, ok := cache.GetAs[string](c2, cache.LastAirportKey)
	require.True(t, ok)
	assert.Equal(t, "LTN", got)
}
