package cache_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newCache() (*cache.TTLCache, *cache.MemoryStore, *timeutil.ManualClock) {
	store := cache.NewMemoryStore()
	clock := timeutil.NewManualClock(t0)
	return cache.NewTTLCache(store, clock, cache.DefaultTTLs(), &metadata.NoopSink{}), store, clock
}

func TestTTLCache_PutGetRoundTrip(t *testing.T) {
	c, _, _ := newCache()

	require.Nil(t, c.Put("LTN-2025-03-01", map[string]int{"legs": 3}, cache.Results))

	payload, ok := c.Get("LTN-2025-03-01")
	require.True(t, ok)
	assert.JSONEq(t, `{"legs":3}`, string(payload))
}

func TestTTLCache_ResultSetRoundTripThroughGetAs(t *testing.T) {
	c, _, _ := newCache()
	date, _ := flight.ParseDate("2025-03-01")
	set := flight.NewSearchResultSet("LTN", date)
	set.Append(flight.NewFlightLeg(
		flight.Station{Code: "LTN", Label: "London Luton"},
		flight.Station{Code: "BUD", Label: "Budapest"},
		"W6 2202", date,
		flight.NewClockTime(6, 0, 0), flight.NewClockTime(9, 30, time.Hour), "02:30",
	))

	require.Nil(t, c.Put(cache.ResultKey("LTN", date), set, cache.Results))

	got, ok := cache.GetAs[flight.SearchResultSet](c, "LTN-2025-03-01")
	require.True(t, ok)
	assert.Equal(t, set.Legs(), got.Legs())
	assert.Equal(t, "LTN", got.Origin())
}

func TestTTLCache_ExpiresAtExactlyTTLAndPurges(t *testing.T) {
	tests := []struct {
		name  string
		class cache.TTLClass
		ttl   time.Duration
	}{
		{name: "session data", class: cache.SessionData, ttl: time.Hour},
		{name: "results", class: cache.Results, ttl: 8 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store, clock := newCache()
			require.Nil(t, c.Put("k", "v", tt.class))

			clock.Advance(tt.ttl - time.Nanosecond)
			_, ok := c.Get("k")
			assert.True(t, ok, "fresh just before ttl")

			clock.Advance(time.Nanosecond)
			_, ok = c.Get("k")
			assert.False(t, ok, "stale at exactly ttl")

			_, found, err := store.Get("k")
			require.NoError(t, err)
			assert.False(t, found, "stale entry purged from the store")
		})
	}
}

func TestTTLCache_PutAtKeepsOriginalStoredAt(t *testing.T) {
	c, _, clock := newCache()
	require.Nil(t, c.Put(cache.SessionContextKey, map[string]string{"endpoint": "x"}, cache.SessionData))
	first, ok := c.GetEntry(cache.SessionContextKey)
	require.True(t, ok)

	clock.Advance(50 * time.Minute)
	require.Nil(t, c.PutAt(cache.SessionContextKey, map[string]string{"endpoint": "x", "headers": "y"}, cache.SessionData, first.StoredAt))

	clock.Advance(10 * time.Minute)
	_, ok = c.Get(cache.SessionContextKey)
	assert.False(t, ok, "merged entry expires with the original capture time")
}

func TestTTLCache_Invalidate(t *testing.T) {
	c, _, _ := newCache()
	require.Nil(t, c.Put("LTN-2025-03-01", []int{}, cache.Results))

	require.Nil(t, c.Invalidate("LTN-2025-03-01"))
	require.Nil(t, c.Invalidate("never-stored"))

	_, ok := c.Get("LTN-2025-03-01")
	assert.False(t, ok)
}

func TestTTLCache_CorruptEntryIsAbsentAndPurged(t *testing.T) {
	c, store, _ := newCache()
	require.NoError(t, store.Put("LTN-2025-03-01", "{not json"))

	_, ok := c.Get("LTN-2025-03-01")

	assert.False(t, ok)
	assert.Equal(t, 0, store.Size())
}

func TestGetAs_UndecodablePayloadIsAbsent(t *testing.T) {
	c, store, _ := newCache()
	require.Nil(t, c.Put("LTN-2025-03-01", "a string, not a result set", cache.Results))

	_, ok := cache.GetAs[flight.SearchResultSet](c, "LTN-2025-03-01")

	assert.False(t, ok)
	assert.Equal(t, 0, store.Size())
}

func TestTTLCache_ResultKeysMatchPatternSorted(t *testing.T) {
	c, _, _ := newCache()
	for _, k := range []string{
		"OTP-2025-03-02",
		"LTN-2025-03-01",
		"LTN-2025-03-01-return-LTN (London Luton) to BUD (Budapest) - W6 2202",
		cache.SessionContextKey,
		cache.LastAirportKey,
		"ltn-2025-03-01",
		"LTN-25-03-01",
	} {
		require.Nil(t, c.Put(k, 1, cache.Results))
	}

	keys, err := c.ResultKeys()

	require.Nil(t, err)
	assert.Equal(t, []string{"LTN-2025-03-01", "OTP-2025-03-02"}, keys)

	returns, err := c.ReturnKeys("LTN-2025-03-01")
	require.Nil(t, err)
	assert.Len(t, returns, 1)
}

func TestTTLCache_PurgeExpired(t *testing.T) {
	c, store, clock := newCache()
	require.Nil(t, c.Put("LTN-2025-03-01", 1, cache.Results))
	require.Nil(t, c.Put(cache.SessionContextKey, 1, cache.SessionData))
	clock.Advance(2 * time.Hour)
	require.Nil(t, c.Put("OTP-2025-03-02", 1, cache.Results))

	clock.Advance(6*time.Hour + time.Minute)
	purged, err := c.PurgeExpired()

	require.Nil(t, err)
	assert.Equal(t, 2, purged)
	keys, _ := store.Keys()
	assert.Equal(t, []string{"OTP-2025-03-02"}, keys)
}

func TestTTLCache_ClearResultsKeepsSessionAndLastAirport(t *testing.T) {
	c, store, _ := newCache()
	require.Nil(t, c.Put("LTN-2025-03-01", 1, cache.Results))
	require.Nil(t, c.Put(cache.ReturnKey("LTN-2025-03-01", "LTN (L) to BUD (B) - W6 1"), 1, cache.Results))
	require.Nil(t, c.Put(cache.SessionContextKey, 1, cache.SessionData))
	require.Nil(t, c.Put(cache.LastAirportKey, "LTN", cache.Results))

	removed, err := c.ClearResults()

	require.Nil(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, store.Size())
	_, ok := c.Get(cache.LastAirportKey)
	assert.True(t, ok)
}

func TestTTLCache_ConcurrentWritersOnOneKey(t *testing.T) {
	c, _, _ := newCache()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = c.Put("LTN-2025-03-01", map[string]int{"n": n}, cache.Results)
			_, _ = c.Get("LTN-2025-03-01")
		}(i)
	}
	wg.Wait()

	payload, ok := c.Get("LTN-2025-03-01")
	require.True(t, ok)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Contains(t, decoded, "n")
}

// unreadableStore fails every read of one key without removing it.
type unreadableStore struct {
	*cache.MemoryStore
	key string
}

func (s unreadableStore) Get(key string) (string, bool, error) {
	if key == s.key {
		return "", false, &cache.CacheError{Message: "permission denied", Retryable: true, Cause: cache.ErrCauseReadFailed}
	}
	return s.MemoryStore.Get(key)
}

func TestTTLCache_PurgeExpiredDoesNotCountFailedReads(t *testing.T) {
	memory := cache.NewMemoryStore()
	store := unreadableStore{MemoryStore: memory, key: "BUD-2025-03-01"}
	clock := timeutil.NewManualClock(t0)
	c := cache.NewTTLCache(store, clock, cache.DefaultTTLs(), &metadata.NoopSink{})
	require.Nil(t, c.Put("LTN-2025-03-01", 1, cache.Results))
	require.Nil(t, c.Put("BUD-2025-03-01", 1, cache.Results))

	clock.Advance(9 * time.Hour)
	purged, err := c.PurgeExpired()

	require.Nil(t, err)
	assert.Equal(t, 1, purged)
	keys, _ := memory.Keys()
	assert.Equal(t, []string{"BUD-2025-03-01"}, keys)
}
