package cache

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
)

type TTLClass string

const (
	// SessionData covers scraped session context (routes, endpoint, headers).
	SessionData TTLClass = "session"
	// Results covers outbound result sets, return candidates and the last airport.
	Results TTLClass = "results"
)

// TTLs maps each class to its lifetime.
type TTLs struct {
	Session time.Duration
	Results time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Session: time.Hour,
		Results: 8 * time.Hour,
	}
}

func (t TTLs) For(class TTLClass) time.Duration {
	if class == SessionData {
		return t.Session
	}
	return t.Results
}

// Entry is one cached payload together with its bookkeeping.
type Entry struct {
	Key      string
	Payload  json.RawMessage
	StoredAt time.Time
	Class    TTLClass
}

type envelope struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"storedAt"`
	Class    TTLClass        `json:"ttlClass"`
}

/*
TTLCache
  - Wraps a Store with per-entry expiry judged against an injected Clock
  - An entry read at now - storedAt >= ttl(class) is reported absent and purged
  - A payload that cannot be decoded is treated as absent and purged
  - Operations on one key are serialized; a stale read cannot race a refresh
  - Never returns a stale entry
*/
type TTLCache struct {
	store        Store
	clock        timeutil.Clock
	ttls         TTLs
	metadataSink metadata.MetadataSink
	keyLocks     sync.Map
}

func NewTTLCache(
	store Store,
	clock timeutil.Clock,
	ttls TTLs,
	metadataSink metadata.MetadataSink,
) *TTLCache {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &TTLCache{
		store:        store,
		clock:        clock,
		ttls:         ttls,
		metadataSink: metadataSink,
	}
}

func (c *TTLCache) lock(key string) func() {
	mu, _ := c.keyLocks.LoadOrStore(key, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Get returns the payload stored under key, or false when absent or stale.
func (c *TTLCache) Get(key string) (json.RawMessage, bool) {
	entry, ok := c.GetEntry(key)
	if !ok {
		return nil, false
	}
	return entry.Payload, true
}

// GetEntry is Get with the entry's bookkeeping.
func (c *TTLCache) GetEntry(key string) (Entry, bool) {
	unlock := c.lock(key)
	defer unlock()

	return c.getLocked(key)
}

// readOutcome tells a plain miss apart from an entry that was removed on read
// and from a read that failed without touching the store.
type readOutcome int

const (
	readHit readOutcome = iota
	readMiss
	readPurged
	readFailed
)

func (c *TTLCache) getLocked(key string) (Entry, bool) {
	entry, outcome := c.readLocked(key)
	return entry, outcome == readHit
}

func (c *TTLCache) readLocked(key string) (Entry, readOutcome) {
	raw, found, err := c.store.Get(key)
	if err != nil {
		c.recordError("Get", err, key)
		c.metadataSink.RecordCacheEvent(metadata.CacheMiss, key, nil)
		var cacheErr *CacheError
		if errors.As(err, &cacheErr) && cacheErr.Cause == ErrCauseCorruptEntry {
			return Entry{}, c.purgeOutcome(key)
		}
		return Entry{}, readFailed
	}
	if !found {
		c.metadataSink.RecordCacheEvent(metadata.CacheMiss, key, nil)
		return Entry{}, readMiss
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || len(env.Payload) == 0 {
		c.recordError("Get", &CacheError{Message: "undecodable envelope", Cause: ErrCauseCorruptEntry}, key)
		return Entry{}, c.purgeOutcome(key)
	}

	entry := Entry{Key: key, Payload: env.Payload, StoredAt: env.StoredAt, Class: env.Class}
	if c.isStale(entry) {
		return Entry{}, c.purgeOutcome(key)
	}

	c.metadataSink.RecordCacheEvent(metadata.CacheHit, key, nil)
	return entry, readHit
}

func (c *TTLCache) purgeOutcome(key string) readOutcome {
	if err := c.purgeLocked(key, metadata.CacheExpired); err != nil {
		return readFailed
	}
	return readPurged
}

func (c *TTLCache) isStale(entry Entry) bool {
	return c.clock.Now().Sub(entry.StoredAt) >= c.ttls.For(entry.Class)
}

// Put stores payload (JSON encoded) under key with storedAt = now.
func (c *TTLCache) Put(key string, payload any, class TTLClass) failure.ClassifiedError {
	return c.PutAt(key, payload, class, c.clock.Now())
}

// PutAt stores payload with an explicit storedAt. Merging new fields into an
// existing entry keeps the original storedAt so the entry still expires as a whole.
func (c *TTLCache) PutAt(key string, payload any, class TTLClass, storedAt time.Time) failure.ClassifiedError {
	encoded, err := json.Marshal(payload)
	if err != nil {
		cacheErr := &CacheError{Message: err.Error(), Cause: ErrCauseEncodeFailed}
		c.recordError("Put", cacheErr, key)
		return cacheErr
	}
	raw, err := json.Marshal(envelope{Payload: encoded, StoredAt: storedAt, Class: class})
	if err != nil {
		cacheErr := &CacheError{Message: err.Error(), Cause: ErrCauseEncodeFailed}
		c.recordError("Put", cacheErr, key)
		return cacheErr
	}

	unlock := c.lock(key)
	defer unlock()

	if err := c.store.Put(key, string(raw)); err != nil {
		classified := asCacheError(err, ErrCauseWriteFailed)
		c.recordError("Put", classified, key)
		return classified
	}
	c.metadataSink.RecordCacheEvent(metadata.CacheStore, key, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrField, string(class)),
	})
	return nil
}

// Invalidate removes key regardless of age.
func (c *TTLCache) Invalidate(key string) failure.ClassifiedError {
	unlock := c.lock(key)
	defer unlock()

	return c.purgeLocked(key, metadata.CacheInvalidate)
}

func (c *TTLCache) purgeLocked(key string, kind metadata.CacheEventKind) failure.ClassifiedError {
	if err := c.store.Delete(key); err != nil {
		classified := asCacheError(err, ErrCauseWriteFailed)
		c.recordError("Delete", classified, key)
		return classified
	}
	c.metadataSink.RecordCacheEvent(kind, key, nil)
	return nil
}

// ResultKeys lists every key matching the result-key pattern, sorted.
// Staleness is not checked; use PurgeExpired first when that matters.
func (c *TTLCache) ResultKeys() ([]string, failure.ClassifiedError) {
	keys, err := c.store.Keys()
	if err != nil {
		classified := asCacheError(err, ErrCauseReadFailed)
		c.recordError("ResultKeys", classified, "")
		return nil, classified
	}
	var results []string
	for _, k := range keys {
		if IsResultKey(k) {
			results = append(results, k)
		}
	}
	sort.Strings(results)
	return results, nil
}

// ReturnKeys lists the return entries derived from resultKey, sorted.
func (c *TTLCache) ReturnKeys(resultKey string) ([]string, failure.ClassifiedError) {
	keys, err := c.store.Keys()
	if err != nil {
		classified := asCacheError(err, ErrCauseReadFailed)
		c.recordError("ReturnKeys", classified, resultKey)
		return nil, classified
	}
	prefix := ReturnPrefix(resultKey)
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// PurgeExpired reads every stored entry once, which purges the stale and the
// undecodable ones. It returns the number of entries removed; entries whose read
// failed are left in place and not counted.
func (c *TTLCache) PurgeExpired() (int, failure.ClassifiedError) {
	purged := 0
	if sweeper, ok := c.store.(corruptSweeper); ok {
		removed, err := sweeper.PurgeCorrupt()
		purged += removed
		if err != nil {
			c.recordError("PurgeExpired", asCacheError(err, ErrCauseWriteFailed), "")
		}
	}

	keys, err := c.store.Keys()
	if err != nil {
		classified := asCacheError(err, ErrCauseReadFailed)
		c.recordError("PurgeExpired", classified, "")
		return purged, classified
	}
	for _, k := range keys {
		unlock := c.lock(k)
		_, outcome := c.readLocked(k)
		unlock()
		if outcome == readPurged {
			purged++
		}
	}
	return purged, nil
}

// ClearResults removes every result entry and every return entry derived from
// one. Session context and the last airport are kept.
func (c *TTLCache) ClearResults() (int, failure.ClassifiedError) {
	keys, err := c.store.Keys()
	if err != nil {
		classified := asCacheError(err, ErrCauseReadFailed)
		c.recordError("ClearResults", classified, "")
		return 0, classified
	}

	removed := 0
	for _, k := range keys {
		if !IsResultKey(k) && !isReturnKey(k) {
			continue
		}
		if err := c.Invalidate(k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func isReturnKey(key string) bool {
	i := strings.Index(key, returnInfix)
	return i > 0 && IsResultKey(key[:i])
}

// GetAs decodes the payload under key into T. An undecodable payload is treated
// as absent and purged.
func GetAs[T any](c *TTLCache, key string) (T, bool) {
	var zero T
	unlock := c.lock(key)
	defer unlock()

	entry, ok := c.getLocked(key)
	if !ok {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(entry.Payload, &value); err != nil {
		c.recordError("GetAs", &CacheError{Message: err.Error(), Cause: ErrCauseCorruptEntry}, key)
		c.purgeLocked(key, metadata.CacheExpired)
		return zero, false
	}
	return value, true
}

func asCacheError(err error, fallback CacheErrorCause) *CacheError {
	var cacheErr *CacheError
	if errors.As(err, &cacheErr) {
		return cacheErr
	}
	return &CacheError{Message: err.Error(), Cause: fallback}
}

func (c *TTLCache) recordError(action string, err error, key string) {
	cacheErr := asCacheError(err, ErrCauseReadFailed)
	c.metadataSink.RecordError(
		c.clock.Now(),
		"cache",
		action,
		mapCacheErrorToMetadataCause(cacheErr),
		cacheErr.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrKey, key)},
	)
}
