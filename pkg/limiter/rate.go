package limiter

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
)

// RateLimiter
// Computes the pre-request delay of every provider query.
// Responsibilities:
// - Hold the base delay and jitter shared by crawler and matcher
// - Bookkeep each host's backoff after the provider signals a rate limit
// - Remember a provider-suggested wait (Retry-After) per host
// - Produce delays from a seedable source so sweeps are reproducible in tests
type RateLimiter interface {
	SetBaseDelay(baseDelay time.Duration)
	SetJitter(jitter time.Duration)
	SetRandomSeed(randomSeed int64)
	SetBackoffParam(param timeutil.BackoffParam)
	SetRetryAfter(host string, wait time.Duration)
	Backoff(host string)
	ResetBackoff(host string)
	MarkRequest(host string, at time.Time)
	ResolveDelay(host string) time.Duration
	SuggestedWait(host string) time.Duration
}

type ConcurrentRateLimiter struct {
	mu           sync.RWMutex
	rngMu        sync.Mutex
	baseDelay    time.Duration
	jitter       time.Duration
	backoffParam timeutil.BackoffParam
	hostTimings  map[string]hostTiming
	rng          *rand.Rand
}

func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		hostTimings:  make(map[string]hostTiming),
		backoffParam: timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseDelay = baseDelay
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	r.rng = rand.New(rand.NewSource(randomSeed))
}

func (r *ConcurrentRateLimiter) SetBackoffParam(param timeutil.BackoffParam) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backoffParam = param
}

// SetRetryAfter stores the wait the provider asked for on the given host.
// It raises the suggested wait but never the regular pre-request delay.
func (r *ConcurrentRateLimiter) SetRetryAfter(host string, wait time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.hostTimings[host]
	timing.retryAfter = wait
	r.hostTimings[host] = timing
}

// Backoff increments the host's backoff counter and recomputes its backoff delay.
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.hostTimings[host]
	timing.backoffCount++
	// backoff itself is not jittered; jitter is added once in ResolveDelay
	timing.backoffDelay = timeutil.ExponentialBackoffDelay(timing.backoffCount, 0, nil, r.backoffParam)
	r.hostTimings[host] = timing
}

// ResetBackoff clears backoff state after a successful query.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing, exists := r.hostTimings[host]
	if exists {
		timing.backoffCount = 0
		timing.backoffDelay = 0
		timing.retryAfter = 0
		r.hostTimings[host] = timing
	}
}

func (r *ConcurrentRateLimiter) MarkRequest(host string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.hostTimings[host]
	timing.lastRequestAt = at
	r.hostTimings[host] = timing
}

func (r *ConcurrentRateLimiter) computeJitter(max time.Duration) time.Duration {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return timeutil.ComputeJitter(max, r.rng)
}

// SetRNG allows injecting a custom random number generator for testing
func (r *ConcurrentRateLimiter) SetRNG(rng *rand.Rand) {
	if rng == nil {
		return
	}
	r.rngMu.Lock()
	r.rng = rng
	r.rngMu.Unlock()
}

// ResolveDelay returns the delay to wait before the next query to host.
// FinalDelay = max(BaseDelay, BackoffDelay) + Jitter, Jitter in [0, jitter].
// With no backoff in effect the result lies in [base, base+jitter].
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	r.mu.RLock()
	timing := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	r.mu.RUnlock()

	finalDelay := timeutil.MaxDuration([]time.Duration{base, timing.backoffDelay})
	return finalDelay + r.computeJitter(jitter)
}

// SuggestedWait is the unjittered wait to report to a user after a rate limit:
// max(BaseDelay, BackoffDelay, RetryAfter).
func (r *ConcurrentRateLimiter) SuggestedWait(host string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	timing := r.hostTimings[host]
	return timeutil.MaxDuration([]time.Duration{r.baseDelay, timing.backoffDelay, timing.retryAfter})
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

func (r *ConcurrentRateLimiter) RNG() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng
}

func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// shallow copy so callers cannot mutate internal state
	copyMap := make(map[string]hostTiming, len(r.hostTimings))
	for k, v := range r.hostTimings {
		copyMap[k] = v
	}
	return copyMap
}
