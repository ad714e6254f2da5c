package crawler_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/crawler"
	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/jimger/wizz-aycf-route-finder/pkg/limiter"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
	"github.com/stretchr/testify/mock"
)

type destinationSourceMock struct {
	mock.Mock
}

func (m *destinationSourceMock) ResolveDestinations(ctx context.Context, origin string) ([]string, failure.ClassifiedError) {
	args := m.Called(ctx, origin)
	destinations, _ := args.Get(0).([]string)
	err, _ := args.Get(1).(failure.ClassifiedError)
	return destinations, err
}

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) Query(ctx context.Context, origin, destination string, date time.Time) ([]flight.FlightLeg, failure.ClassifiedError) {
	args := m.Called(ctx, origin, destination, date)
	legs, _ := args.Get(0).([]flight.FlightLeg)
	err, _ := args.Get(1).(failure.ClassifiedError)
	return legs, err
}

type finalizerMock struct {
	mock.Mock
}

func (m *finalizerMock) RecordFinalSweepStats(
	origin string,
	date string,
	queries int,
	skipped int,
	legs int,
	rateLimited bool,
	duration time.Duration,
) {
	m.Called(origin, date, queries, skipped, legs, rateLimited, duration)
}

type recordingObserver struct {
	mu       sync.Mutex
	visited  []string
	found    map[string]int
	onLegsFn func()
}

func (o *recordingObserver) OnDestination(done, total int, destination string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visited = append(o.visited, destination)
}

func (o *recordingObserver) OnLegs(destination string, legs []flight.FlightLeg) {
	o.mu.Lock()
	if o.found == nil {
		o.found = make(map[string]int)
	}
	o.found[destination] += len(legs)
	fn := o.onLegsFn
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fixture struct {
	crawler      *crawler.Crawler
	destinations *destinationSourceMock
	gateway      *gatewayMock
	cache        *cache.TTLCache
	limiter      *limiter.ConcurrentRateLimiter
	clock        *timeutil.ManualClock
	sleeper      *timeutil.VirtualSleeper
	log          *bytes.Buffer
}

func sweepDate() time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T, finalizer metadata.SweepFinalizer) fixture {
	t.Helper()
	clock := timeutil.NewManualClock(time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC))
	sleeper := timeutil.NewVirtualSleeper(clock)
	ttlCache := cache.NewTTLCache(cache.NewMemoryStore(), clock, cache.DefaultTTLs(), &metadata.NoopSink{})

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(time.Second)
	rateLimiter.SetJitter(500 * time.Millisecond)
	rateLimiter.SetRandomSeed(42)

	destinations := new(destinationSourceMock)
	gateway := new(gatewayMock)
	log := &bytes.Buffer{}

	c := crawler.NewCrawler(
		metadata.NewRecorder(log, "test-run"),
		finalizer,
		destinations,
		gateway,
		ttlCache,
		rateLimiter,
		clock,
		sleeper,
		crawler.DefaultSweepParam(),
	)
	return fixture{
		crawler:      c,
		destinations: destinations,
		gateway:      gateway,
		cache:        ttlCache,
		limiter:      rateLimiter,
		clock:        clock,
		sleeper:      sleeper,
		log:          log,
	}
}

func leg(origin, destination, code string) flight.FlightLeg {
	return flight.NewFlightLeg(
		flight.Station{Code: origin},
		flight.Station{Code: destination},
		code,
		sweepDate(),
		flight.NewClockTime(6, 25, 0),
		flight.NewClockTime(9, 40, time.Hour),
		"2h 15m",
	)
}

func codes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('A'+i/26%26)) + string(rune('A'+i%26)) + "X"
	}
	return out
}
