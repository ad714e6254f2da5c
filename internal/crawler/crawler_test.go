package crawler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/crawler"
	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/internal/provider"
	"github.com/jimger/wizz-aycf-route-finder/internal/session"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSweep_CollectsLegsAndPersists(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER", "OTP"}, nil).Once()
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return([]flight.FlightLeg{leg("LTN", "BER", "W6 1")}, nil).Once()
	f.gateway.On("Query", mock.Anything, "LTN", "OTP", sweepDate()).Return([]flight.FlightLeg{}, nil).Once()

	observer := &recordingObserver{}
	f.crawler.SetObserver(observer)

	execution, err := f.crawler.Sweep(ctx, "LTN", sweepDate(), false)
	require.Nil(t, err)
	assert.False(t, execution.FromCache)
	assert.True(t, execution.Persisted)
	assert.Equal(t, 2, execution.Queries)
	assert.Equal(t, "LTN-2024-06-01", execution.Key)
	require.Equal(t, 1, execution.Results.Len())
	assert.Equal(t, "W6 1", execution.Results.Legs()[0].FlightCode())
	assert.Equal(t, []string{"BER", "OTP"}, observer.visited)
	assert.Equal(t, map[string]int{"BER": 1}, observer.found)

	// two destinations: a delay and a pacing pause each, no cool-down
	sleeps := f.sleeper.Sleeps()
	require.Len(t, sleeps, 4)
	assert.NotContains(t, sleeps, 15*time.Second)

	cached, ok := cache.GetAs[flight.SearchResultSet](f.cache, "LTN-2024-06-01")
	require.True(t, ok)
	assert.Equal(t, 1, cached.Len())

	last, ok := cache.GetAs[string](f.cache, cache.LastAirportKey)
	require.True(t, ok)
	assert.Equal(t, "LTN", last)

	// a second sweep is served from the cache without touching the network
	again, err := f.crawler.Sweep(ctx, "LTN", sweepDate(), false)
	require.Nil(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, 0, again.Queries)
	assert.Equal(t, 1, again.Results.Len())

	f.destinations.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestSweep_ForceRefreshIgnoresCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER"}, nil).Twice()
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return([]flight.FlightLeg{leg("LTN", "BER", "W6 1")}, nil).Once()
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return([]flight.FlightLeg{leg("LTN", "BER", "W6 2")}, nil).Once()

	_, err := f.crawler.Sweep(ctx, "LTN", sweepDate(), false)
	require.Nil(t, err)

	refreshed, err := f.crawler.Sweep(ctx, "LTN", sweepDate(), true)
	require.Nil(t, err)
	assert.False(t, refreshed.FromCache)
	assert.Equal(t, "W6 2", refreshed.Results.Legs()[0].FlightCode())
	f.gateway.AssertNumberOfCalls(t, "Query", 2)
}

func TestSweep_EmptySetIsPersistedAsNoFlights(t *testing.T) {
	f := newFixture(t, nil)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER", "OTP"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", mock.Anything, sweepDate()).Return([]flight.FlightLeg{}, nil)

	execution, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.Nil(t, err)
	assert.True(t, execution.NoFlights())
	assert.True(t, execution.Persisted)

	cached, ok := cache.GetAs[flight.SearchResultSet](f.cache, "LTN-2024-06-01")
	require.True(t, ok)
	assert.True(t, cached.IsEmpty())
}

func TestSweep_RateLimitOnThirdOfTenKeepsPartialResults(t *testing.T) {
	f := newFixture(t, nil)
	destinations := codes(10)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return(destinations, nil)
	f.gateway.On("Query", mock.Anything, "LTN", destinations[0], sweepDate()).Return([]flight.FlightLeg{leg("LTN", destinations[0], "W6 1")}, nil).Once()
	f.gateway.On("Query", mock.Anything, "LTN", destinations[1], sweepDate()).Return([]flight.FlightLeg{leg("LTN", destinations[1], "W6 2")}, nil).Once()
	f.gateway.On("Query", mock.Anything, "LTN", destinations[2], sweepDate()).Return(nil, &provider.ProviderError{
		Message:    "429 Too Many Requests",
		Cause:      provider.ErrCauseRateLimited,
		Status:     http.StatusTooManyRequests,
		RetryAfter: 90 * time.Second,
	}).Once()

	execution, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.NotNil(t, err)
	assert.True(t, provider.IsRateLimited(err))
	assert.Equal(t, failure.SeverityHalt, err.Severity())

	assert.True(t, execution.RateLimited)
	assert.False(t, execution.Persisted)
	assert.False(t, execution.NoFlights())
	assert.Equal(t, 3, execution.Queries)
	assert.Equal(t, 2, execution.Results.Len())
	assert.Equal(t, 90*time.Second, execution.SuggestedWait)

	_, found := f.cache.Get("LTN-2024-06-01")
	assert.False(t, found, "a rate-limited sweep must not write the results key")
	f.gateway.AssertNumberOfCalls(t, "Query", 3)

	timing := f.limiter.HostTimings()[provider.LimiterKey]
	assert.Equal(t, 1, timing.BackoffCount())
	assert.Equal(t, time.Second, timing.BackOffDelay())
}

func TestSweep_SuccessClearsBackoff(t *testing.T) {
	f := newFixture(t, nil)
	f.limiter.Backoff(provider.LimiterKey)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return([]flight.FlightLeg{}, nil)

	_, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.Nil(t, err)
	timing := f.limiter.HostTimings()[provider.LimiterKey]
	assert.Zero(t, timing.BackoffCount())
}

func TestSweep_CooldownOncePerTwentyFive(t *testing.T) {
	f := newFixture(t, nil)
	destinations := codes(60)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return(destinations, nil)
	f.gateway.On("Query", mock.Anything, "LTN", mock.Anything, sweepDate()).Return([]flight.FlightLeg{}, nil)

	execution, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.Nil(t, err)
	assert.Equal(t, 60, execution.Queries)
	f.gateway.AssertNumberOfCalls(t, "Query", 60)

	cooldowns := 0
	for _, d := range f.sleeper.Sleeps() {
		if d == 15*time.Second {
			cooldowns++
		}
	}
	assert.Equal(t, 2, cooldowns)
}

func TestSweep_PreRequestDelayWithinBounds(t *testing.T) {
	f := newFixture(t, nil)
	destinations := codes(20)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return(destinations, nil)
	f.gateway.On("Query", mock.Anything, "LTN", mock.Anything, sweepDate()).Return([]flight.FlightLeg{}, nil)

	_, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.Nil(t, err)

	sleeps := f.sleeper.Sleeps()
	require.Len(t, sleeps, 40)
	for i := 0; i < len(sleeps); i += 2 {
		assert.GreaterOrEqual(t, sleeps[i], 1000*time.Millisecond)
		assert.LessOrEqual(t, sleeps[i], 1500*time.Millisecond)
		assert.Equal(t, 200*time.Millisecond, sleeps[i+1])
	}
}

func TestSweep_DuplicateDestinationsVisitedOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER", "OTP", "BER", "LTN"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", mock.Anything, sweepDate()).Return([]flight.FlightLeg{}, nil)

	observer := &recordingObserver{}
	f.crawler.SetObserver(observer)

	execution, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.Nil(t, err)
	assert.Equal(t, 2, execution.Destinations)
	assert.Equal(t, []string{"BER", "OTP"}, observer.visited)
}

func TestSweep_RecoverableErrorsAreSkipped(t *testing.T) {
	f := newFixture(t, nil)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER", "OTP"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return(nil, &provider.ProviderError{
		Message: "500 Internal Server Error",
		Cause:   provider.ErrCauseHttpError,
		Status:  500,
	})
	f.gateway.On("Query", mock.Anything, "LTN", "OTP", sweepDate()).Return([]flight.FlightLeg{leg("LTN", "OTP", "W6 3")}, nil)

	execution, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.Nil(t, err)
	assert.Equal(t, 1, execution.Skipped)
	assert.Equal(t, 1, execution.Results.Len())
	assert.True(t, execution.Persisted)
}

func TestSweep_SessionFailureAborts(t *testing.T) {
	f := newFixture(t, nil)
	sessionErr := &session.SessionError{Message: "no routes found from XXX", Cause: session.ErrCauseNoRoutesFound}
	f.destinations.On("ResolveDestinations", mock.Anything, "XXX").Return(nil, sessionErr)

	execution, err := f.crawler.Sweep(context.Background(), "XXX", sweepDate(), false)
	require.NotNil(t, err)
	assert.Equal(t, failure.SeverityFatal, err.Severity())
	assert.Nil(t, execution.Results)
	f.gateway.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_EndpointFailureMidSweepAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER", "OTP"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return(nil, &session.SessionError{
		Message: "no dynamic url",
		Cause:   session.ErrCauseEndpointUnavailable,
	})

	execution, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.NotNil(t, err)
	assert.Equal(t, failure.SeverityFatal, err.Severity())
	assert.False(t, execution.Persisted)
	f.gateway.AssertNumberOfCalls(t, "Query", 1)
}

func TestSweep_NoDestinations(t *testing.T) {
	f := newFixture(t, nil)
	f.destinations.On("ResolveDestinations", mock.Anything, "BUD").Return([]string{}, nil)

	_, err := f.crawler.Sweep(context.Background(), "BUD", sweepDate(), false)
	require.NotNil(t, err)

	var crawlerErr *crawler.CrawlerError
	require.ErrorAs(t, err, &crawlerErr)
	assert.Equal(t, crawler.ErrCauseNoDestinations, crawlerErr.Cause)

	// the error record carries the injected clock's time
	assert.Contains(t, f.log.String(), "ts=2024-05-30T09:00:00Z")
	assert.Contains(t, f.log.String(), "event=error")
}

func TestSweep_CancellationKeepsPartialResultsWithoutPersisting(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER", "OTP"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return([]flight.FlightLeg{leg("LTN", "BER", "W6 1")}, nil)

	f.crawler.SetObserver(&recordingObserver{onLegsFn: cancel})

	execution, err := f.crawler.Sweep(ctx, "LTN", sweepDate(), false)
	require.NotNil(t, err)
	assert.Equal(t, failure.SeverityHalt, err.Severity())
	assert.True(t, execution.Interrupted)
	assert.False(t, execution.Persisted)
	assert.Equal(t, 1, execution.Results.Len())

	_, found := f.cache.Get("LTN-2024-06-01")
	assert.False(t, found)
	f.gateway.AssertNumberOfCalls(t, "Query", 1)
}

func TestSweep_RecordsStatsExactlyOnce(t *testing.T) {
	finalizer := new(finalizerMock)
	finalizer.On("RecordFinalSweepStats", "LTN", "2024-06-01", 2, 0, 1, false, mock.AnythingOfType("time.Duration")).Return().Once()

	f := newFixture(t, finalizer)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER", "OTP"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return([]flight.FlightLeg{leg("LTN", "BER", "W6 1")}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", "OTP", sweepDate()).Return([]flight.FlightLeg{}, nil)

	_, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.Nil(t, err)
	finalizer.AssertExpectations(t)
	finalizer.AssertNumberOfCalls(t, "RecordFinalSweepStats", 1)
}

func TestSweep_StatsRecordedForRateLimitedSweep(t *testing.T) {
	finalizer := new(finalizerMock)
	finalizer.On("RecordFinalSweepStats", "LTN", "2024-06-01", 1, 0, 0, true, mock.AnythingOfType("time.Duration")).Return().Once()

	f := newFixture(t, finalizer)
	f.destinations.On("ResolveDestinations", mock.Anything, "LTN").Return([]string{"BER"}, nil)
	f.gateway.On("Query", mock.Anything, "LTN", "BER", sweepDate()).Return(nil, &provider.ProviderError{
		Cause: provider.ErrCauseRateLimited, Status: 429,
	})

	_, err := f.crawler.Sweep(context.Background(), "LTN", sweepDate(), false)
	require.NotNil(t, err)
	finalizer.AssertExpectations(t)
}

var _ metadata.SweepFinalizer = (*finalizerMock)(nil)
