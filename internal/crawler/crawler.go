package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/internal/provider"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/jimger/wizz-aycf-route-finder/pkg/limiter"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
)

/*
 Crawler is the sole control-plane authority of a sweep over one (origin, date).

 Guarantees:
 - Destinations are visited one at a time, in the order the session lists them,
   each at most once.
 - Every provider query is preceded by the limiter's jittered delay.
 - Every CooldownEvery completed destinations the sweep pauses for Cooldown.
 - A rate-limited sweep stops at once, keeps its partial results and never
   writes the results key.
 - A cancelled sweep behaves the same way.
 - A completed sweep always writes the results key, also when it found nothing.

 The gateway and the resolver classify failures; only the crawler decides
 whether to skip, stop or abort.

 Metadata emission is observational only and MUST NOT influence
 pacing or termination.
*/
type Crawler struct {
	metadataSink   metadata.MetadataSink
	sweepFinalizer metadata.SweepFinalizer
	destinations   DestinationSource
	gateway        provider.Gateway
	cache          *cache.TTLCache
	rateLimiter    limiter.RateLimiter
	clock          timeutil.Clock
	sleeper        timeutil.Sleeper
	param          SweepParam
	observer       ProgressObserver
}

func NewCrawler(
	metadataSink metadata.MetadataSink,
	sweepFinalizer metadata.SweepFinalizer,
	destinations DestinationSource,
	gateway provider.Gateway,
	resultCache *cache.TTLCache,
	rateLimiter limiter.RateLimiter,
	clock timeutil.Clock,
	sleeper timeutil.Sleeper,
	param SweepParam,
) *Crawler {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	if sweepFinalizer == nil {
		sweepFinalizer = &metadata.NoopSink{}
	}
	return &Crawler{
		metadataSink:   metadataSink,
		sweepFinalizer: sweepFinalizer,
		destinations:   destinations,
		gateway:        gateway,
		cache:          resultCache,
		rateLimiter:    rateLimiter,
		clock:          clock,
		sleeper:        sleeper,
		param:          param,
		observer:       noopObserver{},
	}
}

// SetObserver installs a progress observer; nil restores the silent default.
func (c *Crawler) SetObserver(observer ProgressObserver) {
	if observer == nil {
		c.observer = noopObserver{}
		return
	}
	c.observer = observer
}

// Sweep returns the outbound flights from origin on date, from the cache when a
// fresh entry exists and force is false.
//
// A non-nil error with SeverityHalt (rate limit, cancellation) comes with the
// partial results found before the stop.
func (c *Crawler) Sweep(
	ctx context.Context,
	origin string,
	date time.Time,
	force bool,
) (SweepExecution, failure.ClassifiedError) {
	sweepStart := c.clock.Now()
	key := cache.ResultKey(origin, date)
	execution := SweepExecution{Origin: origin, Date: date, Key: key}

	defer func() {
		legs := 0
		if execution.Results != nil {
			legs = execution.Results.Len()
		}
		c.sweepFinalizer.RecordFinalSweepStats(
			origin,
			flight.FormatDate(date),
			execution.Queries,
			execution.Skipped,
			legs,
			execution.RateLimited,
			c.clock.Now().Sub(sweepStart),
		)
	}()

	c.rememberOrigin(origin)

	if force {
		if err := c.cache.Invalidate(key); err != nil {
			c.recordError("Sweep", metadata.CauseStorageFailure, err, key)
		}
	} else if cached, ok := cache.GetAs[flight.SearchResultSet](c.cache, key); ok {
		execution.Results = &cached
		execution.FromCache = true
		return execution, nil
	}

	destinations, err := c.destinations.ResolveDestinations(ctx, origin)
	if err != nil {
		return execution, err
	}

	frontier := newDestinationFrontier(origin, destinations)
	execution.Destinations = frontier.size()
	if execution.Destinations == 0 {
		crawlerErr := &CrawlerError{
			Message: fmt.Sprintf("no destinations from %s", origin),
			Cause:   ErrCauseNoDestinations,
		}
		c.recordError("Sweep", mapCrawlerErrorToMetadataCause(crawlerErr), crawlerErr, key)
		return execution, crawlerErr
	}

	results := flight.NewSearchResultSet(origin, date)
	execution.Results = results

	completed := 0
	for {
		destination, ok := frontier.next()
		if !ok {
			break
		}
		c.observer.OnDestination(completed, execution.Destinations, destination)

		if completed > 0 && c.param.CooldownEvery > 0 && completed%c.param.CooldownEvery == 0 {
			if err := c.sleeper.Sleep(ctx, c.param.Cooldown); err != nil {
				return c.interrupted(execution, err)
			}
		}

		if err := c.sleeper.Sleep(ctx, c.rateLimiter.ResolveDelay(provider.LimiterKey)); err != nil {
			return c.interrupted(execution, err)
		}
		c.rateLimiter.MarkRequest(provider.LimiterKey, c.clock.Now())

		legs, queryErr := c.gateway.Query(ctx, origin, destination, date)
		execution.Queries++
		if queryErr != nil {
			if provider.IsRateLimited(queryErr) {
				c.applyRateLimit(queryErr)
				execution.RateLimited = true
				execution.SuggestedWait = c.rateLimiter.SuggestedWait(provider.LimiterKey)
				return execution, queryErr
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.interrupted(execution, ctxErr)
			}
			if queryErr.Severity() == failure.SeverityFatal {
				return execution, queryErr
			}
			// recoverable → already recorded by the gateway → skip
			execution.Skipped++
		} else {
			c.rateLimiter.ResetBackoff(provider.LimiterKey)
			if len(legs) > 0 {
				results.Append(legs...)
				c.observer.OnLegs(destination, legs)
			}
		}

		if err := c.sleeper.Sleep(ctx, c.param.Pacing); err != nil {
			return c.interrupted(execution, err)
		}
		completed++
	}

	if err := c.cache.Put(key, results, cache.Results); err != nil {
		c.recordError("Sweep", metadata.CauseStorageFailure, err, key)
	} else {
		execution.Persisted = true
	}

	return execution, nil
}

func (c *Crawler) applyRateLimit(err error) {
	c.rateLimiter.Backoff(provider.LimiterKey)
	var providerErr *provider.ProviderError
	if errors.As(err, &providerErr) && providerErr.RetryAfter > 0 {
		c.rateLimiter.SetRetryAfter(provider.LimiterKey, providerErr.RetryAfter)
	}
}

func (c *Crawler) interrupted(execution SweepExecution, cause error) (SweepExecution, failure.ClassifiedError) {
	execution.Interrupted = true
	return execution, &CrawlerError{
		Message: fmt.Sprintf("sweep of %s stopped after %d queries: %v", execution.Key, execution.Queries, cause),
		Cause:   ErrCauseInterrupted,
	}
}

// rememberOrigin stores origin as the default for the next search.
func (c *Crawler) rememberOrigin(origin string) {
	if err := c.cache.Put(cache.LastAirportKey, origin, cache.Results); err != nil {
		c.recordError("rememberOrigin", metadata.CauseStorageFailure, err, cache.LastAirportKey)
	}
}

func (c *Crawler) recordError(action string, cause metadata.ErrorCause, err error, key string) {
	c.metadataSink.RecordError(
		c.clock.Now(),
		"crawler",
		action,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrKey, key),
		},
	)
}
