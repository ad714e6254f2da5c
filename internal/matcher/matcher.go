package matcher

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
Matcher
  - Searches the reverse route over the outbound date and the following
    WindowDays-1 days, one date at a time in ascending order
  - Paces its queries like the crawler: jittered delay before each query, a
    fixed pause between consecutive dates
  - Keeps the legs passing CoarseFilter in one ReturnCandidateSet, cached per
    outbound leg
  - Stops on a rate limit; the partial set is returned and not cached
*/
type Matcher struct {
	metadataSink metadata.MetadataSink
	gateway      provider.Gateway
	cache        *cache.TTLCache
	rateLimiter  limiter.RateLimiter
	clock        timeutil.Clock
	sleeper      timeutil.Sleeper
	param        MatchParam
}

func NewMatcher(
	metadataSink metadata.MetadataSink,
	gateway provider.Gateway,
	resultCache *cache.TTLCache,
	rateLimiter limiter.RateLimiter,
	clock timeutil.Clock,
	sleeper timeutil.Sleeper,
	param MatchParam,
) *Matcher {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &Matcher{
		metadataSink: metadataSink,
		gateway:      gateway,
		cache:        resultCache,
		rateLimiter:  rateLimiter,
		clock:        clock,
		sleeper:      sleeper,
		param:        param,
	}
}

// MinLayover is the presentation threshold for ViableReturns.
func (m *Matcher) MinLayover() time.Duration {
	return m.param.MinLayover
}

// CacheKey is the key the candidates for outbound are stored under.
func CacheKey(outbound flight.FlightLeg) string {
	resultKey := cache.ResultKey(outbound.Origin().Code, outbound.DepartureDate())
	return cache.ReturnKey(resultKey, outbound.Route())
}

// FindReturns collects the return candidates for outbound, from the cache when
// a fresh entry exists and force is false.
func (m *Matcher) FindReturns(
	ctx context.Context,
	outbound flight.FlightLeg,
	force bool,
) (ReturnExecution, failure.ClassifiedError) {
	key := CacheKey(outbound)
	execution := ReturnExecution{Key: key}

	if force {
		if err := m.cache.Invalidate(key); err != nil {
			m.recordError("FindReturns", metadata.CauseStorageFailure, err, key)
		}
	} else if cached, ok := cache.GetAs[flight.ReturnCandidateSet](m.cache, key); ok {
		execution.Candidates = &cached
		execution.FromCache = true
		return execution, nil
	}

	origin := outbound.Origin().Code
	destination := outbound.Destination().Code
	candidates := flight.NewReturnCandidateSet(outbound)
	execution.Candidates = candidates

	for day := 0; day < m.param.WindowDays; day++ {
		date := flight.AddDays(outbound.DepartureDate(), day)

		if day > 0 {
			if err := m.sleeper.Sleep(ctx, m.param.Pacing); err != nil {
				return m.interrupted(execution, err)
			}
		}
		if err := m.sleeper.Sleep(ctx, m.rateLimiter.ResolveDelay(provider.LimiterKey)); err != nil {
			return m.interrupted(execution, err)
		}
		m.rateLimiter.MarkRequest(provider.LimiterKey, m.clock.Now())

		legs, queryErr := m.gateway.Query(ctx, destination, origin, date)
		execution.Queries++
		if queryErr != nil {
			if provider.IsRateLimited(queryErr) {
				m.rateLimiter.Backoff(provider.LimiterKey)
				var providerErr *provider.ProviderError
				if errors.As(queryErr, &providerErr) && providerErr.RetryAfter > 0 {
					m.rateLimiter.SetRetryAfter(provider.LimiterKey, providerErr.RetryAfter)
				}
				execution.RateLimited = true
				execution.SuggestedWait = m.rateLimiter.SuggestedWait(provider.LimiterKey)
				return execution, queryErr
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return m.interrupted(execution, ctxErr)
			}
			if queryErr.Severity() == failure.SeverityFatal {
				return execution, queryErr
			}
			execution.Skipped++
			continue
		}
		m.rateLimiter.ResetBackoff(provider.LimiterKey)
		candidates.Append(CoarseFilter(outbound, date, legs)...)
	}

	if err := m.cache.Put(key, candidates, cache.Results); err != nil {
		m.recordError("FindReturns", metadata.CauseStorageFailure, err, key)
	}
	return execution, nil
}

func (m *Matcher) interrupted(execution ReturnExecution, cause error) (ReturnExecution, failure.ClassifiedError) {
	execution.Interrupted = true
	return execution, &MatcherError{
		Message: fmt.Sprintf("return search %s stopped after %d queries: %v", execution.Key, execution.Queries, cause),
		Cause:   ErrCauseInterrupted,
	}
}

func (m *Matcher) recordError(action string, cause metadata.ErrorCause, err error, key string) {
	m.metadataSink.RecordError(
		m.clock.Now(),
		"matcher",
		action,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrKey, key),
		},
	)
}
