package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/internal/pagebridge"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
	"github.com/jimger/wizz-aycf-route-finder/pkg/urlutil"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/singleflight"
)

const maxSuggestions = 3

/*
Resolver
Supplies destinations, the search endpoint and request headers for the provider.
Responsibilities:
  - Serve every field from the cached SessionContext while it is fresh
  - Ask the collaborator only for a field that is missing or stale
  - Collapse concurrent refreshes of one field into a single collaborator call
  - Merge refreshed fields into the cached context without moving its capture time
  - Send the collaborator to the provider page when it reports the wrong page

Provider query failures never reach the resolver, so they cannot invalidate
cached session fields. Only Invalidate (manual refresh) and expiry do.
*/
type Resolver struct {
	collaborator    Collaborator
	cache           *cache.TTLCache
	clock           timeutil.Clock
	metadataSink    metadata.MetadataSink
	providerPageURL string
	group           singleflight.Group
	writeMu         sync.Mutex
}

func NewResolver(
	collaborator Collaborator,
	ttlCache *cache.TTLCache,
	clock timeutil.Clock,
	metadataSink metadata.MetadataSink,
	providerPageURL string,
) *Resolver {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &Resolver{
		collaborator:    collaborator,
		cache:           ttlCache,
		clock:           clock,
		metadataSink:    metadataSink,
		providerPageURL: providerPageURL,
	}
}

func (r *Resolver) cached() (SessionContext, bool) {
	return cache.GetAs[SessionContext](r.cache, cache.SessionContextKey)
}

// merge applies update to the cached context (or a fresh one) and stores it.
func (r *Resolver) merge(update func(*SessionContext)) SessionContext {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, ok := r.cached()
	if !ok {
		current = SessionContext{CapturedAt: r.clock.Now()}
	}
	update(&current)
	// a failed write only costs a future refresh
	_ = r.cache.PutAt(cache.SessionContextKey, current, cache.SessionData, current.CapturedAt)
	return current
}

// Current returns the cached session context, if fresh.
func (r *Resolver) Current() (SessionContext, bool) {
	return r.cached()
}

// Invalidate drops the whole session context.
func (r *Resolver) Invalidate() failure.ClassifiedError {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.cache.Invalidate(cache.SessionContextKey)
}

// ResolveDestinations returns origin's arrival codes in page order.
func (r *Resolver) ResolveDestinations(ctx context.Context, origin string) ([]string, failure.ClassifiedError) {
	if current, ok := r.cached(); ok && current.hasRoutes() {
		if destinations, found := current.DestinationsByOrigin[origin]; found {
			return destinations, nil
		}
	}

	v, err, _ := r.group.Do("destinations:"+origin, func() (interface{}, error) {
		routes, err := r.collaborator.Destinations(ctx, origin)
		if err != nil {
			return nil, err
		}
		return routes, nil
	})
	if err != nil {
		return nil, r.bridgeFailure(ctx, "ResolveDestinations", err, ErrCauseBridgeFailure)
	}

	origins, byOrigin, stations := routeGraph(v.([]pagebridge.Route))
	updated := r.merge(func(s *SessionContext) {
		s.Origins = origins
		s.DestinationsByOrigin = byOrigin
		s.Stations = stations
	})

	destinations, found := updated.DestinationsByOrigin[origin]
	if !found {
		sessionErr := &SessionError{
			Message:     fmt.Sprintf("no routes found from %s", origin),
			Cause:       ErrCauseNoRoutesFound,
			Suggestions: suggest(origin, updated),
		}
		r.recordError("ResolveDestinations", sessionErr)
		return nil, sessionErr
	}
	return destinations, nil
}

// ResolveEndpoint returns the canonical provider search endpoint.
func (r *Resolver) ResolveEndpoint(ctx context.Context) (string, failure.ClassifiedError) {
	if current, ok := r.cached(); ok && current.Endpoint != "" {
		return current.Endpoint, nil
	}

	v, err, _ := r.group.Do("endpoint", func() (interface{}, error) {
		raw, err := r.collaborator.DynamicURL(ctx)
		if err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return "", r.bridgeFailure(ctx, "ResolveEndpoint", err, ErrCauseEndpointUnavailable)
	}

	endpoint, parseErr := urlutil.ParseHTTPURL(v.(string))
	if parseErr != nil {
		sessionErr := &SessionError{
			Message: fmt.Sprintf("invalid endpoint %q: %v", v.(string), parseErr),
			Cause:   ErrCauseEndpointUnavailable,
		}
		r.recordError("ResolveEndpoint", sessionErr)
		return "", sessionErr
	}

	canonical := endpoint.String()
	r.merge(func(s *SessionContext) {
		s.Endpoint = canonical
	})
	return canonical, nil
}

// ResolveHeaders returns the request headers: the page's headers over the
// defaults. A collaborator failure yields the defaults and is not cached.
func (r *Resolver) ResolveHeaders(ctx context.Context) map[string]string {
	if current, ok := r.cached(); ok && current.HeadersCaptured {
		return withDefaults(current.Headers)
	}

	v, err, _ := r.group.Do("headers", func() (interface{}, error) {
		headers, err := r.collaborator.Headers(ctx)
		if err != nil {
			return nil, err
		}
		return headers, nil
	})
	if err != nil {
		r.metadataSink.RecordError(
			r.clock.Now(),
			"session",
			"ResolveHeaders",
			metadata.CauseSessionUnavailable,
			fmt.Sprintf("using default headers: %v", err),
			nil,
		)
		return DefaultHeaders()
	}

	headers := v.(map[string]string)
	r.merge(func(s *SessionContext) {
		s.Headers = headers
		s.HeadersCaptured = true
	})
	return withDefaults(headers)
}

// StationName returns the page's display name for code, or code itself.
func (r *Resolver) StationName(code string) string {
	if current, ok := r.cached(); ok {
		if name, found := current.Stations[code]; found {
			return name
		}
	}
	return code
}

func withDefaults(headers map[string]string) map[string]string {
	merged := DefaultHeaders()
	for k, v := range headers {
		merged[k] = v
	}
	return merged
}

// bridgeFailure converts a collaborator error. A wrong-page report sends the
// collaborator to the provider page; the call still fails.
func (r *Resolver) bridgeFailure(ctx context.Context, action string, err error, fallback SessionErrorCause) *SessionError {
	var bridgeErr *pagebridge.BridgeError
	if errors.As(err, &bridgeErr) && bridgeErr.Cause == pagebridge.ErrCauseWrongPage {
		if r.providerPageURL != "" {
			navCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if navErr := r.collaborator.Navigate(navCtx, r.providerPageURL); navErr != nil {
				r.metadataSink.RecordError(r.clock.Now(), "session", "Navigate", metadata.CauseSessionUnavailable, navErr.Error(), nil)
			}
		}
		sessionErr := &SessionError{
			Message: fmt.Sprintf("not on the provider page; opening %s, run a search there and retry", r.providerPageURL),
			Cause:   ErrCauseWrongPage,
		}
		r.recordError(action, sessionErr)
		return sessionErr
	}

	retryable := false
	if errors.As(err, &bridgeErr) {
		retryable = bridgeErr.IsRetryable()
	}
	sessionErr := &SessionError{
		Message:   err.Error(),
		Retryable: retryable,
		Cause:     fallback,
	}
	r.recordError(action, sessionErr)
	return sessionErr
}

func (r *Resolver) recordError(action string, err *SessionError) {
	r.metadataSink.RecordError(
		r.clock.Now(),
		"session",
		action,
		mapSessionErrorToMetadataCause(err),
		err.Error(),
		nil,
	)
}

// suggest returns up to maxSuggestions known origins resembling origin, matched
// against "CODE (Name)" labels.
func suggest(origin string, s SessionContext) []string {
	labels := make([]string, len(s.Origins))
	for i, code := range s.Origins {
		if name, ok := s.Stations[code]; ok {
			labels[i] = fmt.Sprintf("%s (%s)", code, name)
		} else {
			labels[i] = code
		}
	}
	matches := fuzzy.Find(origin, labels)
	var out []string
	for _, m := range matches {
		out = append(out, s.Origins[m.Index])
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
