package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/jimger/wizz-aycf-route-finder/pkg/retry"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/semaphore"
)

const maxResponseBytes = 10 << 20

/*
HTTPGateway
Responsibilities
  - POST one search request per Query to the resolved endpoint
  - Apply the resolved headers with Content-Type forced to JSON
  - Enforce the per-request timeout
  - Keep at most one request in flight
  - Classify every outcome into legs or a ProviderError

Classification
  - 2xx with a decodable body: legs, possibly none
  - 429, or a status text announcing a rate limit: RateLimited
  - any other non-2xx: HttpError
  - undecodable body: MalformedResponse
  - no response at all: TransportError (the only retryable kind)

The gateway never paces requests; pacing belongs to the caller.
*/
type HTTPGateway struct {
	metadataSink metadata.MetadataSink
	session      SessionSource
	httpClient   *http.Client
	sem          *semaphore.Weighted
	retryParam   retry.RetryParam
	sleeper      timeutil.Sleeper
	userAgent    string
}

func NewHTTPGateway(
	metadataSink metadata.MetadataSink,
	session SessionSource,
	timeout time.Duration,
	retryParam retry.RetryParam,
	sleeper timeutil.Sleeper,
	userAgent string,
) *HTTPGateway {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	if sleeper == nil {
		sleeper = timeutil.RealSleeper{}
	}
	if retryParam.MaxAttempts < 1 {
		retryParam.MaxAttempts = 1
	}
	return &HTTPGateway{
		metadataSink: metadataSink,
		session:      session,
		httpClient:   &http.Client{Timeout: timeout, Jar: jar},
		sem:          semaphore.NewWeighted(1),
		retryParam:   retryParam,
		sleeper:      sleeper,
		userAgent:    userAgent,
	}
}

func (g *HTTPGateway) Query(
	ctx context.Context,
	origin string,
	destination string,
	date time.Time,
) ([]flight.FlightLeg, failure.ClassifiedError) {
	callerMethod := "HTTPGateway.Query"

	endpoint, sessionErr := g.session.ResolveEndpoint(ctx)
	if sessionErr != nil {
		return nil, sessionErr
	}
	headers := g.session.ResolveHeaders(ctx)

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, &ProviderError{Message: err.Error(), Cause: ErrCauseTransportError}
	}
	defer g.sem.Release(1)

	startTime := time.Now()
	var status int
	legs, err := retry.Retry(ctx, g.sleeper, g.retryParam, func() ([]flight.FlightLeg, failure.ClassifiedError) {
		result, code, err := g.performQuery(ctx, endpoint, headers, origin, destination, date)
		status = code
		return result, err
	})

	g.metadataSink.RecordQuery(metadata.QueryEvent{
		Endpoint:    endpoint,
		Origin:      origin,
		Destination: destination,
		Date:        flight.FormatDate(date),
		HTTPStatus:  status,
		Duration:    time.Since(startTime),
		Legs:        len(legs),
	})

	if err != nil {
		err = unwrapRetry(err)
		g.recordError(callerMethod, err, origin, destination, date)
		return nil, err
	}
	return legs, nil
}

// unwrapRetry surfaces the provider's own error when retries ran out.
func unwrapRetry(err failure.ClassifiedError) failure.ClassifiedError {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr
	}
	return err
}

func (g *HTTPGateway) performQuery(
	ctx context.Context,
	endpoint string,
	headers map[string]string,
	origin string,
	destination string,
	date time.Time,
) ([]flight.FlightLeg, int, failure.ClassifiedError) {
	body, err := json.Marshal(newSearchRequest(origin, destination, date))
	if err != nil {
		return nil, 0, &ProviderError{Message: err.Error(), Cause: ErrCauseTransportError}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, &ProviderError{Message: fmt.Sprintf("failed to create request: %v", err), Cause: ErrCauseTransportError}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, &ProviderError{
			Message: fmt.Sprintf("request failed: %v", err),
			// a cancelled caller must not be retried
			Retryable: ctx.Err() == nil,
			Cause:     ErrCauseTransportError,
		}
	}
	defer resp.Body.Close()

	if isRateLimited(resp) {
		return nil, resp.StatusCode, &ProviderError{
			Message:    fmt.Sprintf("%s to %s on %s: %s", origin, destination, flight.FormatDate(date), resp.Status),
			Cause:      ErrCauseRateLimited,
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &ProviderError{
			Message: resp.Status,
			Cause:   ErrCauseHttpError,
			Status:  resp.StatusCode,
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, &ProviderError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: ctx.Err() == nil,
			Cause:     ErrCauseTransportError,
			Status:    resp.StatusCode,
		}
	}

	var decoded searchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		message := err.Error()
		if looksLikeHTML(resp.Header.Get("Content-Type"), raw) {
			if excerpt := htmlExcerpt(raw); excerpt != "" {
				message = fmt.Sprintf("html instead of json: %s", excerpt)
			}
		}
		return nil, resp.StatusCode, &ProviderError{
			Message: message,
			Cause:   ErrCauseMalformedResponse,
			Status:  resp.StatusCode,
		}
	}

	return g.toLegs(decoded.FlightsOutbound, origin, destination, date), resp.StatusCode, nil
}

// toLegs converts provider records, skipping (and recording) the unreadable ones.
func (g *HTTPGateway) toLegs(records []providerFlight, origin, destination string, date time.Time) []flight.FlightLeg {
	legs := make([]flight.FlightLeg, 0, len(records))
	for _, rec := range records {
		departure, err := flight.ParseClockTime(rec.Departure, rec.DepartureOffsetText)
		if err == nil {
			var arrival flight.ClockTime
			arrival, err = flight.ParseClockTime(rec.Arrival, rec.ArrivalOffsetText)
			if err == nil {
				legs = append(legs, flight.NewFlightLeg(
					flight.Station{Code: orDefault(rec.DepartureStation, origin), Label: rec.DepartureStationText},
					flight.Station{Code: orDefault(rec.ArrivalStation, destination), Label: rec.ArrivalStationText},
					rec.FlightCode,
					legDate(rec.DepartureDate, date),
					departure,
					arrival,
					rec.Duration,
				))
				continue
			}
		}
		var flightErr *flight.FlightError
		cause := metadata.CauseContentInvalid
		if errors.As(err, &flightErr) {
			cause = flight.MapFlightErrorToMetadataCause(flightErr)
		}
		g.metadataSink.RecordError(
			time.Now(),
			"provider",
			"HTTPGateway.toLegs",
			cause,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrOrigin, origin),
				metadata.NewAttr(metadata.AttrDestination, destination),
				metadata.NewAttr(metadata.AttrField, rec.FlightCode),
			},
		)
	}
	return legs
}

func legDate(text string, fallback time.Time) time.Time {
	if text == "" {
		return fallback
	}
	date, err := flight.ParseDate(text)
	if err != nil {
		return fallback
	}
	return date
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func isRateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	status := strings.ToLower(resp.Status)
	return strings.Contains(status, "rate limit") || strings.Contains(status, "too many requests")
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func (g *HTTPGateway) recordError(callerMethod string, err failure.ClassifiedError, origin, destination string, date time.Time) {
	cause := metadata.CauseUnknown
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		cause = mapProviderErrorToMetadataCause(providerErr)
	}
	g.metadataSink.RecordError(
		time.Now(),
		"provider",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrOrigin, origin),
			metadata.NewAttr(metadata.AttrDestination, destination),
			metadata.NewAttr(metadata.AttrDate, flight.FormatDate(date)),
		},
	)
}
