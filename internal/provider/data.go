package provider

import (
	"context"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

// LimiterKey names the provider in the rate limiter's per-host bookkeeping.
// Crawler and matcher share it so a backoff earned by one slows the other.
const LimiterKey = "provider"

// Gateway issues one route-search query and classifies the outcome.
type Gateway interface {
	Query(ctx context.Context, origin, destination string, date time.Time) ([]flight.FlightLeg, failure.ClassifiedError)
}

// SessionSource supplies the endpoint and headers for each request.
type SessionSource interface {
	ResolveEndpoint(ctx context.Context) (string, failure.ClassifiedError)
	ResolveHeaders(ctx context.Context) map[string]string
}

// searchRequest is the provider's one-way search body.
type searchRequest struct {
	FlightType      string  `json:"flightType"`
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	Departure       string  `json:"departure"`
	Arrival         string  `json:"arrival"`
	IntervalSubtype *string `json:"intervalSubtype"`
}

func newSearchRequest(origin, destination string, date time.Time) searchRequest {
	return searchRequest{
		FlightType:  "OW",
		Origin:      origin,
		Destination: destination,
		Departure:   flight.FormatDate(date),
		Arrival:     "",
	}
}

type searchResponse struct {
	FlightsOutbound []providerFlight `json:"flightsOutbound"`
}

type providerFlight struct {
	DepartureStation     string `json:"departureStation"`
	ArrivalStation       string `json:"arrivalStation"`
	DepartureStationText string `json:"departureStationText"`
	ArrivalStationText   string `json:"arrivalStationText"`
	FlightCode           string `json:"flightCode"`
	DepartureDate        string `json:"departureDate"`
	Departure            string `json:"departure"`
	Arrival              string `json:"arrival"`
	DepartureOffsetText  string `json:"departureOffsetText"`
	ArrivalOffsetText    string `json:"arrivalOffsetText"`
	Duration             string `json:"duration"`
}
