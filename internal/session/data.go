package session

import (
	"context"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/pagebridge"
)

// Collaborator is the capability the resolver needs from the provider page.
type Collaborator interface {
	Destinations(ctx context.Context, origin string) ([]pagebridge.Route, error)
	DynamicURL(ctx context.Context) (string, error)
	Headers(ctx context.Context) (map[string]string, error)
	Navigate(ctx context.Context, url string) error
}

// SessionContext is everything scraped from the provider page. It is owned by
// the resolver and expires as a whole, CapturedAt + session TTL.
type SessionContext struct {
	// Origins lists departure stations in page order.
	Origins []string `json:"origins,omitempty"`
	// DestinationsByOrigin keeps each origin's arrivals in page order.
	DestinationsByOrigin map[string][]string `json:"destinationsByOrigin,omitempty"`
	// Stations maps station code to display name where the page provides one.
	Stations   map[string]string `json:"stations,omitempty"`
	Endpoint   string            `json:"endpoint,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	// HeadersCaptured marks Headers as read from the page, even when empty.
	HeadersCaptured bool      `json:"headersCaptured,omitempty"`
	CapturedAt      time.Time `json:"capturedAt"`
}

func (s SessionContext) hasRoutes() bool {
	return len(s.DestinationsByOrigin) > 0
}

// DefaultHeaders is the header set used when the page cannot provide one.
func DefaultHeaders() map[string]string {
	return map[string]string{"Content-Type": "application/json"}
}

// routeGraph flattens bridge routes into the context's ordered maps.
func routeGraph(routes []pagebridge.Route) ([]string, map[string][]string, map[string]string) {
	origins := make([]string, 0, len(routes))
	byOrigin := make(map[string][]string, len(routes))
	stations := map[string]string{}

	note := func(s pagebridge.Station) {
		if s.Name != "" {
			stations[s.ID] = s.Name
		}
	}

	for _, r := range routes {
		id := r.DepartureStation.ID
		if id == "" {
			continue
		}
		note(r.DepartureStation)
		if _, seen := byOrigin[id]; !seen {
			origins = append(origins, id)
		}
		arrivals := byOrigin[id]
		for _, a := range r.ArrivalStations {
			if a.ID == "" {
				continue
			}
			note(a)
			arrivals = append(arrivals, a.ID)
		}
		if arrivals == nil {
			arrivals = []string{}
		}
		byOrigin[id] = arrivals
	}
	return origins, byOrigin, stations
}
