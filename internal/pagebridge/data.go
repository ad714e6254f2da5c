package pagebridge

import "context"

// Station is an airport as the provider page lists it.
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Route is one departure station and every station reachable from it.
type Route struct {
	DepartureStation Station   `json:"departureStation"`
	ArrivalStations  []Station `json:"arrivalStations"`
}

// Bridge is the capability a live (or saved) provider page offers.
type Bridge interface {
	// Destinations returns the full route graph known to the page. origin is
	// passed along for bridges that can narrow the lookup; callers must not
	// assume the result is narrowed.
	Destinations(ctx context.Context, origin string) ([]Route, error)
	DynamicURL(ctx context.Context) (string, error)
	Headers(ctx context.Context) (map[string]string, error)
	Navigate(ctx context.Context, url string) error
}

const (
	actionDestinations = "getDestinations"
	actionDynamicURL   = "getDynamicUrl"
	actionHeaders      = "getHeaders"
	actionNavigate     = "navigate"
)

type request struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Origin string `json:"origin,omitempty"`
	URL    string `json:"url,omitempty"`
}

type reply struct {
	ID         string            `json:"id"`
	Routes     []Route           `json:"routes,omitempty"`
	DynamicURL string            `json:"dynamicUrl,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Error      string            `json:"error,omitempty"`
	WrongPage  bool              `json:"wrongPage,omitempty"`
	OK         bool              `json:"ok,omitempty"`
}
