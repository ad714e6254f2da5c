package crawler

import (
	"context"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

// DestinationSource lists the arrival airports served from an origin.
type DestinationSource interface {
	ResolveDestinations(ctx context.Context, origin string) ([]string, failure.ClassifiedError)
}

// ProgressObserver is told about a sweep while it runs. Implementations must
// return quickly; they run on the sweep's goroutine.
type ProgressObserver interface {
	OnDestination(done, total int, destination string)
	OnLegs(destination string, legs []flight.FlightLeg)
}

type noopObserver struct{}

func (noopObserver) OnDestination(done, total int, destination string) {}

func (noopObserver) OnLegs(destination string, legs []flight.FlightLeg) {}

// SweepParam holds the pacing of one sweep.
type SweepParam struct {
	CooldownEvery int
	Cooldown      time.Duration
	Pacing        time.Duration
}

func NewSweepParam(cooldownEvery int, cooldown, pacing time.Duration) SweepParam {
	return SweepParam{
		CooldownEvery: cooldownEvery,
		Cooldown:      cooldown,
		Pacing:        pacing,
	}
}

func DefaultSweepParam() SweepParam {
	return NewSweepParam(25, 15*time.Second, 200*time.Millisecond)
}

// SweepExecution is what one sweep produced. Results is non-nil whenever at
// least the destination list was resolved, also when the sweep stopped early.
type SweepExecution struct {
	Origin        string
	Date          time.Time
	Key           string
	Results       *flight.SearchResultSet
	FromCache     bool
	RateLimited   bool
	Interrupted   bool
	Persisted     bool
	Destinations  int
	Queries       int
	Skipped       int
	SuggestedWait time.Duration
}

// NoFlights reports a completed sweep that found nothing. It is distinct from a
// sweep that stopped before it could find anything.
func (e SweepExecution) NoFlights() bool {
	return !e.RateLimited && !e.Interrupted && (e.Results == nil || e.Results.IsEmpty())
}
