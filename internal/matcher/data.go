package matcher

import (
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
)

// MatchParam holds the window and pacing of one return search.
type MatchParam struct {
	WindowDays int
	Pacing     time.Duration
	MinLayover time.Duration
}

func NewMatchParam(windowDays int, pacing, minLayover time.Duration) MatchParam {
	return MatchParam{
		WindowDays: windowDays,
		Pacing:     pacing,
		MinLayover: minLayover,
	}
}

func DefaultMatchParam() MatchParam {
	return NewMatchParam(4, time.Second, time.Hour)
}

// ReturnExecution is what one return search produced.
type ReturnExecution struct {
	Key           string
	Candidates    *flight.ReturnCandidateSet
	FromCache     bool
	RateLimited   bool
	Interrupted   bool
	Queries       int
	Skipped       int
	SuggestedWait time.Duration
}

// ReturnOption is a return leg that leaves enough time at the destination.
type ReturnOption struct {
	Leg     flight.FlightLeg
	Layover time.Duration
}

// Stay renders the time spent at the destination, e.g. "2 days and 5 hours".
func (o ReturnOption) Stay() string {
	return flight.FormatStay(o.Layover)
}
