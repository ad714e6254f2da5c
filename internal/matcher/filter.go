package matcher

import (
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
)

// CoarseFilter keeps the legs departing strictly after the outbound lands, both
// read at face value: local clock times anchored at their dates, offsets ignored.
// The outbound arrival is anchored at the outbound departure date.
func CoarseFilter(outbound flight.FlightLeg, candidateDate time.Time, legs []flight.FlightLeg) []flight.FlightLeg {
	landed := faceValue(outbound.DepartureDate(), outbound.Arrival())
	kept := make([]flight.FlightLeg, 0, len(legs))
	for _, leg := range legs {
		if faceValue(candidateDate, leg.Departure()).After(landed) {
			kept = append(kept, leg)
		}
	}
	return kept
}

func faceValue(date time.Time, at flight.ClockTime) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, at.Hour, at.Minute, 0, 0, time.UTC)
}

// ViableReturns keeps the candidates whose true layover is at least minLayover.
// Layovers are computed on absolute instants, so they are correct across dates
// and time zones. Order is preserved.
func ViableReturns(candidates *flight.ReturnCandidateSet, minLayover time.Duration) []ReturnOption {
	if candidates == nil {
		return nil
	}
	outbound := candidates.Outbound()
	var options []ReturnOption
	for _, leg := range candidates.Legs() {
		layover, ok := flight.Layover(outbound, leg)
		if !ok || layover < minLayover {
			continue
		}
		options = append(options, ReturnOption{Leg: leg, Layover: layover})
	}
	return options
}
