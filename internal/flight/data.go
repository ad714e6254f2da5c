package flight

import (
	"encoding/json"
	"fmt"
	"time"
)

// Station is one end of a leg: the IATA code and the provider's display label.
type Station struct {
	Code  string
	Label string
}

// FlightLeg is one provider-reported flight. It is immutable once built.
type FlightLeg struct {
	origin        Station
	destination   Station
	flightCode    string
	departureDate time.Time
	departure     ClockTime
	arrival       ClockTime
	duration      string
}

func NewFlightLeg(
	origin Station,
	destination Station,
	flightCode string,
	departureDate time.Time,
	departure ClockTime,
	arrival ClockTime,
	duration string,
) FlightLeg {
	return FlightLeg{
		origin:        origin,
		destination:   destination,
		flightCode:    flightCode,
		departureDate: departureDate,
		departure:     departure,
		arrival:       arrival,
		duration:      duration,
	}
}

func (f FlightLeg) Origin() Station {
	return f.origin
}

func (f FlightLeg) Destination() Station {
	return f.destination
}

func (f FlightLeg) FlightCode() string {
	return f.flightCode
}

func (f FlightLeg) DepartureDate() time.Time {
	return f.departureDate
}

func (f FlightLeg) Departure() ClockTime {
	return f.departure
}

func (f FlightLeg) Arrival() ClockTime {
	return f.arrival
}

// Duration is the provider-reported duration text, kept verbatim.
func (f FlightLeg) Duration() string {
	return f.duration
}

// Route renders "LTN (London Luton) to BUD (Budapest) - W6 2202".
// It identifies the leg inside return-candidate cache keys.
func (f FlightLeg) Route() string {
	return fmt.Sprintf("%s (%s) to %s (%s) - %s",
		f.origin.Code, f.origin.Label, f.destination.Code, f.destination.Label, f.flightCode)
}

// ComputedDuration derives the flight time from departure and arrival offsets,
// rolling over midnight when needed.
func (f FlightLeg) ComputedDuration() Span {
	return Elapsed(f.departureDate, f.departure, f.departureDate, f.arrival)
}

// ArrivalInstant is the absolute arrival time: departure instant plus the computed
// flight time.
func (f FlightLeg) ArrivalInstant() time.Time {
	return Instant(f.departureDate, f.departure).Add(f.ComputedDuration().Duration())
}

type flightLegDTO struct {
	Origin           string `json:"origin"`
	OriginLabel      string `json:"originLabel"`
	Destination      string `json:"destination"`
	DestinationLabel string `json:"destinationLabel"`
	FlightCode       string `json:"flightCode"`
	DepartureDate    string `json:"departureDate"`
	Departure        string `json:"departure"`
	DepartureOffset  string `json:"departureOffset"`
	Arrival          string `json:"arrival"`
	ArrivalOffset    string `json:"arrivalOffset"`
	Duration         string `json:"duration"`
}

func (f FlightLeg) MarshalJSON() ([]byte, error) {
	return json.Marshal(flightLegDTO{
		Origin:           f.origin.Code,
		OriginLabel:      f.origin.Label,
		Destination:      f.destination.Code,
		DestinationLabel: f.destination.Label,
		FlightCode:       f.flightCode,
		DepartureDate:    FormatDate(f.departureDate),
		Departure:        f.departure.HHMM(),
		DepartureOffset:  f.departure.OffsetText(),
		Arrival:          f.arrival.HHMM(),
		ArrivalOffset:    f.arrival.OffsetText(),
		Duration:         f.duration,
	})
}

func (f *FlightLeg) UnmarshalJSON(data []byte) error {
	var dto flightLegDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	date, err := ParseDate(dto.DepartureDate)
	if err != nil {
		return err
	}
	departure, err := ParseClockTime(dto.Departure, dto.DepartureOffset)
	if err != nil {
		return err
	}
	arrival, err := ParseClockTime(dto.Arrival, dto.ArrivalOffset)
	if err != nil {
		return err
	}
	*f = NewFlightLeg(
		Station{Code: dto.Origin, Label: dto.OriginLabel},
		Station{Code: dto.Destination, Label: dto.DestinationLabel},
		dto.FlightCode,
		date,
		departure,
		arrival,
		dto.Duration,
	)
	return nil
}

// SearchResultSet holds the outbound legs found for one (origin, date).
// Legs keep the order they were discovered in.
type SearchResultSet struct {
	origin string
	date   time.Time
	legs   []FlightLeg
}

func NewSearchResultSet(origin string, date time.Time) *SearchResultSet {
	return &SearchResultSet{origin: origin, date: date}
}

func (s *SearchResultSet) Origin() string {
	return s.origin
}

func (s *SearchResultSet) Date() time.Time {
	return s.date
}

func (s *SearchResultSet) Append(legs ...FlightLeg) {
	s.legs = append(s.legs, legs...)
}

// Legs returns a copy of the legs.
func (s *SearchResultSet) Legs() []FlightLeg {
	out := make([]FlightLeg, len(s.legs))
	copy(out, s.legs)
	return out
}

func (s *SearchResultSet) Len() int {
	return len(s.legs)
}

func (s *SearchResultSet) IsEmpty() bool {
	return len(s.legs) == 0
}

type searchResultSetDTO struct {
	Origin string      `json:"origin"`
	Date   string      `json:"date"`
	Legs   []FlightLeg `json:"legs"`
}

func (s *SearchResultSet) MarshalJSON() ([]byte, error) {
	legs := s.legs
	if legs == nil {
		legs = []FlightLeg{}
	}
	return json.Marshal(searchResultSetDTO{
		Origin: s.origin,
		Date:   FormatDate(s.date),
		Legs:   legs,
	})
}

func (s *SearchResultSet) UnmarshalJSON(data []byte) error {
	var dto searchResultSetDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	date, err := ParseDate(dto.Date)
	if err != nil {
		return err
	}
	s.origin = dto.Origin
	s.date = date
	s.legs = dto.Legs
	return nil
}

// ReturnCandidateSet holds every return leg that passed the coarse filter for one
// outbound leg, across the whole return window.
type ReturnCandidateSet struct {
	outbound FlightLeg
	legs     []FlightLeg
}

func NewReturnCandidateSet(outbound FlightLeg) *ReturnCandidateSet {
	return &ReturnCandidateSet{outbound: outbound}
}

func (r *ReturnCandidateSet) Outbound() FlightLeg {
	return r.outbound
}

func (r *ReturnCandidateSet) Append(legs ...FlightLeg) {
	r.legs = append(r.legs, legs...)
}

func (r *ReturnCandidateSet) Legs() []FlightLeg {
	out := make([]FlightLeg, len(r.legs))
	copy(out, r.legs)
	return out
}

func (r *ReturnCandidateSet) Len() int {
	return len(r.legs)
}

type returnCandidateSetDTO struct {
	Outbound FlightLeg   `json:"outbound"`
	Legs     []FlightLeg `json:"legs"`
}

func (r *ReturnCandidateSet) MarshalJSON() ([]byte, error) {
	legs := r.legs
	if legs == nil {
		legs = []FlightLeg{}
	}
	return json.Marshal(returnCandidateSetDTO{Outbound: r.outbound, Legs: legs})
}

func (r *ReturnCandidateSet) UnmarshalJSON(data []byte) error {
	var dto returnCandidateSetDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	r.outbound = dto.Outbound
	r.legs = dto.Legs
	return nil
}
