package flight_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlightLeg_RouteAndComputedDuration(t *testing.T) {
	leg := flight.NewFlightLeg(
		flight.Station{Code: "LTN", Label: "London Luton"},
		flight.Station{Code: "BUD", Label: "Budapest"},
		"W6 2202",
		date(t, "2025-03-01"),
		flight.NewClockTime(6, 0, 0),
		flight.NewClockTime(9, 30, time.Hour),
		"02:30",
	)

	assert.Equal(t, "LTN (London Luton) to BUD (Budapest) - W6 2202", leg.Route())
	assert.Equal(t, "2h 30m", leg.ComputedDuration().String())
	assert.Equal(t, time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC), leg.ArrivalInstant())
}

func TestSearchResultSet_JSONRoundTrip(t *testing.T) {
	set := flight.NewSearchResultSet("LTN", date(t, "2025-03-01"))
	set.Append(newLeg(t, "LTN", "BUD", "2025-03-01", "06:00", "+00:00", "09:30", "+01:00"))
	set.Append(newLeg(t, "LTN", "OTP", "2025-03-01", "23:30", "+00:00", "04:10", "+02:00"))

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded flight.SearchResultSet
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "LTN", decoded.Origin())
	assert.Equal(t, set.Date(), decoded.Date())
	assert.Equal(t, set.Legs(), decoded.Legs())
}

func TestSearchResultSet_EmptyMarshalsLegsArray(t *testing.T) {
	set := flight.NewSearchResultSet("LTN", date(t, "2025-03-01"))

	data, err := json.Marshal(set)

	require.NoError(t, err)
	assert.JSONEq(t, `{"origin":"LTN","date":"2025-03-01","legs":[]}`, string(data))
	assert.True(t, set.IsEmpty())
}

func TestSearchResultSet_LegsIsACopy(t *testing.T) {
	set := flight.NewSearchResultSet("LTN", date(t, "2025-03-01"))
	set.Append(newLeg(t, "LTN", "BUD", "2025-03-01", "06:00", "+00:00", "09:30", "+01:00"))

	legs := set.Legs()
	legs[0] = flight.FlightLeg{}

	assert.Equal(t, "BUD", set.Legs()[0].Destination().Code)
}

func TestReturnCandidateSet_JSONRoundTrip(t *testing.T) {
	out := newLeg(t, "LTN", "BUD", "2025-03-01", "06:00", "+00:00", "09:30", "+01:00")
	set := flight.NewReturnCandidateSet(out)
	set.Append(newLeg(t, "BUD", "LTN", "2025-03-02", "10:00", "+01:00", "11:40", "+00:00"))

	data, err := json.Marshal(set)
	require.NoError(t, err)

	var decoded flight.ReturnCandidateSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, out, decoded.Outbound())
	assert.Equal(t, set.Legs(), decoded.Legs())
}

func TestFlightLeg_UnmarshalRejectsBadTime(t *testing.T) {
	var leg flight.FlightLeg
	err := json.Unmarshal([]byte(`{"departureDate":"2025-03-01","departure":"late","arrival":"10:00"}`), &leg)

	assert.Error(t, err)
}
