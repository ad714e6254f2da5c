package flight

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses "YYYY-MM-DD" into midnight UTC. A provider timestamp such as
// "2025-03-01T00:00:00" is accepted and truncated to its date.
func ParseDate(text string) (time.Time, error) {
	if len(text) > len(DateLayout) {
		text = text[:len(DateLayout)]
	}
	date, err := time.Parse(DateLayout, text)
	if err != nil {
		return time.Time{}, &FlightError{Message: fmt.Sprintf("%q", text), Cause: ErrCauseInvalidDate}
	}
	return date, nil
}

func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// AddDays keeps the result at midnight UTC.
func AddDays(date time.Time, days int) time.Time {
	return date.AddDate(0, 0, days)
}

// Instant anchors a local clock time to a calendar date and converts it to UTC:
// date + local time - offset.
func Instant(date time.Time, at ClockTime) time.Time {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(at.sinceMidnight() - at.Offset)
}

// Span is a non-negative duration split into whole hours and remaining minutes.
type Span struct {
	Hours   int
	Minutes int
}

func SpanOf(d time.Duration) Span {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return Span{Hours: total / 60, Minutes: total % 60}
}

func (s Span) Duration() time.Duration {
	return time.Duration(s.Hours)*time.Hour + time.Duration(s.Minutes)*time.Minute
}

// String renders "1h 30m".
func (s Span) String() string {
	return fmt.Sprintf("%dh %dm", s.Hours, s.Minutes)
}

// Elapsed returns the time between A and B. Both are converted to instants; if B
// precedes A it is rolled forward one day (overnight arrival). A span that is still
// negative after the roll is reported as zero.
func Elapsed(dateA time.Time, a ClockTime, dateB time.Time, b ClockTime) Span {
	start := Instant(dateA, a)
	end := Instant(dateB, b)
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return SpanOf(end.Sub(start))
}

// Layover is the time between the true arrival of out and the departure of ret,
// both as absolute instants. ok is false when ret leaves before out lands.
func Layover(out, ret FlightLeg) (time.Duration, bool) {
	arrival := out.ArrivalInstant()
	departure := Instant(ret.DepartureDate(), ret.Departure())
	gap := departure.Sub(arrival)
	return gap, gap >= 0
}

// FormatStay renders a layover as "2 days and 5 hours".
func FormatStay(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	return fmt.Sprintf("%d days and %d hours", days, hours)
}
