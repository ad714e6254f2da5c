package flight

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a local wall-clock time together with the UTC offset it was
// reported in.
type ClockTime struct {
	Hour   int
	Minute int
	// Offset east of UTC.
	Offset time.Duration
}

func NewClockTime(hour, minute int, offset time.Duration) ClockTime {
	return ClockTime{Hour: hour, Minute: minute, Offset: offset}
}

// ParseClockTime parses a provider time such as "10:00", "10:00:00" or
// "2025-03-01T10:00:00" and an offset such as "+02:00", "(+02:00)", "UTC+2",
// "GMT-05:30" or "". When offsetText is empty and timeText carries a trailing
// " (offset)" part, that part is used.
func ParseClockTime(timeText, offsetText string) (ClockTime, error) {
	timeText = strings.TrimSpace(timeText)
	if offsetText == "" {
		if i := strings.Index(timeText, " "); i >= 0 {
			offsetText = timeText[i+1:]
			timeText = timeText[:i]
		}
	}
	if i := strings.Index(timeText, "T"); i >= 0 {
		timeText = timeText[i+1:]
	}

	parts := strings.Split(timeText, ":")
	if len(parts) < 2 {
		return ClockTime{}, &FlightError{Message: fmt.Sprintf("%q", timeText), Cause: ErrCauseInvalidTime}
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ClockTime{}, &FlightError{Message: fmt.Sprintf("%q", timeText), Cause: ErrCauseInvalidTime}
	}

	offset, err := ParseOffset(offsetText)
	if err != nil {
		return ClockTime{}, err
	}

	return ClockTime{Hour: hour, Minute: minute, Offset: offset}, nil
}

// ParseOffset parses a UTC offset. Empty, "Z", "UTC" and "GMT" mean zero.
func ParseOffset(text string) (time.Duration, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	for _, prefix := range []string{"UTC", "GMT"} {
		if strings.HasPrefix(upper, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	if s == "" || s == "Z" || s == "z" {
		return 0, nil
	}

	invalid := &FlightError{Message: fmt.Sprintf("%q", text), Cause: ErrCauseInvalidOffset}

	sign := time.Duration(1)
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, invalid
	}
	s = s[1:]

	var hoursText, minutesText string
	switch {
	case strings.Contains(s, ":"):
		hm := strings.SplitN(s, ":", 2)
		hoursText, minutesText = hm[0], hm[1]
	case len(s) == 4:
		hoursText, minutesText = s[:2], s[2:]
	default:
		hoursText, minutesText = s, "0"
	}

	hours, errH := strconv.Atoi(hoursText)
	minutes, errM := strconv.Atoi(minutesText)
	if errH != nil || errM != nil || hours < 0 || hours > 14 || minutes < 0 || minutes > 59 {
		return 0, invalid
	}

	return sign * (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute), nil
}

// HHMM formats the wall-clock part, e.g. "06:25".
func (c ClockTime) HHMM() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// OffsetText formats the offset as "+02:00".
func (c ClockTime) OffsetText() string {
	sign := '+'
	offset := c.Offset
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	hours := int(offset / time.Hour)
	minutes := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("%c%02d:%02d", sign, hours, minutes)
}

// String renders "06:25 (+01:00)".
func (c ClockTime) String() string {
	return fmt.Sprintf("%s (%s)", c.HHMM(), c.OffsetText())
}

// sinceMidnight is the wall-clock position within the day, offset ignored.
func (c ClockTime) sinceMidnight() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}
