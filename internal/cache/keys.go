package cache

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// SessionContextKey holds the resolver's session context.
	SessionContextKey = "session_context"
	// LastAirportKey remembers the last searched origin.
	LastAirportKey = "last_airport"

	returnInfix    = "-return-"
	resultDateForm = "2006-01-02"
)

var resultKeyPattern = regexp.MustCompile(`^[A-Z]+-\d{4}-\d{2}-\d{2}$`)

// ResultKey builds "ORIGIN-YYYY-MM-DD".
func ResultKey(origin string, date time.Time) string {
	return fmt.Sprintf("%s-%s", origin, date.Format(resultDateForm))
}

// ReturnKey builds "<result-key>-return-<route-string>".
func ReturnKey(resultKey, route string) string {
	return resultKey + returnInfix + route
}

func IsResultKey(key string) bool {
	return resultKeyPattern.MatchString(key)
}

// ReturnPrefix is the prefix shared by every return entry of resultKey.
func ReturnPrefix(resultKey string) string {
	return resultKey + returnInfix
}

// ParseResultKey splits a result key into origin and date.
func ParseResultKey(key string) (string, time.Time, bool) {
	if !IsResultKey(key) {
		return "", time.Time{}, false
	}
	i := strings.Index(key, "-")
	date, err := time.Parse(resultDateForm, key[i+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return key[:i], date, true
}
