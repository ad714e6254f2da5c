package flight

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeCode trims and upper-cases an airport code and checks it is made of
// ASCII letters only, as result keys require.
func NormalizeCode(code string) (string, error) {
	// a Caser is stateful and must not be shared between goroutines
	normalized := cases.Upper(language.Und).String(strings.TrimSpace(code))
	if normalized == "" {
		return "", &FlightError{Message: "empty code", Cause: ErrCauseInvalidCode}
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return "", &FlightError{Message: fmt.Sprintf("%q", code), Cause: ErrCauseInvalidCode}
		}
	}
	return normalized, nil
}
