package flight

import (
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type FlightErrorCause string

const (
	ErrCauseInvalidTime   FlightErrorCause = "invalid time"
	ErrCauseInvalidOffset FlightErrorCause = "invalid utc offset"
	ErrCauseInvalidDate   FlightErrorCause = "invalid date"
	ErrCauseInvalidCode   FlightErrorCause = "invalid airport code"
)

type FlightError struct {
	Message   string
	Retryable bool
	Cause     FlightErrorCause
}

func (e *FlightError) Error() string {
	return fmt.Sprintf("flight error: %s, %s", e.Cause, e.Message)
}

// A single malformed record only costs that record.
func (e *FlightError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *FlightError) IsRetryable() bool {
	return e.Retryable
}

func MapFlightErrorToMetadataCause(err *FlightError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseInvalidTime, ErrCauseInvalidOffset, ErrCauseInvalidDate, ErrCauseInvalidCode:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
