package session

import (
	"fmt"
	"strings"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type SessionErrorCause string

const (
	ErrCauseWrongPage           SessionErrorCause = "wrong page"
	ErrCauseNoRoutesFound       SessionErrorCause = "no routes found"
	ErrCauseEndpointUnavailable SessionErrorCause = "endpoint unavailable"
	ErrCauseBridgeFailure       SessionErrorCause = "bridge failure"
)

type SessionError struct {
	Message   string
	Retryable bool
	Cause     SessionErrorCause
	// Suggestions holds known origins resembling the requested one (NoRoutesFound only).
	Suggestions []string
}

func (e *SessionError) Error() string {
	msg := fmt.Sprintf("session error: %s, %s", e.Cause, e.Message)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// Session failures abort the requested operation.
func (e *SessionError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *SessionError) IsRetryable() bool {
	return e.Retryable
}

func mapSessionErrorToMetadataCause(err *SessionError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWrongPage, ErrCauseNoRoutesFound, ErrCauseEndpointUnavailable:
		return metadata.CauseSessionUnavailable
	case ErrCauseBridgeFailure:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
