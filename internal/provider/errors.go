package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type ProviderErrorCause string

const (
	ErrCauseRateLimited       ProviderErrorCause = "rate limited"
	ErrCauseHttpError         ProviderErrorCause = "http error"
	ErrCauseMalformedResponse ProviderErrorCause = "malformed response"
	ErrCauseTransportError    ProviderErrorCause = "transport error"
)

type ProviderError struct {
	Message   string
	Retryable bool
	Cause     ProviderErrorCause
	// Status is the HTTP status, 0 when no response was received.
	Status int
	// RetryAfter is the wait the provider asked for, if it sent one.
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error: %s (status %d), %s", e.Cause, e.Status, e.Message)
	}
	return fmt.Sprintf("provider error: %s, %s", e.Cause, e.Message)
}

// RateLimited halts the sweep; everything else only costs the current query.
func (e *ProviderError) Severity() failure.Severity {
	if e.Cause == ErrCauseRateLimited {
		return failure.SeverityHalt
	}
	return failure.SeverityRecoverable
}

// IsRetryable reports whether the transport-level retry may repeat the call.
func (e *ProviderError) IsRetryable() bool {
	return e.Retryable
}

// IsRateLimited reports whether err carries a provider rate-limit signal.
func IsRateLimited(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Cause == ErrCauseRateLimited
}

func mapProviderErrorToMetadataCause(err *ProviderError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseRateLimited:
		return metadata.CauseRateLimited
	case ErrCauseHttpError:
		return metadata.CauseProviderRejected
	case ErrCauseMalformedResponse:
		return metadata.CauseContentInvalid
	case ErrCauseTransportError:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
