package pagebridge

import (
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type BridgeErrorCause string

const (
	// the page behind the bridge is not the provider page
	ErrCauseWrongPage BridgeErrorCause = "wrong page"
	// the page answered with an explicit error
	ErrCauseReported BridgeErrorCause = "reported error"
	// the reply lacks the requested data or cannot be decoded
	ErrCauseMalformedReply BridgeErrorCause = "malformed reply"
	// the bridge could not be reached
	ErrCauseTransport BridgeErrorCause = "transport failure"
)

type BridgeError struct {
	Message   string
	Retryable bool
	Cause     BridgeErrorCause
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("page bridge error: %s, %s", e.Cause, e.Message)
}

func (e *BridgeError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *BridgeError) IsRetryable() bool {
	return e.Retryable
}

func MapBridgeErrorToMetadataCause(err *BridgeError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWrongPage, ErrCauseReported:
		return metadata.CauseSessionUnavailable
	case ErrCauseMalformedReply:
		return metadata.CauseContentInvalid
	case ErrCauseTransport:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
