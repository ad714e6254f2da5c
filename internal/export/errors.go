package export

import (
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type ExportErrorCause string

const (
	ErrCauseUnsupportedFormat ExportErrorCause = "unsupported format"
	ErrCauseEncodeFailed      ExportErrorCause = "encode failed"
	ErrCauseWriteFailed       ExportErrorCause = "write failed"
)

type ExportError struct {
	Message   string
	Retryable bool
	Cause     ExportErrorCause
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error: %s, %s", e.Cause, e.Message)
}

// An export failure never touches cached results.
func (e *ExportError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *ExportError) IsRetryable() bool {
	return e.Retryable
}

func mapExportErrorToMetadataCause(err *ExportError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailed:
		return metadata.CauseStorageFailure
	case ErrCauseEncodeFailed, ErrCauseUnsupportedFormat:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
