package cache

import (
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type CacheErrorCause string

const (
	ErrCauseReadFailed   CacheErrorCause = "read failed"
	ErrCauseWriteFailed  CacheErrorCause = "write failed"
	ErrCauseEncodeFailed CacheErrorCause = "encode failed"
	ErrCauseCorruptEntry CacheErrorCause = "corrupt entry"
)

type CacheError struct {
	Message   string
	Retryable bool
	Cause     CacheErrorCause
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: %s, %s", e.Cause, e.Message)
}

// A cache failure never costs more than the write it belongs to; callers fall
// back to the network.
func (e *CacheError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *CacheError) IsRetryable() bool {
	return e.Retryable
}

func mapCacheErrorToMetadataCause(err *CacheError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseReadFailed, ErrCauseWriteFailed:
		return metadata.CauseStorageFailure
	case ErrCauseEncodeFailed, ErrCauseCorruptEntry:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
