package crawler

import (
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type CrawlerErrorCause string

const (
	ErrCauseNoDestinations CrawlerErrorCause = "no destinations"
	ErrCauseInterrupted    CrawlerErrorCause = "interrupted"
)

type CrawlerError struct {
	Message   string
	Retryable bool
	Cause     CrawlerErrorCause
}

func (e *CrawlerError) Error() string {
	return fmt.Sprintf("crawler error: %s, %s", e.Cause, e.Message)
}

// An interrupted sweep keeps what it found so far.
func (e *CrawlerError) Severity() failure.Severity {
	if e.Cause == ErrCauseInterrupted {
		return failure.SeverityHalt
	}
	return failure.SeverityRecoverable
}

func (e *CrawlerError) IsRetryable() bool {
	return e.Retryable
}

func mapCrawlerErrorToMetadataCause(err *CrawlerError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNoDestinations:
		return metadata.CauseSessionUnavailable
	default:
		return metadata.CauseUnknown
	}
}
