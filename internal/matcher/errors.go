package matcher

import (
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
)

type MatcherErrorCause string

const (
	ErrCauseInterrupted MatcherErrorCause = "interrupted"
)

type MatcherError struct {
	Message   string
	Retryable bool
	Cause     MatcherErrorCause
}

func (e *MatcherError) Error() string {
	return fmt.Sprintf("matcher error: %s, %s", e.Cause, e.Message)
}

func (e *MatcherError) Severity() failure.Severity {
	return failure.SeverityHalt
}

func (e *MatcherError) IsRetryable() bool {
	return e.Retryable
}
