package failure

import "errors"

type Severity int

// sweep control flow
const (
	// SeverityFatal aborts the whole requested operation.
	SeverityFatal Severity = iota
	// SeverityRecoverable skips the current unit (destination, return date) only.
	SeverityRecoverable
	// SeverityHalt stops the current sweep but keeps everything collected so far.
	SeverityHalt
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityRecoverable:
		return "recoverable"
	case SeverityHalt:
		return "halt"
	default:
		return "unknown"
	}
}

type ClassifiedError interface {
	error
	Severity() Severity
}

// SeverityOf returns the severity of err, treating unclassified errors as fatal.
func SeverityOf(err error) Severity {
	var classified ClassifiedError
	if errors.As(err, &classified) {
		return classified.Severity()
	}
	return SeverityFatal
}
