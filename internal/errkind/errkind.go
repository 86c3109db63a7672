// Package errkind classifies ingestion failures so callers can decide
// whether to retry, fall back or report.
package errkind

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindIOFailure          Kind = "io_failure"
	KindParseFailure       Kind = "parse_failure"
	KindUnsupported        Kind = "unsupported_capability"
	KindStateInconsistency Kind = "state_inconsistency"
	KindPersistenceFailure Kind = "persistence_failure"
	KindInvalidRange       Kind = "invalid_range"
	KindInternal           Kind = "internal_failure"
)

// ErrIncrementalUnsupported is the cause carried by KindUnsupported errors.
var ErrIncrementalUnsupported = errors.New("incremental parsing not supported")

type classifiedError struct {
	kind      Kind
	line      int
	retryable bool
	cause     error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	if e.line > 0 {
		return fmt.Sprintf("line %d: %s", e.line, e.cause.Error())
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func Wrap(cause error, kind Kind, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{kind: kind, retryable: retryable, cause: cause}
}

// ParseFailureAt marks cause as a malformed record on the given 1-based line.
func ParseFailureAt(line int, cause error) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{kind: KindParseFailure, line: line, cause: cause}
}

func IO(cause error) error {
	return Wrap(cause, KindIOFailure, true)
}

func Persistence(cause error) error {
	return Wrap(cause, KindPersistenceFailure, true)
}

func Unsupported(parser string) error {
	return Wrap(fmt.Errorf("%s: %w", parser, ErrIncrementalUnsupported), KindUnsupported, false)
}

func KindOf(err error) Kind {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.kind
	}
	return ""
}

func LineOf(err error) int {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.line
	}
	return 0
}

func RetryableOf(err error) bool {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.retryable
	}
	return false
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
