package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind identifies the failure classes surfaced by the scan pipeline
// and the sweepers.
type ErrorKind string

const (
	ErrUnknownSite           ErrorKind = "UNKNOWN_SITE"
	ErrSiteInactive          ErrorKind = "SITE_INACTIVE"
	ErrAssignmentMissing     ErrorKind = "ASSIGNMENT_MISSING"
	ErrInvalidPayload        ErrorKind = "INVALID_PAYLOAD"
	ErrDuplicateScan         ErrorKind = "DUPLICATE_SCAN"
	ErrConsecutiveScan       ErrorKind = "CONSECUTIVE_SCAN"
	ErrScheduleDetailMissing ErrorKind = "SCHEDULE_DETAIL_MISSING"
	ErrIdSpaceExhausted      ErrorKind = "ID_SPACE_EXHAUSTED"
	ErrTransientDb           ErrorKind = "TRANSIENT_DB_ERROR"
)

// DomainError carries an ErrorKind across service boundaries so that
// controllers can map it to an HTTP status.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError builds a DomainError of the given kind.
func NewDomainError(kind ErrorKind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapDomainError attaches a kind to an underlying error.
func WrapDomainError(kind ErrorKind, err error, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// HTTPStatus maps an error kind to the API status code.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case ErrUnknownSite:
		return 404
	case ErrSiteInactive:
		return 403
	case ErrInvalidPayload, ErrConsecutiveScan:
		return 400
	case ErrDuplicateScan:
		return 409
	case ErrIdSpaceExhausted:
		return 500
	default:
		return 500
	}
}

// withRetry runs fn up to three times on transient failures, backing off
// 50ms, 200ms, 400ms between attempts.
func withRetry(fn func() error) error {
	backoffs := []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	var err error
	for i := 0; ; i++ {
		err = fn()
		if err == nil || KindOf(err) != ErrTransientDb || i >= len(backoffs) {
			return err
		}
		time.Sleep(backoffs[i])
	}
}
