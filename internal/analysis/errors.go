package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kinds of downstream failure. Every error returned by Client wraps exactly one of them.
var (
	ErrTimeout           = errors.New("analysis service timed out")
	ErrUnreachable       = errors.New("analysis service unreachable")
	ErrBadStatus         = errors.New("analysis service returned unexpected status")
	ErrMalformedResponse = errors.New("analysis service returned malformed response")
	ErrCircuitOpen       = errors.New("analysis service circuit is open")
)

// StatusError carries the non-2xx status an analysis service answered with. It wraps ErrBadStatus.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrBadStatus, e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrBadStatus
}

// ServiceFault reports whether the service itself, not the caller's payload, is to blame.
func (e *StatusError) ServiceFault() bool {
	return e.Code >= http.StatusInternalServerError ||
		e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests
}

// countsAgainstBreaker reports whether err says something about the health of the service.
// Canceled callers and rejected payloads do not.
func countsAgainstBreaker(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ServiceFault()
	}

	return true
}

func isSuccessStatus(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// classifyTransportError tells a timeout apart from any other failure to reach the service.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrTimeout
	}

	return ErrUnreachable
}
