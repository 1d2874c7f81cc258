package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCredentialsExhausted means no credential in a pool can serve a request.
	ErrCredentialsExhausted = errors.New("credentials exhausted")

	// ErrFetchTimeout means an adapter did not answer within its budget.
	ErrFetchTimeout = errors.New("fetch timeout")

	// ErrMalformedRecord marks a single record that cannot be normalized.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrCircuitOpen means the upstream's circuit breaker rejected the call.
	ErrCircuitOpen = errors.New("circuit open")
)

// UpstreamHTTPError is a non-success HTTP response from an upstream provider.
type UpstreamHTTPError struct {
	Source SourceType
	Status int
	Body   string
}

func (e *UpstreamHTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s upstream: status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("%s upstream: status %d: %s", e.Source, e.Status, e.Body)
}

// Failure reasons recorded in SourceStatus and metric labels.
const (
	ReasonTimeout              = "timeout"
	ReasonUpstreamHTTP         = "upstream_http"
	ReasonCredentialsExhausted = "credentials_exhausted"
	ReasonCircuitOpen          = "circuit_open"
	ReasonError                = "error"
)

// FailureReason maps an adapter error onto a stable reason label.
func FailureReason(err error) string {
	var httpErr *UpstreamHTTPError
	switch {
	case errors.Is(err, ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrCredentialsExhausted):
		return ReasonCredentialsExhausted
	case errors.Is(err, ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.As(err, &httpErr):
		return ReasonUpstreamHTTP
	default:
		return ReasonError
	}
}
