package ess

import (
	"fmt"
	"net/http"
)

// FailureKind classifies why a request to the Configuration API failed.
type FailureKind int

const (
	// FailureTransport means no response was received (DNS, connection
	// refused, TLS, malformed request and similar).
	FailureTransport FailureKind = iota + 1
	// FailureTimeout means the request did not complete in time.
	FailureTimeout
	// FailureStatus means the API responded with a 4xx or 5xx status.
	FailureStatus
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureTimeout:
		return "timeout"
	case FailureStatus:
		return "status"
	}
	return "unknown"
}

// RequestError is the failed outcome of a Configuration API request.
type RequestError struct {
	Kind FailureKind
	// StatusCode is only set for FailureStatus.
	StatusCode int
	URL        string
	Detail     string
}

func (e *RequestError) Error() string {
	return e.Detail
}

func newStatusError(code int, url string) *RequestError {
	class := "Client"
	if code >= 500 {
		class = "Server"
	}
	return &RequestError{
		Kind:       FailureStatus,
		StatusCode: code,
		URL:        url,
		Detail:     fmt.Sprintf("%d %s Error: %s for url: %s", code, class, http.StatusText(code), url),
	}
}
