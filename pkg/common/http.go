package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

type userAgentTransport struct {
	transport http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original request's headers
	// which might be shared or reused
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.transport.RoundTrip(req)
}

// UserAgent returns the User-Agent sent on outbound requests.
func UserAgent() string {
	return "AutoPreset/" + strings.TrimSpace(version)
}

// HTTPClient returns a default http client with a default user-agent set
func HTTPClient(timeout time.Duration) *http.Client {
	return HTTPClientWithTransport(http.DefaultTransport, timeout)
}

// HTTPClientWithTransport is like HTTPClient but sends requests through rt.
func HTTPClientWithTransport(rt http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &userAgentTransport{
			transport: rt,
			userAgent: UserAgent(),
		},
		Timeout: timeout,
	}
}
