package ess

import (
	"fmt"
	"net/url"
	"time"

	"github.com/jameshartig/autopreset/pkg/common"
	"github.com/levenlabs/go-lflag"
)

// Configured sets up the NetZero client based on flags.
func Configured() *NetZero {
	baseURL := lflag.String("netzero-base-url", DefaultNetZeroBaseURL, "Base URL of the NetZero configuration API")
	timeout := lflag.Duration("netzero-timeout", DefaultNetZeroTimeout, "Timeout for a single configuration request")

	n := &NetZero{}

	lflag.Do(func() {
		if err := validateBaseURL(*baseURL); err != nil {
			panic(fmt.Sprintf("netzero validation failed: %v", err))
		}
		if *timeout <= 0 {
			panic(fmt.Sprintf("netzero validation failed: timeout must be positive, got %s", *timeout))
		}
		n.baseURL = *baseURL
		n.client = common.HTTPClient(*timeout)
	})

	return n
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https: %s", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("base url is missing a host: %s", raw)
	}
	return nil
}

// Timeout returns the per-request timeout of the client.
func (n *NetZero) Timeout() time.Duration {
	if n.client == nil {
		return 0
	}
	return n.client.Timeout
}
