package ess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jameshartig/autopreset/pkg/common"
	"github.com/jameshartig/autopreset/pkg/config"
	"github.com/jameshartig/autopreset/pkg/log"
	"github.com/jameshartig/autopreset/pkg/types"
)

const (
	// DefaultNetZeroBaseURL is the base address of the Configuration API.
	DefaultNetZeroBaseURL = "https://api.netzero.energy"
	// DefaultNetZeroTimeout bounds a single configuration request.
	DefaultNetZeroTimeout = 30 * time.Second

	// maxErrorBody is how much of a failed response body gets logged.
	maxErrorBody = 4096
)

// NetZero is a client for the NetZero Configuration API which applies a
// configuration document to a site's Powerwall.
type NetZero struct {
	client  *http.Client
	baseURL string
}

// NewNetZero returns a client that sends requests with client to baseURL. A
// nil client gets the default 30 second timeout and an empty baseURL defaults
// to DefaultNetZeroBaseURL.
func NewNetZero(client *http.Client, baseURL string) *NetZero {
	if client == nil {
		client = common.HTTPClient(DefaultNetZeroTimeout)
	}
	if baseURL == "" {
		baseURL = DefaultNetZeroBaseURL
	}
	return &NetZero{
		client:  client,
		baseURL: baseURL,
	}
}

// ConfigURL returns the configuration endpoint for the given site.
func (n *NetZero) ConfigURL(siteID string) (string, error) {
	u, err := url.Parse(n.baseURL)
	if err != nil {
		return "", err
	}
	return u.JoinPath("api", "v1", siteID, "config").String(), nil
}

// ApplyConfig posts the preset to the site's configuration endpoint. It sends
// exactly one request and returns nil when the API accepted it, otherwise a
// *RequestError describing why it did not.
func (n *NetZero) ApplyConfig(ctx context.Context, creds config.Credentials, preset types.Preset) error {
	endpoint, err := n.ConfigURL(creds.SiteID)
	if err != nil {
		return &RequestError{Kind: FailureTransport, Detail: fmt.Sprintf("invalid base url: %v", err)}
	}

	body, err := json.Marshal(preset)
	if err != nil {
		return &RequestError{Kind: FailureTransport, URL: endpoint, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return &RequestError{Kind: FailureTransport, URL: endpoint, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		kind := FailureTransport
		if isTimeout(err) {
			kind = FailureTimeout
		}
		return &RequestError{Kind: kind, URL: endpoint, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Ctx(ctx).DebugContext(
			ctx,
			"netzero config request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
		return newStatusError(resp.StatusCode, endpoint)
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	log.Ctx(ctx).DebugContext(ctx, "netzero config request accepted", slog.Int("status", resp.StatusCode))
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
