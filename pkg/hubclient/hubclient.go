// Package hubclient is an HTTP client for the wallet-auth hub: sign-in message
// issuance, signed login, token refresh, user lookup and logout.
package hubclient

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sigweihq/walletconnector/pkg/utils"
)

// DefaultTimeout is the request timeout used when the config sets none
const DefaultTimeout = 30 * time.Second

// AppIDHeader carries the application id on every request
const AppIDHeader = "X-App-Id"

// Config configures a HubClient
type Config struct {
	// URL is the hub base URL. Must be HTTPS outside of localhost.
	URL string

	// AppID identifies the application at the hub
	AppID string

	Timeout    time.Duration
	HTTPClient *http.Client // overrides Timeout when set
}

// HubClient provides access to the wallet-auth hub
type HubClient struct {
	URL        string
	HTTPClient *http.Client

	// Auth provides wallet-based authentication functionality
	// Endpoints: /api/v1/auth/message, /api/v1/auth/login, /api/v1/auth/refresh, etc.
	Auth *AuthClient
}

// NewHubClient creates a hub client. The Auth client shares the HTTP client
// and base URL.
func NewHubClient(cfg Config) (*HubClient, error) {
	if err := utils.ValidateServiceURL(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid hub URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = utils.CreateHTTPClientWithTimeouts(timeout)
	}

	headers := map[string]string{}
	if cfg.AppID != "" {
		headers[AppIDHeader] = cfg.AppID
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	return &HubClient{
		URL:        baseURL,
		HTTPClient: httpClient,
		Auth:       newAuthClient(baseURL, httpClient, headers),
	}, nil
}
