package utils

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sigweihq/walletconnector/pkg/constants"
)

// CreateHTTPClientWithTimeouts returns an HTTP client with transport-level timeouts
// and redirects disabled
func CreateHTTPClientWithTimeouts(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
			ResponseHeaderTimeout: constants.ResponseHeaderTimeout,
			ExpectContinueTimeout: constants.ExpectContinueTimeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // Disable redirects to prevent redirect-based SSRF
		},
	}
}

// ValidateRPCURL validates that an RPC URL is secure
// Returns error if URL doesn't use HTTPS or WSS (except for localhost/127.0.0.1 for testing)
func ValidateRPCURL(url string) error {
	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "wss://") {
		return nil
	}
	if isLocal(url, "http://", "ws://") {
		return nil
	}
	return fmt.Errorf("RPC URL must use HTTPS or WSS: %s", url)
}

// ValidateServiceURL validates the base URL of the wallet-auth hub
// Returns error if URL doesn't use HTTPS (except for localhost/127.0.0.1 for testing)
func ValidateServiceURL(url string) error {
	if strings.HasPrefix(url, "https://") || isLocal(url, "http://") {
		return nil
	}
	return fmt.Errorf("service URL must use HTTPS: %s", url)
}

// Allow localhost and 127.0.0.1 for testing
func isLocal(url string, schemes ...string) bool {
	for _, scheme := range schemes {
		if strings.HasPrefix(url, scheme+"localhost") ||
			strings.HasPrefix(url, scheme+"127.0.0.1") ||
			strings.HasPrefix(url, scheme+"[::1]") {
			return true
		}
	}
	return false
}
