package hubclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sigweihq/walletconnector/pkg/constants"
)

// hubRequest is a single JSON call against the hub API
type hubRequest struct {
	method  string
	url     string
	payload any
	headers map[string]string
}

// do sends r and decodes a 2xx JSON body into result when result is non-nil.
// Other statuses are returned as *HTTPError.
func (r hubRequest) do(ctx context.Context, client *http.Client, result any) error {
	var body io.Reader
	if r.payload != nil {
		encoded, err := json.Marshal(r.payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", r.method, r.url, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range r.headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, int64(constants.MaxResponseBodySize))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(limited)
		return newHTTPError(resp.StatusCode, resp.Status, raw)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(limited).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HTTPError is a non-2xx hub response. Message and Details come from the
// hub's {"error","details"} body when it has one.
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
	Details    string
	Body       []byte
}

func newHTTPError(code int, status string, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: code, Status: status, Body: body}
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message, e.Details = payload.Error, payload.Details
	}
	return e
}

func (e *HTTPError) Error() string {
	switch {
	case e.Message != "" && e.Details != "":
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Message, e.Details)
	case e.Message != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	case len(e.Body) > 0:
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Status, e.Body)
	default:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
	}
}

// IsUnauthorized reports whether the hub rejected the access token
func (e *HTTPError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}
