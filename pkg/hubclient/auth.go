package hubclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/sigweihq/walletconnector/pkg/types"
)

// ErrNotAuthenticated is returned by calls that need an access token when none is stored
var ErrNotAuthenticated = errors.New("not authenticated: no access token")

// AuthClient handles wallet-based authentication with the hub
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string

	tokenMutex   sync.RWMutex
	accessToken  string
	refreshToken string
}

func newAuthClient(baseURL string, httpClient *http.Client, headers map[string]string) *AuthClient {
	return &AuthClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		headers:    headers,
	}
}

// GetAuthMessage retrieves a sign-in message with nonce for the given wallet address
// GET /api/v1/auth/message?walletAddress=0x...
func (c *AuthClient) GetAuthMessage(ctx context.Context, walletAddress string) (*types.MessageResponse, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/auth/message")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("walletAddress", walletAddress)
	u.RawQuery = q.Encode()

	var result types.MessageResponse
	req := hubRequest{method: http.MethodGet, url: u.String(), headers: c.headers}
	if err := req.do(ctx, c.httpClient, &result); err != nil {
		return nil, fmt.Errorf("failed to get auth message: %w", err)
	}
	return &result, nil
}

// Login exchanges a signed sign-in message for tokens
// POST /api/v1/auth/login
func (c *AuthClient) Login(ctx context.Context, message, signature string) (*types.AuthResponse, error) {
	reqBody := types.AuthRequest{
		Message:   message,
		Signature: signature,
	}

	var result types.AuthResponse
	req := hubRequest{method: http.MethodPost, url: c.baseURL + "/api/v1/auth/login", payload: reqBody, headers: c.headers}
	if err := req.do(ctx, c.httpClient, &result); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	c.SetTokens(result.AccessToken, result.RefreshToken)
	return &result, nil
}

// RefreshToken refreshes the access token using the refresh token
// POST /api/v1/auth/refresh
func (c *AuthClient) RefreshToken(ctx context.Context) (*types.TokenPair, error) {
	current := c.GetRefreshToken()
	if current == "" {
		return nil, errors.New("no refresh token available")
	}

	var result types.TokenPair
	reqBody := types.RefreshRequest{RefreshToken: current}
	req := hubRequest{method: http.MethodPost, url: c.baseURL + "/api/v1/auth/refresh", payload: reqBody, headers: c.headers}
	if err := req.do(ctx, c.httpClient, &result); err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	c.SetTokens(result.AccessToken, result.RefreshToken)
	return &result, nil
}

// GetMe retrieves the authenticated user
// GET /api/v1/auth/me
func (c *AuthClient) GetMe(ctx context.Context) (*types.User, error) {
	var result types.User
	if err := c.authorized(ctx, http.MethodGet, "/api/v1/auth/me", &result); err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	return &result, nil
}

// Logout ends the session at the hub and clears the stored tokens
// POST /api/v1/auth/logout
func (c *AuthClient) Logout(ctx context.Context) error {
	if err := c.authorized(ctx, http.MethodPost, "/api/v1/auth/logout", nil); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	c.ClearTokens()
	return nil
}

// authorized sends a request with the access token. A 401 triggers one token
// refresh and a retry.
func (c *AuthClient) authorized(ctx context.Context, method, path string, result any) error {
	if c.GetAccessToken() == "" {
		return ErrNotAuthenticated
	}

	err := hubRequest{method: method, url: c.baseURL + path, headers: c.authHeaders()}.do(ctx, c.httpClient, result)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || !httpErr.IsUnauthorized() || c.GetRefreshToken() == "" {
		return err
	}

	if _, refreshErr := c.RefreshToken(ctx); refreshErr != nil {
		return errors.Join(err, refreshErr)
	}
	return hubRequest{method: method, url: c.baseURL + path, headers: c.authHeaders()}.do(ctx, c.httpClient, result)
}

func (c *AuthClient) authHeaders() map[string]string {
	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + c.GetAccessToken()
	return headers
}

// SetTokens stores the access and refresh tokens (thread-safe)
func (c *AuthClient) SetTokens(accessToken, refreshToken string) {
	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

// GetAccessToken retrieves the current access token (thread-safe)
func (c *AuthClient) GetAccessToken() string {
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.accessToken
}

// GetRefreshToken retrieves the current refresh token (thread-safe)
func (c *AuthClient) GetRefreshToken() string {
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.refreshToken
}

// ClearTokens clears all stored tokens (thread-safe)
func (c *AuthClient) ClearTokens() {
	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
}

// IsAuthenticated returns true if an access token is available
func (c *AuthClient) IsAuthenticated() bool {
	return c.GetAccessToken() != ""
}
