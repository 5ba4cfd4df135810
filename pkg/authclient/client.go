// Package authclient is a small client for the gatehouse authentication
// service. It covers the public endpoints and wraps a logged-in session's
// cookie handling.
package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultCookieName matches the service's default session cookie.
const DefaultCookieName = "gatehouse_session"

// Client talks to a gatehouse service. Unauthenticated operations hang
// off the client; Login returns a Session for the rest.
type Client struct {
	BaseURL    string
	CookieName string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL using the
// default cookie name.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		CookieName: DefaultCookieName,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login authenticates and returns a session bound to the issued token.
func (c *Client) Login(ctx context.Context, user, password string) (*Session, error) {
	form := url.Values{}
	form.Set("user", user)
	form.Set("password", password)

	resp, err := c.doRequest(ctx, http.MethodPost, "/login",
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := decodeJSON(resp, &status, http.StatusOK); err != nil {
		return nil, err
	}

	token := cookieValue(resp, c.CookieName)
	if token == "" {
		return nil, fmt.Errorf("login response missing %s cookie", c.CookieName)
	}
	return &Session{client: c, token: token, user: status.User}, nil
}

// Register creates an account via self-registration. The invitation code
// may be empty when the service does not require one.
func (c *Client) Register(ctx context.Context, user, password, invitation string) error {
	form := url.Values{}
	form.Set("user", user)
	form.Set("password", password)
	if invitation != "" {
		form.Set("invitation", invitation)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/register",
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusOK)
}

// Livez fetches the liveness probe.
func (c *Client) Livez(ctx context.Context) (HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// Readyz fetches the readiness probe. A degraded service answers with an
// *APIError carrying status 503.
func (c *Client) Readyz(ctx context.Context) (HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *Client) health(ctx context.Context, path string) (HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return HealthResponse{}, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return HealthResponse{}, err
	}
	return health, nil
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (c *Client) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// decodeJSON decodes a JSON response into target, mapping non-expected
// statuses to *APIError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
