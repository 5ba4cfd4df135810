package authclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Session is a logged-in client. It resends the session cookie on every
// request.
type Session struct {
	client *Client
	token  string
	user   string
}

// Token returns the raw session token, for callers that persist it.
func (s *Session) Token() string { return s.token }

// User returns the normalized username the session was issued for.
func (s *Session) User() string { return s.user }

// Check asks the forward-auth decision endpoint whether the session
// holds every listed privilege. No privileges means the implicit
// default. Returns nil when allowed; 401 and 403 surface as *APIError
// (see IsUnauthenticated and IsForbidden).
func (s *Session) Check(ctx context.Context, privileges ...string) error {
	path := "/auth"
	if len(privileges) > 0 {
		path += "/" + strings.Join(privileges, "/")
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, "")
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusOK)
}

// Status probes the session status endpoint.
func (s *Session) Status(ctx context.Context) (StatusResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/login", "")
	if err != nil {
		return StatusResponse{}, err
	}

	var status StatusResponse
	if err := decodeJSON(resp, &status, http.StatusOK); err != nil {
		return StatusResponse{}, err
	}
	return status, nil
}

// ChangePassword replaces the session user's password. The current
// password must be supplied again.
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	form := url.Values{}
	form.Set("old-password", oldPassword)
	form.Set("new-password", newPassword)

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/changepassword", form.Encode())
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusOK)
}

// Logout revokes the session server-side. The Session must not be used
// afterwards.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/logout", "")
	if err != nil {
		return err
	}

	var status StatusResponse
	return decodeJSON(resp, &status, http.StatusOK)
}

func (s *Session) doAuthRequest(ctx context.Context, method, path, form string) (*http.Response, error) {
	var body *strings.Reader
	if form != "" {
		body = strings.NewReader(form)
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, s.client.url(path), body)
	if err != nil {
		return nil, err
	}
	if form != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: s.client.CookieName, Value: s.token})

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
