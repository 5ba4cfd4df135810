package httpapi

import (
	"net/http"
	"net/url"
)

// sessionToken extracts the session token from the request: the session
// cookie first, then the same-named query parameter of the original URI
// the proxy forwarded in X-Original-URI. The cookie wins when both are
// present.
func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	orig := r.Header.Get("X-Original-URI")
	if orig == "" {
		return ""
	}
	u, err := url.Parse(orig)
	if err != nil {
		return ""
	}
	return u.Query().Get(cookieName)
}
