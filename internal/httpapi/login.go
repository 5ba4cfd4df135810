package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/authclient"
	"github.com/gatehouse/gatehouse/pkg/httpx"
)

// LoginHandler issues sessions from submitted credentials and answers
// session status probes.
type LoginHandler struct {
	AuthService    *service.AuthService
	CookieName     string
	CookieLifetime time.Duration
}

// HandlePost validates the user/password form fields and sets the
// session cookie. Bad credentials answer 403 so the proxy's error pages
// can distinguish them from a missing session.
func (h *LoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "malformed form body")
		return
	}

	user := r.PostFormValue("user")
	password := r.PostFormValue("password")
	if user == "" || password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "user and password are required")
		return
	}

	token, err := h.AuthService.Login(r.Context(), user, password, httpx.ClientIP(r))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, http.StatusForbidden,
			"invalid_credentials", "wrong username or password")
		return
	case errors.Is(err, store.ErrUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"unavailable", "user store unavailable")
		return
	default:
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "internal error")
		return
	}

	http.SetCookie(w, h.sessionCookie(token, h.CookieLifetime))
	httpx.WriteJSON(w, http.StatusOK, authclient.StatusResponse{
		Status: "ok",
		User:   store.NormalizeName(user),
	})
}

// HandleGet reports whether the request carries a live session. Browsers
// land here after a login redirect to confirm the cookie took.
func (h *LoginHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r, h.CookieName)
	sess, ok := h.AuthService.Sessions.Lookup(token)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized,
			"unauthenticated", "no valid session")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authclient.StatusResponse{
		Status: "ok",
		User:   sess.User,
	})
}

func (h *LoginHandler) sessionCookie(value string, lifetime time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     h.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
