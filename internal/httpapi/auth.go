package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/httpx"
)

// AuthHandler serves the forward-auth decision endpoint. The reverse
// proxy issues a subrequest here for every protected request and maps
// the status code back onto it: 200 passes the request through, 401
// redirects to login, 403 denies.
type AuthHandler struct {
	AuthService *service.AuthService
	CookieName  string
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	required := splitPrivileges(r.PathValue("privileges"))
	token := sessionToken(r, h.CookieName)

	err := h.AuthService.Authorize(r.Context(), token, required)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized,
			"unauthenticated", "no valid session")
	case errors.Is(err, service.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden,
			"forbidden", "insufficient privileges")
	case errors.Is(err, store.ErrUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"unavailable", "user store unavailable")
	default:
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "internal error")
	}
}

// splitPrivileges turns the slash-delimited path remainder into a
// privilege list. Empty segments are dropped; a fully empty path means
// the implicit default privilege, expressed here as an empty list.
func splitPrivileges(path string) []string {
	if path == "" {
		return nil
	}
	var privileges []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			privileges = append(privileges, p)
		}
	}
	return privileges
}
