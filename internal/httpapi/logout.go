package httpapi

import (
	"net/http"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/pkg/authclient"
	"github.com/gatehouse/gatehouse/pkg/httpx"
)

// LogoutHandler revokes the request's session and clears the cookie.
// Logging out without a session is still a 200.
type LogoutHandler struct {
	AuthService *service.AuthService
	CookieName  string
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r, h.CookieName)
	h.AuthService.Logout(r.Context(), token)

	http.SetCookie(w, &http.Cookie{
		Name:     h.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.WriteJSON(w, http.StatusOK, authclient.StatusResponse{Status: "ok"})
}
