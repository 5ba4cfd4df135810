package httpapi

import (
	"errors"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/authclient"
	"github.com/gatehouse/gatehouse/pkg/httpx"
)

// ChangePasswordHandler lets a logged-in user replace their password.
// The current password must be re-submitted; holding a session cookie
// alone is not enough.
type ChangePasswordHandler struct {
	AuthService *service.AuthService
	CookieName  string
}

func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "malformed form body")
		return
	}

	oldPassword := r.PostFormValue("old-password")
	newPassword := r.PostFormValue("new-password")
	if newPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "new-password is required")
		return
	}

	token := sessionToken(r, h.CookieName)
	err := h.AuthService.ChangePassword(r.Context(), token, oldPassword, newPassword)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, authclient.StatusResponse{Status: "ok"})
	case errors.Is(err, service.ErrUnauthenticated):
		httpx.WriteError(w, http.StatusUnauthorized,
			"unauthenticated", "no valid session")
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, http.StatusForbidden,
			"invalid_credentials", "wrong current password")
	case errors.Is(err, store.ErrUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"unavailable", "user store unavailable")
	default:
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "internal error")
	}
}
