package httpapi

import (
	"errors"
	"net/http"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/authclient"
	"github.com/gatehouse/gatehouse/pkg/httpx"
)

// RegisterHandler creates accounts via self-registration. When the
// feature is disabled the endpoint answers 404, as if it did not exist.
type RegisterHandler struct {
	RegistrationService *service.RegistrationService
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "malformed form body")
		return
	}

	user := r.PostFormValue("user")
	password := r.PostFormValue("password")
	invitation := r.PostFormValue("invitation")
	if user == "" || password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "user and password are required")
		return
	}

	err := h.RegistrationService.Register(r.Context(), user, password, invitation)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, authclient.StatusResponse{
			Status: "ok",
			User:   store.NormalizeName(user),
		})
	case errors.Is(err, service.ErrRegistrationDisabled):
		httpx.WriteError(w, http.StatusNotFound,
			"not_found", "not found")
	case errors.Is(err, service.ErrInvalidInvitation):
		httpx.WriteError(w, http.StatusForbidden,
			"invalid_invitation", "invitation code not accepted")
	case errors.Is(err, store.ErrUserExists):
		httpx.WriteError(w, http.StatusConflict,
			"user_exists", "username already taken")
	case errors.Is(err, store.ErrInvalidName):
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_name", "username must start with a letter and contain only letters, digits, and underscores")
	case errors.Is(err, store.ErrUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"unavailable", "user store unavailable")
	default:
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "internal error")
	}
}
