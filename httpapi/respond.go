package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jdmarc/identity"
)

type errorBody struct {
	Error string `json:"error"`
}

type userBody struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	EmailVerified    bool   `json:"emailVerified"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	Provider         string `json:"provider,omitempty"`
}

func newUserBody(ident *identity.Identity) userBody {
	return userBody{
		ID:               ident.ID,
		Username:         ident.Username,
		Email:            ident.Email,
		Role:             string(ident.Role),
		EmailVerified:    ident.EmailVerified,
		TwoFactorEnabled: ident.TOTPEnabled,
		Provider:         string(ident.Provider),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, endpoint string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
	s.metrics.record(endpoint, status)
}

// writeError maps engine sentinel errors onto the response taxonomy.
// Everything unrecognized is a 500 with a generic body so internals never
// leak to the client.
func (s *Server) writeError(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, identity.ErrAccountExists),
		errors.Is(err, identity.ErrStaffCodeInUse):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, identity.ErrUserNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, identity.ErrLoginRateLimited),
		errors.Is(err, identity.ErrVerificationRateLimited):
		status, msg = http.StatusTooManyRequests, err.Error()
	case errors.Is(err, identity.ErrMailUnavailable):
		status, msg = http.StatusBadGateway, identity.ErrMailUnavailable.Error()
	case errors.Is(err, identity.ErrInvalidRequest),
		errors.Is(err, identity.ErrRoleInvalid),
		errors.Is(err, identity.ErrProviderInvalid),
		errors.Is(err, identity.ErrAlreadyVerified),
		errors.Is(err, identity.ErrVerificationInvalid),
		errors.Is(err, identity.ErrStaffCodeInvalid),
		errors.Is(err, identity.ErrTOTPNotConfigured),
		errors.Is(err, identity.ErrTOTPNotEnabled),
		errors.Is(err, identity.ErrTOTPInvalid):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		s.logger.Error("request failed", "endpoint", endpoint, "error", err)
	}

	s.writeJSON(w, endpoint, status, errorBody{Error: msg})
}

// decodeJSON tolerates unknown fields: federation providers and browser
// clients send profile objects wider than the fields used here.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return identity.ErrInvalidRequest
	}
	return nil
}
