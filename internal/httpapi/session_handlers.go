package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/audit"
	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/auth"
	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionResponse struct {
	AccessToken      string        `json:"access_token"`
	RefreshToken     string        `json:"refresh_token"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at"`
	Identity         auth.Identity `json:"identity"`
}

func sessionPayload(pair auth.TokenPair, identity auth.Identity) sessionResponse {
	return sessionResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Identity:         identity,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, identity, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnavailable):
			obs.ObserveLogin("error")
			writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
		case errors.Is(err, auth.ErrAccountDisabled):
			// Externally indistinguishable from bad credentials; the
			// distinction survives only in metrics and audit.
			obs.ObserveLogin("disabled")
			_ = audit.LogEvent(r.Context(), "session.login.denied", map[string]any{"reason": "disabled"})
			unauthorized(w, r)
		default:
			obs.ObserveLogin("invalid_credentials")
			unauthorized(w, r)
		}
		return
	}

	obs.ObserveLogin("ok")
	obs.ObserveTokenIssued("access")
	obs.ObserveTokenIssued("refresh")
	_ = audit.LogEvent(r.Context(), "session.login", map[string]any{
		"user_id": identity.UserID,
		"role":    identity.Role.String(),
	})
	writeJSON(w, http.StatusOK, sessionPayload(pair, identity))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, identity, err := a.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUnavailable):
			obs.ObserveRefresh("error")
			writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
		case errors.Is(err, auth.ErrTokenExpired):
			obs.ObserveRefresh("expired")
			unauthorized(w, r)
		case errors.Is(err, auth.ErrTokenRevoked):
			obs.ObserveRefresh("revoked")
			_ = audit.LogEvent(r.Context(), "session.refresh.replayed", nil)
			unauthorized(w, r)
		default:
			obs.ObserveRefresh("invalid")
			unauthorized(w, r)
		}
		return
	}

	obs.ObserveRefresh("ok")
	obs.ObserveTokenIssued("access")
	obs.ObserveTokenIssued("refresh")
	_ = audit.LogEvent(r.Context(), "session.refresh", map[string]any{
		"user_id": identity.UserID,
	})
	writeJSON(w, http.StatusOK, sessionPayload(pair, identity))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Idempotent by contract; a store outage is logged but not surfaced.
	if err := a.sessions.Logout(r.Context(), req.RefreshToken); err != nil {
		obs.Log("warn", "logout revocation failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
		})
	}
	_ = audit.LogEvent(r.Context(), "session.logout", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Re-verify the current password before accepting the change.
	if err := a.sessions.VerifyPassword(r.Context(), identity.Email, req.CurrentPassword); err != nil {
		unauthorized(w, r)
		return
	}
	if err := a.sessions.ChangePassword(r.Context(), identity.UserID, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "password does not meet policy")
		case errors.Is(err, auth.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "session.revoke_all", map[string]any{
		"user_id": identity.UserID,
		"trigger": "password_change",
	})
	w.WriteHeader(http.StatusNoContent)
}
