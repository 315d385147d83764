package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

func (h *handlers) welcome(w http.ResponseWriter, _ *http.Request) {
	respondMessage(w, http.StatusOK, "Bienvenue")
}

// registerUser handles POST /users.
func (h *handlers) registerUser(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "malformed request")
		return
	}
	email, password := fields["email"], fields["password"]
	if email == "" || password == "" {
		respondMessage(w, http.StatusBadRequest, "email and password required")
		return
	}

	account, err := h.accounts.Register(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyRegistered) {
			respondMessage(w, http.StatusBadRequest, "email already registered")
			return
		}
		h.logger.Error(r.Context(), "register failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"email": account.Email, "message": "user created"})
}

// login handles POST /sessions.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed request")
		return
	}
	email := fields["email"]

	if !h.accounts.Authenticate(r.Context(), email, fields["password"]) {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !h.startSession(w, r, email) {
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"email": email, "message": "logged in"})
}

// logout handles DELETE /sessions.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	account, ok := h.sessionAccount(r)
	if !ok {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}
	h.accounts.EndSession(r.Context(), account.ID)
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// profile handles GET /profile.
func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	account, ok := h.sessionAccount(r)
	if !ok {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"email": account.Email})
}

// requestReset handles POST /reset_password.
func (h *handlers) requestReset(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed request")
		return
	}
	email := fields["email"]

	token, err := h.accounts.RequestPasswordReset(r.Context(), email)
	if err != nil {
		if !errors.Is(err, common.ErrUnknownAccount) {
			h.logger.Error(r.Context(), "reset request failed", "error", err)
		}
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"email": email, "reset_token": token})
}

// updatePassword handles PUT /reset_password.
func (h *handlers) updatePassword(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed request")
		return
	}

	err = h.accounts.ConsumePasswordReset(r.Context(), fields["reset_token"], fields["new_password"])
	if err != nil {
		if !errors.Is(err, common.ErrInvalidResetToken) {
			h.logger.Error(r.Context(), "password update failed", "error", err)
		}
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"email": fields["email"], "message": "Password updated"})
}

// startSession creates a session for email and sets the signed cookie.
// On failure the response has been written and false is returned.
func (h *handlers) startSession(w http.ResponseWriter, r *http.Request, email string) bool {
	token, ok := h.accounts.CreateSession(r.Context(), email)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	value, err := auth.SignSessionCookie(token, h.secret)
	if err != nil {
		h.logger.Error(r.Context(), "cookie signing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return true
}

func (h *handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (h *handlers) sessionAccount(r *http.Request) (*models.Account, bool) {
	token, ok := auth.SessionToken(r, h.sessionCookieName(), h.secret)
	if !ok {
		return nil, false
	}
	return h.accounts.ResolveSession(r.Context(), token)
}

func (h *handlers) sessionCookieName() string {
	if h.cookieName == "" {
		return common.DefaultSessionCookieName
	}
	return h.cookieName
}
