package httpserver

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type ctxKey string

const accountKey ctxKey = "account"

// excludedPaths are reachable without credentials.
var excludedPaths = []string{
	"/api/v1/status/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
}

// CurrentAccount returns the account the guard attached to ctx.
func CurrentAccount(ctx context.Context) (*models.Account, bool) {
	a, ok := ctx.Value(accountKey).(*models.Account)
	return a, ok && a != nil
}

// requireAuth answers 401 when a protected request carries no credentials at
// all and 403 when the identifier does not accept them.
func (h *handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || !auth.RequireAuth(r.URL.Path, excludedPaths) {
			next.ServeHTTP(w, r)
			return
		}
		if !h.hasCredentials(r) {
			respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		account, ok := h.identifier.Identify(r)
		if !ok {
			respondError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, account)))
	})
}

func (h *handlers) hasCredentials(r *http.Request) bool {
	if auth.AuthorizationHeader(r) != "" {
		return true
	}
	c, err := r.Cookie(h.sessionCookieName())
	return err == nil && c.Value != ""
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// me handles GET /api/v1/users/me.
func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	account, ok := CurrentAccount(r.Context())
	if !ok {
		respondError(w, http.StatusNotFound, "Not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": account.ID, "email": account.Email})
}

// apiLogin handles POST /api/v1/auth_session/login.
func (h *handlers) apiLogin(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed request")
		return
	}
	email, password := fields["email"], fields["password"]
	if email == "" {
		respondError(w, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		respondError(w, http.StatusBadRequest, "password missing")
		return
	}

	if !h.accounts.Authenticate(r.Context(), email, password) {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if !h.startSession(w, r, email) {
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"email": email})
}

// apiLogout handles DELETE /api/v1/auth_session/logout.
func (h *handlers) apiLogout(w http.ResponseWriter, r *http.Request) {
	account, ok := CurrentAccount(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}
	h.accounts.EndSession(r.Context(), account.ID)
	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]any{})
}
