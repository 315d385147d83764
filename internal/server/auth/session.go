package auth

import (
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// SessionAuth identifies requests by the signed session cookie.
type SessionAuth struct {
	resolver   SessionResolver
	cookieName string
	secret     []byte
}

func NewSessionAuth(r SessionResolver, cookieName string, secret []byte) *SessionAuth {
	if cookieName == "" {
		cookieName = common.DefaultSessionCookieName
	}
	return &SessionAuth{resolver: r, cookieName: cookieName, secret: secret}
}

func (a *SessionAuth) CookieName() string { return a.cookieName }

func (a *SessionAuth) Identify(r *http.Request) (*models.Account, bool) {
	token, ok := SessionToken(r, a.cookieName, a.secret)
	if !ok {
		return nil, false
	}
	return a.resolver.ResolveSession(r.Context(), token)
}

// SessionToken returns the verified session token carried by the named
// cookie. Missing and tampered cookies both give "", false.
func SessionToken(r *http.Request, cookieName string, secret []byte) (string, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	token, err := SessionFromCookie(c.Value, secret)
	if err != nil {
		return "", false
	}
	return token, true
}
