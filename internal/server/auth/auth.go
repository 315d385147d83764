// Package auth identifies the account behind an HTTP request. The variant in
// use (none, HTTP Basic, session cookie) is chosen once at startup.
package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// AUTH_TYPE values.
const (
	TypeBasic   = "basic_auth"
	TypeSession = "session_auth"
)

// Identifier resolves the account a request acts for.
type Identifier interface {
	Identify(r *http.Request) (*models.Account, bool)
}

// CredentialVerifier checks an email/password pair.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, email, password string) (*models.Account, bool)
}

// SessionResolver maps a session token to its account.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*models.Account, bool)
}

// AccountService is everything the identifiers need from the service layer.
type AccountService interface {
	CredentialVerifier
	SessionResolver
}

// New picks the identifier for authType. Unknown types give NoAuth.
func New(authType string, svc AccountService, cookieName string, secret []byte) Identifier {
	switch authType {
	case TypeBasic:
		return NewBasicAuth(svc)
	case TypeSession:
		return NewSessionAuth(svc, cookieName, secret)
	default:
		return NoAuth{}
	}
}

// NoAuth never identifies anyone.
type NoAuth struct{}

func (NoAuth) Identify(*http.Request) (*models.Account, bool) { return nil, false }

// RequireAuth reports whether path is protected. Patterns in excluded match
// with or without a trailing slash; a pattern ending in "*" matches every
// path with that prefix.
func RequireAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	for _, pattern := range excluded {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return false
			}
			continue
		}
		if pattern == path || strings.TrimRight(pattern, "/") == strings.TrimRight(path, "/") {
			return false
		}
	}
	return true
}

// AuthorizationHeader returns the raw Authorization header, or "".
func AuthorizationHeader(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get(common.AuthorizationHeaderName)
}

// ExtractBase64Credentials returns the payload of a "Basic <payload>" header.
func ExtractBase64Credentials(header string) (string, bool) {
	if !strings.HasPrefix(header, "Basic ") {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return "", false
	}
	return parts[1], true
}

// DecodeBase64Credentials decodes the payload; it must be valid base64 and
// valid UTF-8.
func DecodeBase64Credentials(payload string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// SplitCredentials splits "email:password" on the first colon, so passwords
// may themselves contain colons.
func SplitCredentials(decoded string) (email, password string, ok bool) {
	return strings.Cut(decoded, ":")
}
