package auth

import (
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// BasicAuth identifies requests by an "Authorization: Basic" header.
type BasicAuth struct {
	verifier CredentialVerifier
}

func NewBasicAuth(v CredentialVerifier) *BasicAuth {
	return &BasicAuth{verifier: v}
}

func (a *BasicAuth) Identify(r *http.Request) (*models.Account, bool) {
	payload, ok := ExtractBase64Credentials(AuthorizationHeader(r))
	if !ok {
		return nil, false
	}
	decoded, ok := DecodeBase64Credentials(payload)
	if !ok {
		return nil, false
	}
	email, password, ok := SplitCredentials(decoded)
	if !ok {
		return nil, false
	}
	return a.verifier.VerifyCredentials(r.Context(), email, password)
}
